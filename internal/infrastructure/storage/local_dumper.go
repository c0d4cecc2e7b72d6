package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"medvision/internal/domain/port"
)

// LocalDumper пишет отладочные снимки в каталог на диске.
type LocalDumper struct {
	dir string
}

var _ port.DebugDumper = (*LocalDumper)(nil)

// NewLocalDumper создаёт дампер, каталог создаётся при первой записи.
func NewLocalDumper(dir string) *LocalDumper {
	return &LocalDumper{dir: dir}
}

// Dump перезаписывает файл name в каталоге дампера.
func (d *LocalDumper) Dump(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	path := filepath.Join(d.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
