package codec

import (
	"fmt"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

// DefaultMaxBytes: предел размера декодированного изображения по умолчанию (10 МиБ).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// Guard отсекает входные данные, которые конвейер не должен обрабатывать.
type Guard struct {
	MaxBytes int64
}

var _ port.InputGuard = (*Guard)(nil)

// NewGuard создаёт Guard; неположительный предел заменяется значением по умолчанию.
func NewGuard(maxBytes int64) *Guard {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Guard{MaxBytes: maxBytes}
}

// EstimatedSize оценивает размер данных после декодирования base64 как len*3/4.
func EstimatedSize(blob string) int64 {
	return int64(len(blob)) * 3 / 4
}

// CheckSize сообщает, укладывается ли оценка размера в предел.
// Сравнение ведётся в целых числах, поэтому текст ровно на пределе проходит.
func (g *Guard) CheckSize(blob string) bool {
	return int64(len(blob))*3 <= g.MaxBytes*4
}

// EnsureSize возвращает ошибку KindSizeLimit, если текст превышает предел.
func (g *Guard) EnsureSize(blob string) error {
	if g.CheckSize(blob) {
		return nil
	}
	return entity.NewError(entity.KindSizeLimit,
		fmt.Sprintf("image too large: about %d bytes, limit %d", EstimatedSize(blob), g.MaxBytes), nil)
}

// CheckStructure проверяет, что изображение непустое и трёхканальное (BGR).
func (g *Guard) CheckStructure(img *entity.RawImage) (bool, string) {
	if img.Empty() {
		return false, "image is empty"
	}
	if img.Channels != 3 {
		return false, fmt.Sprintf("image has %d channels, expected 3 (BGR)", img.Channels)
	}
	if err := img.Validate(); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// EnsureStructure возвращает ошибку KindStructure с причиной отказа.
func (g *Guard) EnsureStructure(img *entity.RawImage) error {
	if ok, reason := g.CheckStructure(img); !ok {
		return entity.NewError(entity.KindStructure, reason, nil)
	}
	return nil
}
