package port

import (
	"context"
	"time"
)

// DebugDumper сохраняет результат обработки для ручной проверки
type DebugDumper interface {
	// Dump записывает данные под фиксированным именем
	Dump(ctx context.Context, name string, data []byte) error
}

// ResultCache хранит готовые ответы для повторяющихся запросов
type ResultCache interface {
	// Get возвращает значение и признак попадания
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set сохраняет значение на время ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
