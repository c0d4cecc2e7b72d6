package port

import (
	"context"

	"medvision/internal/domain/entity"
)

// Classifier интерфейс внешней модели классификации
type Classifier interface {
	// Classify возвращает вектор вероятностей по классам для подготовленного тензора
	Classify(ctx context.Context, tensor *entity.Tensor) ([]float32, error)
}

// HealthChecker проверяет доступность внешней модели
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
