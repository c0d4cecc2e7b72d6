//go:build !gocv
// +build !gocv

package classifier

import (
	"context"
	"errors"

	"medvision/internal/domain/entity"
)

// DNNClassifier без тега gocv доступен только как заглушка.
type DNNClassifier struct{}

// NewDNNClassifier возвращает ошибку, если сборка без тега gocv.
func NewDNNClassifier(modelPath string) (*DNNClassifier, error) {
	_ = modelPath
	return nil, errors.New("gocv build tag is not enabled")
}

// Classify возвращает ошибку, если сборка без тега gocv.
func (c *DNNClassifier) Classify(ctx context.Context, t *entity.Tensor) ([]float32, error) {
	_ = ctx
	_ = t
	return nil, errors.New("gocv build tag is not enabled")
}

// Close ничего не делает.
func (c *DNNClassifier) Close() error {
	return nil
}
