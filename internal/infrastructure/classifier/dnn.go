//go:build gocv
// +build gocv

package classifier

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

// DNNClassifier исполняет модель локально через модуль dnn OpenCV.
// Сеть загружается один раз; вызовы Forward сериализуются.
type DNNClassifier struct {
	mu  sync.Mutex
	net gocv.Net
}

var _ port.Classifier = (*DNNClassifier)(nil)

// NewDNNClassifier загружает модель (ONNX, TensorFlow pb и т.п.) из modelPath.
func NewDNNClassifier(modelPath string) (*DNNClassifier, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, errors.New("failed to load model from " + modelPath)
	}
	return &DNNClassifier{net: net}, nil
}

// Classify подаёт тензор NHWC в сеть и возвращает выход первого элемента батча.
func (c *DNNClassifier) Classify(ctx context.Context, t *entity.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, entity.NewError(entity.KindInference, "classification cancelled", err)
	}

	blob := gocv.NewMatWithSizes(t.Shape[:], gocv.MatTypeCV32F)
	defer blob.Close()
	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, entity.NewError(entity.KindInference, "allocate input blob", err)
	}
	copy(data, t.Data)

	c.mu.Lock()
	c.net.SetInput(blob, "")
	prob := c.net.Forward("")
	c.mu.Unlock()
	defer prob.Close()

	out, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, entity.NewError(entity.KindInference, "read model output", err)
	}
	if len(out) == 0 {
		return nil, entity.NewError(entity.KindInference, "model returned no predictions", nil)
	}
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

// Close освобождает сеть.
func (c *DNNClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}
