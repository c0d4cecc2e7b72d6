package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RemoteClassifier вызывает модель, развёрнутую за REST API в формате TensorFlow Serving.
type RemoteClassifier struct {
	modelURL string // например http://localhost:8501/v1/models/brain_tumor
	client   *http.Client
}

var (
	_ port.Classifier    = (*RemoteClassifier)(nil)
	_ port.HealthChecker = (*RemoteClassifier)(nil)
)

// NewRemoteClassifier создаёт адаптер внешнего сервиса модели.
func NewRemoteClassifier(modelURL string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClassifier{
		modelURL: strings.TrimRight(modelURL, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

// Classify отправляет тензор на :predict и возвращает вектор вероятностей первого элемента батча.
func (c *RemoteClassifier) Classify(ctx context.Context, t *entity.Tensor) ([]float32, error) {
	body, err := json.Marshal(predictRequest{Instances: t.Nested()})
	if err != nil {
		return nil, entity.NewError(entity.KindInference, "encode predict request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, entity.NewError(entity.KindInference, "create predict request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, entity.NewError(entity.KindInference, "send predict request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.NewError(entity.KindInference, "read predict response", err)
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, entity.NewError(entity.KindInference, fmt.Sprintf("inference failed with status: %d", resp.StatusCode), nil)
		}
		return nil, entity.NewError(entity.KindInference, "decode predict response", err)
	}
	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("inference failed with status: %d", resp.StatusCode)
		if out.Error != "" {
			reason += ": " + out.Error
		}
		return nil, entity.NewError(entity.KindInference, reason, nil)
	}
	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return nil, entity.NewError(entity.KindInference, "model returned no predictions", nil)
	}
	return out.Predictions[0], nil
}

// CheckHealth проверяет, что модель загружена и отвечает.
func (c *RemoteClassifier) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
