package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	app "medvision/internal/application"
	"medvision/internal/domain/entity"
	"medvision/internal/infrastructure/codec"
	"medvision/internal/infrastructure/overlay"
	"medvision/internal/infrastructure/preprocess"
	"medvision/internal/infrastructure/vision"
)

type stubClassifier struct {
	probs []float32
	err   error
}

func (c *stubClassifier) Classify(ctx context.Context, t *entity.Tensor) ([]float32, error) {
	return c.probs, c.err
}

type stubHealth struct {
	err error
}

func (h stubHealth) CheckHealth(ctx context.Context) error {
	return h.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(cls *stubClassifier, opts Options) *Server {
	svc := app.NewDetectionService(app.DetectionDeps{
		Codec:        codec.New(codec.DefaultQuality, nil, 0),
		Guard:        codec.NewGuard(opts.MaxImageSize),
		Preprocessor: preprocess.New(0),
		Classifier:   cls,
		Segmenter:    vision.NewWatershedSegmenter(),
		Renderer:     overlay.NewRenderer(),
		Labels:       []string{"normal", "tumor"},
		BoxColor:     entity.ColorGreen,
	})
	return NewServer(opts, svc, nil, quietLogger())
}

func pngBlob(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// diskImage: белый фон с чёрным кругом в центре.
func diskImage(size, radius int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x-c)*(x-c)+(y-c)*(y-c) > radius*radius {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func post(t *testing.T, s *Server, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := jsoniter.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return do(t, s, req)
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, jsoniter.Unmarshal(data, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubClassifier{}, Options{})

	resp, data := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"healthy","message":"Medical Imaging API is running","version":"1.0.0"}`, string(data))
	require.NotEmpty(t, resp.Header.Get(RequestIDKey))
}

func TestHealth_ClassifierDown(t *testing.T) {
	svc := app.NewDetectionService(app.DetectionDeps{})
	s := NewServer(Options{}, svc, stubHealth{err: errors.New("connection refused")}, quietLogger())

	resp, data := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var out HealthResponse
	require.NoError(t, jsoniter.Unmarshal(data, &out))
	require.Equal(t, "unhealthy", out.Status)
	require.Contains(t, out.Message, "connection refused")
}

func TestRequestID_EchoesClientValue(t *testing.T) {
	s := newTestServer(&stubClassifier{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "req-42")
	resp, _ := do(t, s, req)
	require.Equal(t, "req-42", resp.Header.Get(RequestIDKey))
}

func TestDetectBrainTumor(t *testing.T) {
	s := newTestServer(&stubClassifier{probs: []float32{0.2, 0.8}}, Options{})

	resp, data := post(t, s, "/api/detect-brain-tumor", ImageRequest{ImageData: pngBlob(t, diskImage(100, 20))})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var out TumorResponse
	require.NoError(t, jsoniter.Unmarshal(data, &out))
	require.True(t, out.TumorDetected)
	require.InDelta(t, 0.8, out.Confidence, 1e-6)
	require.Equal(t, "tumor", out.DetectionResult.Label)
	require.Equal(t, 1, out.DetectionResult.LabelIndex)
	require.InDelta(t, 0.2, out.DetectionResult.Probabilities["normal"], 1e-6)
	require.False(t, out.DetectionResult.DegenerateSegmentation)

	img, err := codec.New(codec.DefaultQuality, nil, 0).Decode(out.ProcessedImage)
	require.NoError(t, err)
	require.Equal(t, 100, img.Width)
	require.Equal(t, 100, img.Height)
	require.Equal(t, 3, img.Channels)
}

func TestDetectBrainTumor_AcceptsDataURL(t *testing.T) {
	s := newTestServer(&stubClassifier{probs: []float32{0.9, 0.1}}, Options{})

	blob := "data:image/png;base64," + pngBlob(t, diskImage(64, 12))
	resp, data := post(t, s, "/api/detect-brain-tumor", ImageRequest{ImageData: blob})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var out TumorResponse
	require.NoError(t, jsoniter.Unmarshal(data, &out))
	require.False(t, out.TumorDetected)
	require.Equal(t, "normal", out.DetectionResult.Label)
}

func TestDetectBrainTumor_ClientErrors(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 32, 32))

	tests := []struct {
		name   string
		opts   Options
		body   any
		detail string
	}{
		{name: "missing image", body: ImageRequest{}, detail: "image_data"},
		{name: "malformed json", body: `{"image_data":`, detail: "invalid request body"},
		{name: "not base64", body: ImageRequest{ImageData: "%%%"}, detail: "base64"},
		{name: "grayscale", body: ImageRequest{ImageData: pngBlob(t, gray)}, detail: "channels"},
		{name: "too large", opts: Options{MaxImageSize: 16}, body: ImageRequest{ImageData: pngBlob(t, diskImage(64, 12))}, detail: "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubClassifier{probs: []float32{0.5, 0.5}}, tt.opts)

			resp, data := post(t, s, "/api/detect-brain-tumor", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

			out := decodeError(t, data)
			require.Equal(t, "bad_request", out.Error)
			require.Contains(t, out.Detail, tt.detail)
			require.NotEmpty(t, out.RequestID)
		})
	}
}

func TestDetectBrainTumor_ClassifierFailure(t *testing.T) {
	s := newTestServer(&stubClassifier{err: errors.New("model unavailable")}, Options{})

	resp, data := post(t, s, "/api/detect-brain-tumor", ImageRequest{ImageData: pngBlob(t, diskImage(64, 12))})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	out := decodeError(t, data)
	require.Equal(t, "processing_error", out.Error)
	require.Contains(t, out.Detail, "model unavailable")
	require.NotEmpty(t, out.TraceID)
}

func TestProcessBoneFracture(t *testing.T) {
	s := newTestServer(&stubClassifier{}, Options{})

	white := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := range white.Pix {
		white.Pix[i] = 0xff
	}
	req := ImageRequest{
		ImageData: pngBlob(t, white),
		BoundingBoxes: []BoxRequest{
			{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5, Confidence: 0.9, Label: "fracture"},
			{X: 0.5, Y: 0.5, Width: 0.25, Height: 0.25, Confidence: 0.5, Label: "crack", Color: "#0000ff"},
		},
	}

	resp, data := post(t, s, "/api/process-bone-fracture", req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var out FractureResponse
	require.NoError(t, jsoniter.Unmarshal(data, &out))
	require.Len(t, out.DetectionResult.Boxes, 2)

	first := out.DetectionResult.Boxes[0]
	require.Equal(t, 0, first.Index)
	require.Equal(t, "fracture 0.90", first.Text)
	require.Equal(t, [4]int{25, 25, 75, 75}, [4]int{first.X1, first.Y1, first.X2, first.Y2})

	second := out.DetectionResult.Boxes[1]
	require.Equal(t, 1, second.Index)
	require.Equal(t, "crack", second.Label)
	require.Equal(t, [4]int{50, 50, 75, 75}, [4]int{second.X1, second.Y1, second.X2, second.Y2})

	img, err := codec.New(codec.DefaultQuality, nil, 0).Decode(out.ProcessedImage)
	require.NoError(t, err)
	require.Equal(t, 100, img.Width)
}

func TestProcessBoneFracture_ClientErrors(t *testing.T) {
	blob := pngBlob(t, diskImage(64, 12))
	box := BoxRequest{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2, Confidence: 0.7, Label: "fracture"}

	tests := []struct {
		name   string
		req    ImageRequest
		detail string
	}{
		{name: "no boxes", req: ImageRequest{ImageData: blob}, detail: "bounding_boxes"},
		{
			name:   "origin out of range",
			req:    ImageRequest{ImageData: blob, BoundingBoxes: []BoxRequest{{X: 1.5, Y: 0.1, Width: 0.2, Height: 0.2, Label: "a"}}},
			detail: "bounding_boxes[0].x",
		},
		{
			name:   "zero width",
			req:    ImageRequest{ImageData: blob, BoundingBoxes: []BoxRequest{box, {X: 0.1, Y: 0.1, Height: 0.2, Label: "a"}}},
			detail: "bounding_boxes[1].width",
		},
		{
			name:   "empty label",
			req:    ImageRequest{ImageData: blob, BoundingBoxes: []BoxRequest{{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}}},
			detail: "bounding_boxes[0].label",
		},
		{
			name:   "bad colour",
			req:    ImageRequest{ImageData: blob, BoundingBoxes: []BoxRequest{box}, Color: "green"},
			detail: "color",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubClassifier{}, Options{})

			resp, data := post(t, s, "/api/process-bone-fracture", tt.req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

			out := decodeError(t, data)
			require.Equal(t, "bad_request", out.Error)
			require.Contains(t, out.Detail, tt.detail)
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(&stubClassifier{}, Options{RateLimit: 0.001, RateBurst: 1})

	resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "too_many_requests", decodeError(t, data).Error)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(&stubClassifier{}, Options{})

	resp, data := do(t, s, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "bad_request", decodeError(t, data).Error)
}
