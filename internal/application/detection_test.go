package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"medvision/internal/domain/entity"
	"medvision/internal/infrastructure/codec"
	"medvision/internal/infrastructure/overlay"
	"medvision/internal/infrastructure/preprocess"
	"medvision/internal/infrastructure/vision"
)

type stubClassifier struct {
	probs []float32
	err   error
	calls atomic.Int32
}

func (c *stubClassifier) Classify(ctx context.Context, t *entity.Tensor) ([]float32, error) {
	c.calls.Add(1)
	if t.Shape != [4]int{1, preprocess.DefaultSize, preprocess.DefaultSize, 3} {
		return nil, errors.New("unexpected tensor shape")
	}
	return c.probs, c.err
}

type recordingDumper struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (d *recordingDumper) Dump(ctx context.Context, name string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.files == nil {
		d.files = make(map[string][]byte)
	}
	d.files[name] = data
	return nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = value
	return nil
}

func newService(cls *stubClassifier, dumper *recordingDumper, cache *mapCache, maxBytes int64) *DetectionService {
	deps := DetectionDeps{
		Codec:        codec.New(codec.DefaultQuality, []string{"png", "jpg", "jpeg"}, 0),
		Guard:        codec.NewGuard(maxBytes),
		Preprocessor: preprocess.New(0),
		Classifier:   cls,
		Segmenter:    vision.NewWatershedSegmenter(),
		Renderer:     overlay.NewRenderer(),
		Labels:       []string{"normal", "tumor"},
		BoxColor:     entity.ColorGreen,
		CacheTTL:     time.Minute,
	}
	if dumper != nil {
		deps.Dumper = dumper
	}
	if cache != nil {
		deps.Cache = cache
	}
	return NewDetectionService(deps)
}

func diskBlob(t *testing.T) string {
	t.Helper()
	img := entity.NewRawImage(64, 64, 3)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x-32)*(x-32)+(y-32)*(y-32) > 14*14 {
				img.SetBGR(x, y, entity.ColorWhite)
			}
		}
	}
	blob, err := codec.New(codec.DefaultQuality, nil, 0).Encode(img)
	require.NoError(t, err)
	return blob
}

func decodeResult(t *testing.T, blob string) *entity.RawImage {
	t.Helper()
	img, err := codec.New(codec.DefaultQuality, nil, 0).Decode(blob)
	require.NoError(t, err)
	return img
}

func TestDetectionService_DetectTumor(t *testing.T) {
	cls := &stubClassifier{probs: []float32{0.2, 0.8}}
	dumper := &recordingDumper{}
	svc := newService(cls, dumper, nil, 0)

	report, err := svc.DetectTumor(context.Background(), diskBlob(t))
	require.NoError(t, err)
	require.True(t, report.TumorDetected)
	require.Equal(t, 1, report.Prediction.LabelIndex)
	require.Equal(t, "tumor", report.Prediction.Label)
	require.InDelta(t, 0.8, report.Prediction.Confidence, 1e-6)
	require.InDelta(t, 0.2, report.Prediction.Probabilities["normal"], 1e-6)
	require.False(t, report.Degenerate)
	require.Positive(t, report.Elapsed)

	out := decodeResult(t, report.ProcessedImage)
	require.Equal(t, 64, out.Width)
	require.Equal(t, 64, out.Height)

	require.Contains(t, dumper.files, TumorDumpName)
	raw, err := base64.StdEncoding.DecodeString(report.ProcessedImage)
	require.NoError(t, err)
	require.Equal(t, raw, dumper.files[TumorDumpName])
}

func TestDetectionService_DetectTumorNormal(t *testing.T) {
	svc := newService(&stubClassifier{probs: []float32{0.9, 0.1}}, nil, nil, 0)

	report, err := svc.DetectTumor(context.Background(), diskBlob(t))
	require.NoError(t, err)
	require.False(t, report.TumorDetected)
	require.Equal(t, "normal", report.Prediction.Label)
}

func TestDetectionService_BlankImageIsDegenerate(t *testing.T) {
	black := entity.NewRawImage(64, 64, 3)
	blob, err := codec.New(codec.DefaultQuality, nil, 0).Encode(black)
	require.NoError(t, err)

	report, err := newService(&stubClassifier{probs: []float32{1, 0}}, nil, nil, 0).DetectTumor(context.Background(), blob)
	require.NoError(t, err)
	require.True(t, report.Degenerate)
	require.True(t, decodeResult(t, report.ProcessedImage).Equal(black))
}

func TestDetectionService_SizeLimitBeforeDecode(t *testing.T) {
	cls := &stubClassifier{probs: []float32{0.5, 0.5}}
	svc := newService(cls, nil, nil, 16)

	_, err := svc.DetectTumor(context.Background(), diskBlob(t))
	require.ErrorIs(t, err, entity.ErrSizeLimit)
	require.True(t, entity.IsClientFault(err))
	require.Zero(t, cls.calls.Load())

	_, err = svc.DetectTumor(context.Background(), "not base64 at all, but short")
	require.ErrorIs(t, err, entity.ErrSizeLimit)
}

func TestDetectionService_RejectsGrayscale(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	blob := base64.StdEncoding.EncodeToString(buf.Bytes())

	cls := &stubClassifier{probs: []float32{0.5, 0.5}}
	_, err := newService(cls, nil, nil, 0).DetectTumor(context.Background(), blob)
	require.ErrorIs(t, err, entity.ErrStructure)
	require.Zero(t, cls.calls.Load())
}

func TestDetectionService_DecodeError(t *testing.T) {
	_, err := newService(&stubClassifier{}, nil, nil, 0).DetectTumor(context.Background(), "!!!")
	require.ErrorIs(t, err, entity.ErrDecode)
}

func TestDetectionService_ClassifierFailure(t *testing.T) {
	cls := &stubClassifier{err: errors.New("model unavailable")}

	_, err := newService(cls, nil, nil, 0).DetectTumor(context.Background(), diskBlob(t))
	require.ErrorIs(t, err, entity.ErrInference)
	require.False(t, entity.IsClientFault(err))
}

func TestDetectionService_LogsFailedBranch(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	svc := newService(&stubClassifier{err: errors.New("model unavailable")}, nil, nil, 0)
	svc.log = log

	_, err := svc.DetectTumor(context.Background(), diskBlob(t))
	require.Error(t, err)

	byOperation := map[any]logrus.Level{}
	for _, e := range hook.AllEntries() {
		byOperation[e.Data["operation"]] = e.Level
	}
	require.Equal(t, logrus.WarnLevel, byOperation["classify"])
	require.Equal(t, logrus.WarnLevel, byOperation["detect_tumor"])
}

func TestDetectionService_AcceptsPNGWithAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			i := src.PixOffset(x, y)
			v := uint8(255)
			if (x-24)*(x-24)+(y-24)*(y-24) <= 10*10 {
				v = 0
			}
			src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = v, v, v, 255
		}
	}
	src.Pix[3] = 254

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	report, err := newService(&stubClassifier{probs: []float32{0.9, 0.1}}, nil, nil, 0).
		DetectTumor(context.Background(), base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	require.False(t, report.TumorDetected)
	require.False(t, report.Degenerate)
}

func TestDetectionService_DumpFailureIsSwallowed(t *testing.T) {
	dumper := &recordingDumper{err: errors.New("disk full")}
	svc := newService(&stubClassifier{probs: []float32{0.2, 0.8}}, dumper, nil, 0)

	report, err := svc.DetectTumor(context.Background(), diskBlob(t))
	require.NoError(t, err)
	require.NotEmpty(t, report.ProcessedImage)
}

func TestDetectionService_CachesReports(t *testing.T) {
	cls := &stubClassifier{probs: []float32{0.2, 0.8}}
	svc := newService(cls, nil, &mapCache{}, 0)
	blob := diskBlob(t)

	first, err := svc.DetectTumor(context.Background(), blob)
	require.NoError(t, err)
	second, err := svc.DetectTumor(context.Background(), blob)
	require.NoError(t, err)

	require.Equal(t, int32(1), cls.calls.Load())
	require.Equal(t, first.ProcessedImage, second.ProcessedImage)
	require.Equal(t, first.Prediction, second.Prediction)
}

func TestDetectionService_AnnotateFracture(t *testing.T) {
	dumper := &recordingDumper{}
	svc := newService(&stubClassifier{}, dumper, nil, 0)
	boxes := []entity.NormalizedBox{
		{X: 0.1, Y: 0.5, Width: 0.3, Height: 0.25, Confidence: 0.91, Label: "fracture"},
		{X: 0.5, Y: 0.5, Width: 0.25, Height: 0.25, Confidence: 0.4, Label: "fracture"},
	}

	report, err := svc.AnnotateFracture(context.Background(), FractureInput{ImageData: diskBlob(t), Boxes: boxes})
	require.NoError(t, err)
	require.Len(t, report.Boxes, 2)
	require.Equal(t, entity.RenderedBox{Index: 0, Label: "fracture", Text: "fracture 0.91", X1: 6, Y1: 32, X2: 25, Y2: 48}, report.Boxes[0])
	require.Equal(t, 1, report.Boxes[1].Index)
	require.Contains(t, dumper.files, FractureDumpName)
}

func TestDetectionService_AnnotateFractureValidation(t *testing.T) {
	svc := newService(&stubClassifier{}, nil, nil, 0)

	_, err := svc.AnnotateFracture(context.Background(), FractureInput{ImageData: diskBlob(t)})
	require.ErrorIs(t, err, entity.ErrValidation)

	_, err = svc.AnnotateFracture(context.Background(), FractureInput{
		ImageData: diskBlob(t),
		Boxes:     []entity.NormalizedBox{{X: 0.1, Y: 0.1, Width: 0, Height: 0.2, Label: "x"}},
	})
	require.ErrorIs(t, err, entity.ErrValidation)
	require.True(t, entity.IsClientFault(err))
}

func TestCacheKey_DependsOnAllParts(t *testing.T) {
	a := cacheKey("fracture", "img", 2)
	require.Equal(t, a, cacheKey("fracture", "img", 2))
	require.NotEqual(t, a, cacheKey("fracture", "img", -1))
	require.NotEqual(t, a, cacheKey("tumor", "img", 2))
}
