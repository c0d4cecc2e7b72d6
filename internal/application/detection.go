package app

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
	"medvision/internal/infrastructure/telemetry"
)

const (
	TumorDumpName    = "debug_tumor.jpg"
	FractureDumpName = "debug_fracture.jpg"

	// TumorClassIndex: индекс класса «опухоль» в выходе модели.
	TumorClassIndex = 1
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DetectionDeps: зависимости DetectionService. Dumper и Cache необязательны.
type DetectionDeps struct {
	Codec        port.ImageCodec
	Guard        port.InputGuard
	Preprocessor port.Preprocessor
	Classifier   port.Classifier
	Segmenter    port.Segmenter
	Renderer     port.BoxRenderer
	Dumper       port.DebugDumper
	Cache        port.ResultCache
	CacheTTL     time.Duration
	Labels       []string
	BoxColor     entity.RGB
	BoxThickness int
	Log          logrus.FieldLogger
}

// DetectionService выполняет сценарии «классифицировать и сегментировать» и «нанести рамки».
type DetectionService struct {
	deps DetectionDeps
	log  logrus.FieldLogger
}

// NewDetectionService создаёт сервис; толщина рамки 0 заменяется значением 2.
func NewDetectionService(deps DetectionDeps) *DetectionService {
	if deps.BoxThickness == 0 {
		deps.BoxThickness = 2
	}
	log := deps.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &DetectionService{deps: deps, log: log}
}

// FractureInput: запрос на нанесение рамок.
type FractureInput struct {
	ImageData string
	Boxes     []entity.NormalizedBox
	Color     *entity.RGB // nil: цвет сервиса по умолчанию
	Thickness int         // 0 даёт толщину по умолчанию, entity.Filled заливку
}

// DetectTumor классифицирует снимок и одновременно подсвечивает границу области водоразделом.
func (s *DetectionService) DetectTumor(ctx context.Context, imageData string) (report *entity.TumorReport, err error) {
	sw := telemetry.Start(s.log, "detect_tumor")
	defer func() {
		elapsed := sw.Stop(err)
		if report != nil {
			report.Elapsed = elapsed
		}
	}()

	key := cacheKey("tumor", imageData)
	if cached := new(entity.TumorReport); s.cacheGet(ctx, key, cached) {
		return cached, nil
	}

	img, err := s.load(imageData)
	if err != nil {
		return nil, err
	}

	var (
		pred entity.Prediction
		seg  *entity.SegmentationResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := telemetry.Measure(s.log, "classify", func() error {
			tensor, err := s.deps.Preprocessor.Prepare(img)
			if err != nil {
				return withKind(err, entity.KindPreprocess)
			}
			probs, err := s.deps.Classifier.Classify(gctx, tensor)
			if err != nil {
				return withKind(err, entity.KindInference)
			}
			pred, err = entity.NewPrediction(probs, s.deps.Labels)
			if err != nil {
				return entity.NewError(entity.KindInference, "invalid model output", err)
			}
			return nil
		})
		return err
	})
	g.Go(func() error {
		_, err := telemetry.Measure(s.log, "segment", func() error {
			var err error
			seg, err = s.deps.Segmenter.Segment(img)
			return withKind(err, entity.KindSegmentation)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	processed, err := s.finish(ctx, seg.Image, TumorDumpName)
	if err != nil {
		return nil, err
	}

	report = &entity.TumorReport{
		ProcessedImage: processed,
		TumorDetected:  pred.LabelIndex == TumorClassIndex,
		Prediction:     pred,
		Degenerate:     seg.Degenerate,
	}
	s.log.WithFields(logrus.Fields{
		"label":      pred.Label,
		"confidence": pred.Confidence,
		"degenerate": seg.Degenerate,
		"regions":    seg.Regions,
	}).Info("tumor detection finished")

	s.cacheSet(ctx, key, report)
	return report, nil
}

// AnnotateFracture рисует рамки в заданном порядке и возвращает манифест отрисовки.
func (s *DetectionService) AnnotateFracture(ctx context.Context, in FractureInput) (report *entity.FractureReport, err error) {
	sw := telemetry.Start(s.log, "annotate_fracture")
	defer func() {
		elapsed := sw.Stop(err)
		if report != nil {
			report.Elapsed = elapsed
		}
	}()

	if len(in.Boxes) == 0 {
		return nil, entity.NewError(entity.KindValidation, "bounding_boxes must not be empty", nil)
	}
	if err := entity.ValidateBoxes(in.Boxes); err != nil {
		return nil, entity.NewError(entity.KindValidation, "", err)
	}
	color := s.deps.BoxColor
	if in.Color != nil {
		color = *in.Color
	}
	thickness := in.Thickness
	if thickness == 0 {
		thickness = s.deps.BoxThickness
	}

	key := cacheKey("fracture", in.ImageData, in.Boxes, color, thickness)
	if cached := new(entity.FractureReport); s.cacheGet(ctx, key, cached) {
		return cached, nil
	}

	img, err := s.load(in.ImageData)
	if err != nil {
		return nil, err
	}

	ann, err := s.deps.Renderer.DrawBoxes(img, in.Boxes, color, thickness)
	if err != nil {
		return nil, withKind(err, entity.KindRender)
	}

	processed, err := s.finish(ctx, ann.Image, FractureDumpName)
	if err != nil {
		return nil, err
	}

	report = &entity.FractureReport{ProcessedImage: processed, Boxes: ann.Boxes}
	s.log.WithField("boxes", len(ann.Boxes)).Info("fracture annotation finished")

	s.cacheSet(ctx, key, report)
	return report, nil
}

// load проверяет размер до декодирования, затем структуру изображения.
func (s *DetectionService) load(imageData string) (*entity.RawImage, error) {
	if err := s.deps.Guard.EnsureSize(imageData); err != nil {
		return nil, err
	}
	img, err := s.deps.Codec.Decode(imageData)
	if err != nil {
		return nil, withKind(err, entity.KindDecode)
	}
	if err := s.deps.Guard.EnsureStructure(img); err != nil {
		return nil, err
	}
	return img, nil
}

// finish кодирует результат и сохраняет отладочный снимок; ошибка записи снимка не прерывает запрос.
func (s *DetectionService) finish(ctx context.Context, img *entity.RawImage, dumpName string) (string, error) {
	data, err := s.deps.Codec.EncodeJPEG(img)
	if err != nil {
		return "", withKind(err, entity.KindEncode)
	}
	if s.deps.Dumper != nil {
		if err := s.deps.Dumper.Dump(ctx, dumpName, data); err != nil {
			s.log.WithError(err).WithField("file", dumpName).Warn("debug dump failed")
		}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *DetectionService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.deps.Cache == nil {
		return false
	}
	data, ok, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("result cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.WithError(err).Warn("result cache entry is corrupted")
		return false
	}
	s.log.Debug("result cache hit")
	return true
}

func (s *DetectionService) cacheSet(ctx context.Context, key string, value any) {
	if s.deps.Cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.log.WithError(err).Warn("result cache encode failed")
		return
	}
	if err := s.deps.Cache.Set(ctx, key, data, s.deps.CacheTTL); err != nil {
		s.log.WithError(err).Warn("result cache write failed")
	}
}

// cacheKey: SHA-256 от сценария и всех входных данных, влияющих на ответ.
func cacheKey(operation string, parts ...any) string {
	h := sha256.New()
	h.Write([]byte(operation))
	enc := json.NewEncoder(h)
	for _, p := range parts {
		_ = enc.Encode(p)
	}
	return operation + ":" + hex.EncodeToString(h.Sum(nil))
}

// withKind присваивает категорию ошибкам, пришедшим без неё.
func withKind(err error, kind entity.ErrorKind) error {
	if err == nil {
		return nil
	}
	var pe *entity.PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return entity.NewError(kind, "", err)
}
