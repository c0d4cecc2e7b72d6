package rest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	app "medvision/internal/application"
	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

const (
	Version = "1.0.0"

	// запас на base64 и JSON поверх MAX_IMAGE_SIZE; точная проверка размера делается Input Guard
	bodyOverhead = 1024 * 1024
)

// Detector: сценарии сервиса, доступные по HTTP.
type Detector interface {
	DetectTumor(ctx context.Context, imageData string) (*entity.TumorReport, error)
	AnnotateFracture(ctx context.Context, in app.FractureInput) (*entity.FractureReport, error)
}

type Options struct {
	MaxImageSize   int64
	RateLimit      float64 // запросов в секунду с одного IP; 0: без ограничения
	RateBurst      int
	RequestTimeout time.Duration
}

type Server struct {
	app       *fiber.App
	detector  Detector
	health    port.HealthChecker
	validator *validator.Validate
	errors    *errorHandler
	timeout   time.Duration
	log       logrus.FieldLogger
}

// NewServer собирает fiber-приложение с маршрутами сервиса. health может быть nil.
func NewServer(opts Options, detector Detector, health port.HealthChecker, log logrus.FieldLogger) *Server {
	s := &Server{
		detector:  detector,
		health:    health,
		validator: newValidator(),
		errors:    &errorHandler{log: log},
		timeout:   opts.RequestTimeout,
		log:       log,
	}

	bodyLimit := int(opts.MaxImageSize*4/3) + bodyOverhead
	s.app = fiber.New(fiber.Config{
		AppName:       "Medical Imaging API",
		BodyLimit:     bodyLimit,
		StrictRouting: true,
		CaseSensitive: true,
		JSONEncoder:   jsoniter.Marshal,
		JSONDecoder:   jsoniter.Unmarshal,
		ErrorHandler:  s.errors.fallback,
	})

	s.app.Use(requestID())
	s.app.Use(accessLog(log))
	if opts.RateLimit > 0 {
		s.app.Use(newRateLimiter(opts.RateLimit, opts.RateBurst, log).handler)
	}

	s.app.Get("/", s.Health)
	api := s.app.Group("/api")
	api.Post("/detect-brain-tumor", s.DetectBrainTumor)
	api.Post("/process-bone-fracture", s.ProcessBoneFracture)
	return s
}

// App возвращает fiber-приложение, например для app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.WithField("addr", addr).Info("http server is listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Health отвечает healthy, пока доступен удалённый классификатор (если он используется).
func (s *Server) Health(c *fiber.Ctx) error {
	if s.health != nil {
		if err := s.health.CheckHealth(c.UserContext()); err != nil {
			s.log.WithError(err).Warn("classifier health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
				Status:  "unhealthy",
				Message: err.Error(),
				Version: Version,
			})
		}
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Message: "Medical Imaging API is running",
		Version: Version,
	})
}

func (s *Server) DetectBrainTumor(c *fiber.Ctx) error {
	req, err := s.parse(c)
	if err != nil {
		return s.errors.badRequest(c, err.Error())
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	report, err := s.detector.DetectTumor(ctx, req.ImageData)
	if err != nil {
		return s.errors.handle(c, err, "detect_tumor")
	}
	return c.JSON(newTumorResponse(report))
}

func (s *Server) ProcessBoneFracture(c *fiber.Ctx) error {
	req, err := s.parse(c)
	if err != nil {
		return s.errors.badRequest(c, err.Error())
	}
	if len(req.BoundingBoxes) == 0 {
		return s.errors.badRequest(c, "bounding_boxes are required for fracture annotation")
	}
	boxes, err := req.boxes()
	if err != nil {
		return s.errors.badRequest(c, err.Error())
	}
	color, err := req.color()
	if err != nil {
		return s.errors.badRequest(c, err.Error())
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	report, err := s.detector.AnnotateFracture(ctx, app.FractureInput{
		ImageData: req.ImageData,
		Boxes:     boxes,
		Color:     color,
		Thickness: req.Thickness,
	})
	if err != nil {
		return s.errors.handle(c, err, "annotate_fracture")
	}
	return c.JSON(newFractureResponse(report))
}

// parse разбирает и валидирует тело запроса.
func (s *Server) parse(c *fiber.Ctx) (*ImageRequest, error) {
	var req ImageRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, errors.New(validationDetail(err))
	}
	return &req, nil
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// newValidator называет поля в ошибках по JSON-тегам.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
