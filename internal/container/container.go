package container

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"medvision/config"
	app "medvision/internal/application"
	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
	"medvision/internal/infrastructure/classifier"
	"medvision/internal/infrastructure/codec"
	"medvision/internal/infrastructure/overlay"
	"medvision/internal/infrastructure/preprocess"
	"medvision/internal/infrastructure/storage"
	"medvision/internal/infrastructure/vision"
)

type Container struct {
	UserService      *app.UserService
	DetectionService *app.DetectionService
	Users            *storage.MemoryUserRepository
	Health           port.HealthChecker // nil, если модель исполняется локально

	closers []io.Closer
}

// New собирает сервисы приложения по конфигурации.
func New(cfg *config.Config, log *logrus.Logger) (*Container, error) {
	if cfg.SegmenterBackend == config.BackendGoCV && !vision.GoCVAvailable {
		return nil, fmt.Errorf("segmenter backend %q: gocv build tag is not enabled", cfg.SegmenterBackend)
	}

	c := &Container{Users: storage.NewMemoryUserRepository()}

	cls, err := c.classifier(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var segmenter port.Segmenter = vision.NewWatershedSegmenter()
	if cfg.SegmenterBackend == config.BackendGoCV {
		segmenter = vision.NewGoCVSegmenter()
	}

	deps := app.DetectionDeps{
		Codec:        codec.New(cfg.JPEGQuality, cfg.AllowedExtensions, cfg.MaxImagePixels),
		Guard:        codec.NewGuard(cfg.MaxImageSize),
		Preprocessor: preprocess.New(preprocess.DefaultSize),
		Classifier:   cls,
		Segmenter:    segmenter,
		Renderer:     overlay.NewRenderer(),
		Labels:       cfg.ClassLabels,
		BoxColor:     entity.ColorGreen,
		BoxThickness: overlay.DefaultThickness,
		CacheTTL:     cfg.CacheTTL,
		Log:          log,
	}

	if cfg.DebugDump {
		dumper, err := c.dumper(cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Dumper = dumper
	}

	if cfg.RedisAddress != "" {
		cache := storage.NewRedisCache(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, log)
		c.closers = append(c.closers, cache)
		deps.Cache = cache
	}

	c.UserService = app.NewUserService(c.Users)
	c.DetectionService = app.NewDetectionService(deps)
	return c, nil
}

func (c *Container) classifier(cfg *config.Config) (port.Classifier, error) {
	if cfg.ClassifierBackend == config.BackendDNN {
		dnn, err := classifier.NewDNNClassifier(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
		}
		c.closers = append(c.closers, dnn)
		return dnn, nil
	}
	remote := classifier.NewRemoteClassifier(cfg.InferenceURL, cfg.InferenceTimeout)
	c.Health = remote
	return remote, nil
}

func (c *Container) dumper(cfg *config.Config) (port.DebugDumper, error) {
	if cfg.DebugDumpS3Bucket == "" {
		return storage.NewLocalDumper(cfg.UploadDir), nil
	}
	s3, err := storage.NewS3Dumper(storage.S3Config{
		Bucket:          cfg.DebugDumpS3Bucket,
		Prefix:          "debug",
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
		Endpoint:        cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 debug dump: %w", err)
	}
	return s3, nil
}

// Close освобождает модель и соединения.
func (c *Container) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
