package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRemote = "remote"
	BackendDNN    = "dnn"
	BackendNative = "native"
	BackendGoCV   = "gocv"
)

type Config struct {
	Host  string
	Port  int
	Debug bool

	LogLevel string
	LogFile  string

	ModelPath         string
	ClassifierBackend string
	InferenceURL      string
	InferenceTimeout  time.Duration
	ClassLabels       []string
	SegmenterBackend  string

	MaxImageSize      int64
	MaxImagePixels    int
	AllowedExtensions []string
	JPEGQuality       int

	DebugDump         bool
	UploadDir         string
	DebugDumpS3Bucket string
	AWSRegion         string
	AWSAccessKeyID    string
	AWSSecretKey      string
	S3Endpoint        string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration

	TelegramToken string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Host:  env("HOST", "127.0.0.1"),
		Port:  envInt("PORT", 8000, &errs),
		Debug: envBool("DEBUG", false, &errs),

		LogLevel: env("LOG_LEVEL", "info"),
		LogFile:  env("LOG_FILE", "app.log"),

		ModelPath:         env("MODEL_PATH", "./models/brain_tumor_detector.onnx"),
		ClassifierBackend: strings.ToLower(env("CLASSIFIER_BACKEND", BackendRemote)),
		InferenceURL:      env("INFERENCE_URL", "http://localhost:8501/v1/models/brain_tumor"),
		InferenceTimeout:  envDuration("INFERENCE_TIMEOUT", 30*time.Second, &errs),
		ClassLabels:       envList("CLASS_LABELS", "normal,tumor"),
		SegmenterBackend:  strings.ToLower(env("SEGMENTER_BACKEND", BackendNative)),

		MaxImageSize:      int64(envInt("MAX_IMAGE_SIZE", 10*1024*1024, &errs)),
		MaxImagePixels:    envInt("MAX_IMAGE_PIXELS", 40_000_000, &errs),
		AllowedExtensions: envList("ALLOWED_EXTENSIONS", "png,jpg,jpeg"),
		JPEGQuality:       envInt("JPEG_QUALITY", 95, &errs),

		DebugDump:         envBool("DEBUG_DUMP", false, &errs),
		UploadDir:         env("UPLOAD_DIR", "./uploads"),
		DebugDumpS3Bucket: os.Getenv("DEBUG_DUMP_S3_BUCKET"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		AWSAccessKeyID:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0, &errs),
		CacheTTL:      envDuration("CACHE_TTL", 10*time.Minute, &errs),

		RateLimit:      envFloat("RATE_LIMIT", 20, &errs),
		RateBurst:      envInt("RATE_BURST", 40, &errs),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", time.Minute, &errs),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, с которыми сервис не сможет работать.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	if c.MaxImageSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_SIZE must be positive, got %d", c.MaxImageSize))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("JPEG_QUALITY must be in 1..100, got %d", c.JPEGQuality))
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("ALLOWED_EXTENSIONS must not be empty"))
	}
	if len(c.ClassLabels) < 2 {
		errs = append(errs, errors.New("CLASS_LABELS must name at least two classes"))
	}
	switch c.ClassifierBackend {
	case BackendRemote:
		if c.InferenceURL == "" {
			errs = append(errs, errors.New("INFERENCE_URL is required for the remote classifier"))
		}
	case BackendDNN:
		if c.ModelPath == "" {
			errs = append(errs, errors.New("MODEL_PATH is required for the dnn classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_BACKEND must be %q or %q, got %q", BackendRemote, BackendDNN, c.ClassifierBackend))
	}
	if c.SegmenterBackend != BackendNative && c.SegmenterBackend != BackendGoCV {
		errs = append(errs, fmt.Errorf("SEGMENTER_BACKEND must be %q or %q, got %q", BackendNative, BackendGoCV, c.SegmenterBackend))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT and RATE_BURST must not be negative"))
	}
	if c.DebugDump && c.DebugDumpS3Bucket == "" && c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR is required when DEBUG_DUMP is enabled"))
	}
	return errors.Join(errs...)
}

// Addr возвращает адрес для HTTP-сервера.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := env(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := env(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func envBool(key string, def bool, errs *[]error) bool {
	v := env(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := env(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func envList(key, def string) []string {
	var out []string
	for _, part := range strings.Split(env(key, def), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
