package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8000", cfg.Addr())
	require.Equal(t, int64(10*1024*1024), cfg.MaxImageSize)
	require.Equal(t, []string{"png", "jpg", "jpeg"}, cfg.AllowedExtensions)
	require.Equal(t, []string{"normal", "tumor"}, cfg.ClassLabels)
	require.Equal(t, 95, cfg.JPEGQuality)
	require.Equal(t, BackendRemote, cfg.ClassifierBackend)
	require.Equal(t, BackendNative, cfg.SegmenterBackend)
	require.Equal(t, 30*time.Second, cfg.InferenceTimeout)
	require.False(t, cfg.DebugDump)
	require.Equal(t, "./uploads", cfg.UploadDir)
	require.Equal(t, time.Minute, cfg.RequestTimeout)
	require.Equal(t, 40_000_000, cfg.MaxImagePixels)
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_IMAGE_SIZE", "2048")
	t.Setenv("ALLOWED_EXTENSIONS", " PNG , webp ")
	t.Setenv("DEBUG_DUMP", "true")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("SEGMENTER_BACKEND", "GoCV")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, int64(2048), cfg.MaxImageSize)
	require.Equal(t, []string{"png", "webp"}, cfg.AllowedExtensions)
	require.True(t, cfg.DebugDump)
	require.Equal(t, time.Minute, cfg.CacheTTL)
	require.Equal(t, BackendGoCV, cfg.SegmenterBackend)
}

func TestLoad_ReportsMalformedValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "eighty")
	t.Setenv("INFERENCE_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "PORT")
	require.Contains(t, err.Error(), "INFERENCE_TIMEOUT")
}

func TestConfig_Validate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.JPEGQuality = 0
	bad.ClassifierBackend = "torch"
	bad.ClassLabels = []string{"only"}
	err = bad.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JPEG_QUALITY")
	require.Contains(t, err.Error(), "CLASSIFIER_BACKEND")
	require.Contains(t, err.Error(), "CLASS_LABELS")
}
