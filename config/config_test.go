package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.5), cfg.ConfidenceFloor)
	assert.Equal(t, 7, cfg.PrefixLength)
	assert.Equal(t, time.Second, cfg.InvokeTimeout())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "lpr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
confidenceFloor: 0.65
backend: opencv
resampler: opencv
detector:
  modelPath: det.onnx
recognizer:
  modelPath: rec.onnx
  classMajor: true
notify:
  kafkaBrokers: [broker:9092]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float32(0.65), cfg.ConfidenceFloor)
	assert.Equal(t, BackendOpenCV, cfg.Backend)
	assert.Equal(t, "det.onnx", cfg.Detector.ModelPath)
	assert.Equal(t, "normalized_input_image_tensor", cfg.Detector.InputSlot, "unset keys keep defaults")
	assert.True(t, cfg.Recognizer.ClassMajor)
	assert.Equal(t, []string{"broker:9092"}, cfg.Notify.KafkaBrokers)
	assert.Equal(t, 94, cfg.CropWidth)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("absent.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LPR_CAMERA=/dev/video2\n"), 0o644))
	t.Setenv("LPR_LOG_MODE", "development")
	t.Setenv("LPR_METRICS_PORT", "9100")

	cfg, err := Load("absent.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/dev/video2", cfg.Camera.Device)
	assert.Equal(t, "development", cfg.LogMode)
	assert.Equal(t, 9100, cfg.MetricsPort)

	t.Setenv("LPR_METRICS_PORT", "nine")
	_, err = Load("absent.yaml")
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidenceFloor: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"floor above one":   func(c *Config) { c.ConfidenceFloor = 1.5 },
		"negative floor":    func(c *Config) { c.ConfidenceFloor = -0.1 },
		"zero frame":        func(c *Config) { c.FrameWidth = 0 },
		"zero crop":         func(c *Config) { c.CropHeight = 0 },
		"negative prefix":   func(c *Config) { c.PrefixLength = -1 },
		"no blank":          func(c *Config) { c.BlankToken = "" },
		"negative timeout":  func(c *Config) { c.InvokeTimeoutMs = -5 },
		"unknown backend":   func(c *Config) { c.Backend = "onnxruntime" },
		"unknown resampler": func(c *Config) { c.Resampler = "nearest" },
		"no model":          func(c *Config) { c.Recognizer.ModelPath = "" },
		"no scores slot":    func(c *Config) { c.Detector.ScoresSlot = "" },
		"no output slot":    func(c *Config) { c.Recognizer.OutputSlot = "" },
		"bad port":          func(c *Config) { c.MetricsPort = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it switches the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
