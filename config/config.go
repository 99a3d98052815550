package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendTFLite = "tflite"
	BackendOpenCV = "opencv"

	ResamplerBilinear = "bilinear"
	ResamplerOpenCV   = "opencv"

	DefaultPath = "config.yaml"
)

type DetectorModel struct {
	ModelPath  string `yaml:"modelPath"`
	InputSlot  string `yaml:"inputSlot"`
	ScoresSlot string `yaml:"scoresSlot"`
	BoxesSlot  string `yaml:"boxesSlot"`
}

type RecognizerModel struct {
	ModelPath  string `yaml:"modelPath"`
	InputSlot  string `yaml:"inputSlot"`
	OutputSlot string `yaml:"outputSlot"`
	// ClassMajor is set for exports whose output is [1, classes, positions].
	ClassMajor bool `yaml:"classMajor"`
}

type Camera struct {
	Device        string `yaml:"device"`
	CaptureWidth  int    `yaml:"captureWidth"`
	CaptureHeight int    `yaml:"captureHeight"`
	FPS           int    `yaml:"fps"`
}

type Notify struct {
	WebhookURL     string   `yaml:"webhookURL"`
	KafkaBrokers   []string `yaml:"kafkaBrokers"`
	KafkaTopic     string   `yaml:"kafkaTopic"`
	QueueSize      int      `yaml:"queueSize"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
}

type Config struct {
	ConfidenceFloor float32 `yaml:"confidenceFloor"`
	FrameWidth      int     `yaml:"frameWidth"`
	FrameHeight     int     `yaml:"frameHeight"`
	CropWidth       int     `yaml:"cropWidth"`
	CropHeight      int     `yaml:"cropHeight"`
	PrefixLength    int     `yaml:"prefixLength"`
	VocabularyFile  string  `yaml:"vocabularyFile"`
	BlankToken      string  `yaml:"blankToken"`
	InvokeTimeoutMs int     `yaml:"invokeTimeoutMs"`

	Backend       string `yaml:"backend"`
	EdgeTPU       bool   `yaml:"edgetpu"`
	EdgeTPUDevice string `yaml:"edgetpuDevice"`
	NumThreads    int    `yaml:"numThreads"`
	Resampler     string `yaml:"resampler"`

	Detector   DetectorModel   `yaml:"detector"`
	Recognizer RecognizerModel `yaml:"recognizer"`
	Camera     Camera          `yaml:"camera"`
	Notify     Notify          `yaml:"notify"`

	MetricsPort int    `yaml:"metricsPort"`
	LogMode     string `yaml:"logMode"`
	LogLevel    string `yaml:"logLevel"`
}

// Default mirrors the deployment the models were compiled for.
func Default() Config {
	return Config{
		ConfidenceFloor: 0.5,
		FrameWidth:      320,
		FrameHeight:     240,
		CropWidth:       94,
		CropHeight:      24,
		PrefixLength:    7,
		BlankToken:      "_",
		InvokeTimeoutMs: 1000,
		Backend:         BackendTFLite,
		EdgeTPU:         true,
		NumThreads:      1,
		Resampler:       ResamplerBilinear,
		Detector: DetectorModel{
			ModelPath:  "ssdlite_ocr_edgetpu.tflite",
			InputSlot:  "normalized_input_image_tensor",
			ScoresSlot: "TFLite_Detection_PostProcess:2",
			BoxesSlot:  "TFLite_Detection_PostProcess",
		},
		Recognizer: RecognizerModel{
			ModelPath:  "lprnet_mod_edgetpu.tflite",
			InputSlot:  "input",
			OutputSlot: "output",
		},
		Camera: Camera{
			Device:        "0",
			CaptureWidth:  640,
			CaptureHeight: 480,
			FPS:           30,
		},
		Notify: Notify{
			KafkaTopic:     "plates",
			QueueSize:      64,
			TimeoutSeconds: 5,
		},
		LogMode:  "production",
		LogLevel: "info",
	}
}

// Load reads an optional .env, then path (missing file keeps the defaults),
// then applies environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if env := os.Getenv("LPR_CONFIG"); env != "" {
		path = env
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("LPR_CAMERA"); ok {
		c.Camera.Device = v
	}
	if v, ok := os.LookupEnv("LPR_LOG_MODE"); ok {
		c.LogMode = v
	}
	if v, ok := os.LookupEnv("LPR_METRICS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LPR_METRICS_PORT: %w", err)
		}
		c.MetricsPort = port
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		errs = append(errs, fmt.Errorf("confidenceFloor must be within [0,1], got %v", c.ConfidenceFloor))
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight))
	}
	if c.CropWidth <= 0 || c.CropHeight <= 0 {
		errs = append(errs, fmt.Errorf("crop size must be positive, got %dx%d", c.CropWidth, c.CropHeight))
	}
	if c.PrefixLength < 0 {
		errs = append(errs, fmt.Errorf("prefixLength must not be negative, got %d", c.PrefixLength))
	}
	if c.BlankToken == "" {
		errs = append(errs, errors.New("blankToken must be set"))
	}
	if c.InvokeTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("invokeTimeoutMs must not be negative, got %d", c.InvokeTimeoutMs))
	}
	switch c.Backend {
	case BackendTFLite, BackendOpenCV:
	default:
		errs = append(errs, fmt.Errorf("unsupported backend %q", c.Backend))
	}
	switch c.Resampler {
	case ResamplerBilinear, ResamplerOpenCV:
	default:
		errs = append(errs, fmt.Errorf("unsupported resampler %q", c.Resampler))
	}
	if c.Detector.ModelPath == "" || c.Recognizer.ModelPath == "" {
		errs = append(errs, errors.New("detector and recognizer modelPath must be set"))
	}
	if c.Detector.InputSlot == "" || c.Detector.ScoresSlot == "" || c.Detector.BoxesSlot == "" {
		errs = append(errs, errors.New("detector inputSlot, scoresSlot and boxesSlot must be set"))
	}
	if c.Recognizer.InputSlot == "" || c.Recognizer.OutputSlot == "" {
		errs = append(errs, errors.New("recognizer inputSlot and outputSlot must be set"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metricsPort out of range: %d", c.MetricsPort))
	}
	return errors.Join(errs...)
}

func (c Config) InvokeTimeout() time.Duration {
	return time.Duration(c.InvokeTimeoutMs) * time.Millisecond
}
