// Package config loads the podoscan station configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the capture station. Values are read once at
// startup and injected into the components that need them.
type Config struct {
	LeftCameraID  int `env:"LEFT_CAMERA_ID"  envDefault:"0"`
	RightCameraID int `env:"RIGHT_CAMERA_ID" envDefault:"1"`
	FrameWidth    int `env:"FRAME_WIDTH"     envDefault:"640"`
	FrameHeight   int `env:"FRAME_HEIGHT"    envDefault:"480"`
	FPS           int `env:"FPS"             envDefault:"10"`

	CaptureDir   string `env:"CAPTURE_DIR"   envDefault:"captures"`
	FolderPrefix string `env:"FOLDER_PREFIX" envDefault:"patient"`
	DataDir      string `env:"DATA_DIR"      envDefault:""`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	WebDir   string `env:"WEB_DIR"   envDefault:""`
	Tray     bool   `env:"TRAY"      envDefault:"false"`

	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:""`

	Upload UploadConfig `envPrefix:"UPLOAD_"`

	Preprocess PreprocessConfig `envPrefix:"PREPROCESS_"`
	Heuristics HeuristicsConfig `envPrefix:"HEURISTICS_"`
}

// UploadConfig configures the MinIO upload sink.
type UploadConfig struct {
	Enabled     bool          `env:"ENABLED"      envDefault:"true"`
	Endpoint    string        `env:"ENDPOINT"     envDefault:"localhost:9000"`
	AccessKey   string        `env:"ACCESS_KEY"   envDefault:"minioadmin"`
	SecretKey   string        `env:"SECRET_KEY"   envDefault:"minioadmin"`
	UseSSL      bool          `env:"USE_SSL"      envDefault:"false"`
	Bucket      string        `env:"BUCKET"       envDefault:"podoscan"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay   time.Duration `env:"BASE_DELAY"   envDefault:"500ms"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"30s"`
}

// PreprocessConfig configures grayscale smoothing and adaptive binarization.
type PreprocessConfig struct {
	BlurKernel int     `env:"BLUR_KERNEL" envDefault:"5"`
	BlockSize  int     `env:"BLOCK_SIZE"  envDefault:"11"`
	BiasC      float64 `env:"BIAS_C"      envDefault:"2"`
	Adaptive   string  `env:"ADAPTIVE"    envDefault:"gaussian"`
}

// HeuristicsConfig holds the placeholder constants of the arch, fascia and
// metatarsal estimators. None of them is clinically derived.
type HeuristicsConfig struct {
	ArchHeightDivisor   float64 `env:"ARCH_HEIGHT_DIVISOR"  envDefault:"3"`
	FlatDivisor         float64 `env:"FLAT_DIVISOR"         envDefault:"6"`
	CavusDivisor        float64 `env:"CAVUS_DIVISOR"        envDefault:"3"`
	FasciaRatio         float64 `env:"FASCIA_RATIO"         envDefault:"0.8"`
	MetatarsalThreshold int     `env:"METATARSAL_THRESHOLD" envDefault:"200"`
}

// Load parses the environment (variables prefixed with PODOSCAN_) into a Config
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "PODOSCAN_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.LeftCameraID == c.RightCameraID {
		errs = append(errs, fmt.Errorf("left and right camera ids must differ (both %d)", c.LeftCameraID))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.CaptureDir == "" {
		errs = append(errs, errors.New("capture dir must not be empty"))
	}

	p := c.Preprocess
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("blur kernel must be odd and positive, got %d", p.BlurKernel))
	}
	if p.BlockSize < 3 || p.BlockSize%2 == 0 {
		errs = append(errs, fmt.Errorf("block size must be odd and >= 3, got %d", p.BlockSize))
	}
	if p.Adaptive != "gaussian" && p.Adaptive != "mean" {
		errs = append(errs, fmt.Errorf("adaptive method must be gaussian or mean, got %q", p.Adaptive))
	}

	h := c.Heuristics
	if h.ArchHeightDivisor <= 0 || h.FlatDivisor <= 0 || h.CavusDivisor <= 0 {
		errs = append(errs, errors.New("arch divisors must be positive"))
	}
	if h.FasciaRatio <= 0 {
		errs = append(errs, fmt.Errorf("fascia ratio must be positive, got %g", h.FasciaRatio))
	}
	if h.MetatarsalThreshold < 0 || h.MetatarsalThreshold > 255 {
		errs = append(errs, fmt.Errorf("metatarsal threshold must be within 0..255, got %d", h.MetatarsalThreshold))
	}

	if c.Upload.Enabled && c.Upload.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("upload attempts must be at least 1, got %d", c.Upload.MaxAttempts))
	}

	return errors.Join(errs...)
}
