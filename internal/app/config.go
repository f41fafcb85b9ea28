package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the terminal.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:"127.0.0.1:8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	// A zero write timeout keeps the SSE event stream open indefinitely.
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"0"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	BackendURL     string        `envconfig:"BACKEND_URL" required:"true"`
	BackendToken   string        `envconfig:"BACKEND_TOKEN" default:""`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`

	CameraStreamURL string        `envconfig:"CAMERA_STREAM_URL" default:"http://127.0.0.1:8081/stream"`
	ScanInterval    time.Duration `envconfig:"SCAN_INTERVAL" default:"100ms"`
	ScanDebounce    time.Duration `envconfig:"SCAN_DEBOUNCE" default:"2s"`
	ScanFormats     []string      `envconfig:"SCAN_FORMATS" default:"ean_13,ean_8,upc_a,upc_e,code_128,code_39,code_93,codabar,i2of5"`

	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	ScanHistorySize int           `envconfig:"SCAN_HISTORY_SIZE" default:"50"`
	ToastTTL        time.Duration `envconfig:"TOAST_TTL" default:"3s"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("backend url must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the terminal runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
