package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Host    string `toml:"host" mapstructure:"host"`
	Port    string `toml:"port" mapstructure:"port"`
	Libonnx string `toml:"libonnx" mapstructure:"libonnx"`
	Workers int    `toml:"workers" mapstructure:"workers"`

	ModelUrl    string `toml:"model_url" mapstructure:"model_url"`
	LabelsFile  string `toml:"labels_file" mapstructure:"labels_file"`
	InputLayout string `toml:"input_layout" mapstructure:"input_layout"`

	BucketName      string `toml:"bucket_name" mapstructure:"bucket_name"`
	CredentialsFile string `toml:"credentials_file" mapstructure:"credentials_file"`

	ApiBaseUrl     string   `toml:"api_base_url" mapstructure:"api_base_url"`
	RequestTimeout Duration `toml:"request_timeout" mapstructure:"request_timeout"`

	// EarlyFormValidation checks historyName/userId before the image is uploaded.
	EarlyFormValidation bool `toml:"early_form_validation" mapstructure:"early_form_validation"`
}

// Duration reads TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

func Default() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            "8080",
		Workers:         1,
		InputLayout:     LayoutNHWC,
		CredentialsFile: "key.json",
		ApiBaseUrl:      "https://web-service-dot-medikan.et.r.appspot.com",
		RequestTimeout:  Duration{30 * time.Second},
	}
}

// Load reads path (if present) over the defaults and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return c, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return c, fmt.Errorf("failed to read %s: %w", path, err)
			}
			if err := toml.Unmarshal(data, &c); err != nil {
				return c, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, nil
}

func applyEnv(c *Config) error {
	setString(&c.ModelUrl, "MODEL_URL")
	setString(&c.BucketName, "GCS_BUCKET_NAME")
	setString(&c.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.ApiBaseUrl, "API_BASE_URL")
	setString(&c.Host, "HOST")
	setString(&c.Port, "PORT")
	setString(&c.Libonnx, "LIBONNX")
	setString(&c.LabelsFile, "LABELS_FILE")
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.RequestTimeout = Duration{d}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports every missing or malformed required option at once.
func (c Config) Validate() error {
	var errs []error
	if c.ModelUrl == "" {
		errs = append(errs, errors.New("model_url is required"))
	}
	if c.BucketName == "" {
		errs = append(errs, errors.New("bucket_name is required"))
	}
	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("credentials_file is required"))
	} else if _, err := os.Stat(c.CredentialsFile); err != nil {
		errs = append(errs, fmt.Errorf("credentials_file: %w", err))
	}
	if c.ApiBaseUrl == "" {
		errs = append(errs, errors.New("api_base_url is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.RequestTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	switch strings.ToLower(c.InputLayout) {
	case LayoutNHWC, LayoutNCHW:
	default:
		errs = append(errs, fmt.Errorf("unknown input_layout %q", c.InputLayout))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
