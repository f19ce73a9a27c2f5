package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API         APIConfig         `yaml:"api"`
	Farmer      FarmerConfig      `yaml:"farmer"`
	Capture     CaptureConfig     `yaml:"capture"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Server      ServerConfig      `yaml:"server"`
	Pushover    PushoverConfig    `yaml:"pushover"`
	Log         LogConfig         `yaml:"log"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// Variant selects the transcription flow: complete, two_step or whisper.
	Variant string `yaml:"variant" validate:"oneof=complete two_step whisper"`
	Timeout string `yaml:"timeout"`
}

type FarmerConfig struct {
	Mobile string `yaml:"mobile"`
}

type CaptureConfig struct {
	Source     string `yaml:"source" validate:"oneof=microphone file"`
	FileDir    string `yaml:"file_dir"`
	SampleRate int    `yaml:"sample_rate" validate:"gt=0"`
	MaxSeconds int    `yaml:"max_seconds" validate:"gte=0"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key" validate:"required_if=Enabled true"`
	Model  string `yaml:"model"`

	// Enabled is derived from api.variant.
	Enabled bool `yaml:"-"`
}

type PreferencesConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type PushoverConfig struct {
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
	UserKey string `yaml:"user_key" validate:"required_if=Enabled true"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`

	// Dir enables a rotating log file alongside stdout.
	Dir string `yaml:"dir"`
}

// Load reads the YAML config at path. A .env file next to it, if present,
// is loaded first so ${VAR} references can resolve against it.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000/api"
	}
	if c.API.Variant == "" {
		c.API.Variant = "complete"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "60s"
	}
	if c.Capture.Source == "" {
		c.Capture.Source = "microphone"
	}
	if c.Capture.FileDir == "" {
		c.Capture.FileDir = "./audio"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.MaxSeconds == 0 {
		c.Capture.MaxSeconds = 120
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}
	c.OpenAI.Enabled = c.API.Variant == "whisper"
	if c.Preferences.Path == "" {
		c.Preferences.Path = "./data/preferences.yaml"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
}
