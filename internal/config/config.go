package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone used for human-readable local time
	// strings in event descriptions (e.g. "Europe/Berlin"). The canonical
	// event times stay in UTC regardless of this setting.
	Timezone string `yaml:"timezone" json:"timezone"`

	// CalendarName is used as the ICS PRODID / calendar display name.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// DefaultDurationMinutes is applied when a timed roster entry has a
	// start but no end. The roster gives no signal about true duty
	// length, so this is a fixed policy value.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// OCRModel transcribes the roster image to text.
	OCRModel string `yaml:"ocr_model" json:"ocr_model"`

	// ParseModel turns the transcription into structured roster JSON.
	ParseModel string `yaml:"parse_model" json:"parse_model"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:               "Europe/Berlin",
		CalendarName:           "Roster",
		DefaultDurationMinutes: 60,
		OCRModel:               "gpt-4.1",
		ParseModel:             "gpt-5.1",
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.CalendarName == "" {
		c.CalendarName = "Roster"
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = 60
	}
	if c.OCRModel == "" {
		c.OCRModel = "gpt-4.1"
	}
	if c.ParseModel == "" {
		c.ParseModel = "gpt-5.1"
	}
}

// DefaultDuration returns the configured fallback duration for timed
// events that are missing an end.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     (creating the parent directory) and return the defaults.
//   - If the file exists, read YAML, unmarshal and normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ros2cal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// APIKey returns the OpenAI API key from the environment, loading a
// .env file first if one is present. Credentials never live in the
// YAML config file.
func APIKey() string {
	_ = godotenv.Load()
	return os.Getenv("OPENAI_API_KEY")
}
