// Package config holds the composer configuration and its YAML loader.
package config

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Text         TextConfig         `yaml:"text"`
	Attachments  AttachmentsConfig  `yaml:"attachments"`
	LinkPreviews LinkPreviewsConfig `yaml:"link_previews"`
	Drafts       DraftsConfig       `yaml:"drafts"`
	Location     LocationConfig     `yaml:"location"`
	Poll         PollConfig         `yaml:"poll"`
	Log          LogConfig          `yaml:"log"`
}

type TextConfig struct {
	Enabled bool `yaml:"enabled"`
	// MaxLengthOnEdit truncates the text while typing. Zero disables the limit.
	MaxLengthOnEdit int `yaml:"max_length_on_edit"`
	// MaxLengthOnSend discards compositions with longer text. Zero disables the limit.
	MaxLengthOnSend int `yaml:"max_length_on_send"`
}

type AttachmentsConfig struct {
	MaxNumberOfFilesPerMessage int      `yaml:"max_number_of_files_per_message"`
	MaxConcurrentUploads       int      `yaml:"max_concurrent_uploads"`
	AcceptedFiles              []string `yaml:"accepted_files,omitempty"`
}

type LinkPreviewsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
	// CacheFreshFor and CacheTTL control the enrichment cache.
	CacheFreshFor time.Duration `yaml:"cache_fresh_for"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type DraftsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LocationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DeviceID string `yaml:"device_id"`
}

type PollConfig struct {
	MaxOptions int `yaml:"max_options"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Text: TextConfig{
			Enabled: true,
		},
		Attachments: AttachmentsConfig{
			MaxNumberOfFilesPerMessage: 10,
			MaxConcurrentUploads:       4,
		},
		LinkPreviews: LinkPreviewsConfig{
			Enabled:       false,
			Debounce:      1500 * time.Millisecond,
			CacheFreshFor: 5 * time.Minute,
			CacheTTL:      10 * time.Minute,
		},
		Drafts: DraftsConfig{
			Enabled: false,
		},
		Location: LocationConfig{
			Enabled: false,
		},
		Poll: PollConfig{
			MaxOptions: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config file (%s)", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decode config file (%s)", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "validate config")
	}

	return cfg, nil
}

// Save writes cfg as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrapf(err, "write config file (%s)", path)
	}

	return nil
}

func (c Config) Validate() error {
	if c.Attachments.MaxNumberOfFilesPerMessage < 0 {
		return errors.New("attachments.max_number_of_files_per_message must not be negative")
	}

	if c.Attachments.MaxConcurrentUploads < 0 {
		return errors.New("attachments.max_concurrent_uploads must not be negative")
	}

	if c.Text.MaxLengthOnSend < 0 || c.Text.MaxLengthOnEdit < 0 {
		return errors.New("text max lengths must not be negative")
	}

	if c.Poll.MaxOptions < 2 {
		return errors.New("poll.max_options must be at least 2")
	}

	return nil
}
