package upload

import (
	"fmt"
	"strings"

	"github.com/kbukum/whisperserver/util"
)

// DefaultAllowedTypes is the MIME allow-list for uploaded audio.
var DefaultAllowedTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/wav",
	"audio/ogg",
	"audio/x-m4a",
	"audio/webm",
	"video/webm",
	"audio/flac",
}

// Config configures the upload receiver.
type Config struct {
	// MaxSize is the largest accepted audio part, e.g. "1GB".
	MaxSize string `yaml:"max_size" mapstructure:"max_size" validate:"required,size"`
	// AllowedTypes overrides DefaultAllowedTypes when non-empty.
	AllowedTypes []string `yaml:"allowed_types" mapstructure:"allowed_types"`
	// FileField is the multipart field carrying the audio.
	FileField string `yaml:"file_field" mapstructure:"file_field"`
	// TagField is the multipart field carrying the requester tag.
	TagField string `yaml:"tag_field" mapstructure:"tag_field"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.MaxSize == "" {
		c.MaxSize = "1GB"
	}
	if len(c.AllowedTypes) == 0 {
		c.AllowedTypes = append([]string(nil), DefaultAllowedTypes...)
	}
	if c.FileField == "" {
		c.FileField = "audio"
	}
	if c.TagField == "" {
		c.TagField = "username"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if util.ParseSize(c.MaxSize, -1) <= 0 {
		return fmt.Errorf("upload.max_size %q is not a valid size", c.MaxSize)
	}
	for _, t := range c.AllowedTypes {
		if !strings.Contains(t, "/") {
			return fmt.Errorf("upload.allowed_types: %q is not a MIME type", t)
		}
	}
	if c.FileField == c.TagField {
		return fmt.Errorf("upload.file_field and upload.tag_field must differ")
	}
	return nil
}
