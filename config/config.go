// Package config holds the process configuration. It is built once by the
// command layer and handed to every component constructor.
package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	ClientID         string `mapstructure:"client_id"`
	ClientSecret     string `mapstructure:"client_secret"`
	AuthorizationAPI string `mapstructure:"authorization_api"`
	SignatureAPI     string `mapstructure:"signature_api"`
	Tenant           string `mapstructure:"tenant"`
	SignaturesNumber int    `mapstructure:"signatures_number"`
	UploadEnabled    bool   `mapstructure:"upload_enabled"`
	Spaces           Spaces `mapstructure:"spaces"`
	HTTP             HTTP   `mapstructure:"http"`
	Stamp            Stamp  `mapstructure:"stamp"`
	Debug            bool   `mapstructure:"debug"`
}

// Spaces configures the S3 compatible bucket signed documents are published to.
type Spaces struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

type HTTP struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
}

type Stamp struct {
	FontSize      int    `mapstructure:"font_size"`
	CaptionPrefix string `mapstructure:"caption_prefix"`
}

// Default returns the configuration defaults; credentials and endpoints are
// left empty.
func Default() Config {
	return Config{
		SignaturesNumber: 1,
		UploadEnabled:    true,
		HTTP: HTTP{
			Timeout:      60 * time.Second,
			RetryCount:   2,
			RetryWait:    500 * time.Millisecond,
			RetryMaxWait: 5 * time.Second,
		},
		Stamp: Stamp{
			FontSize:      8,
			CaptionPrefix: "Digitally signed by",
		},
	}
}

// Validate reports every missing or invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"client_id", c.ClientID},
		{"client_secret", c.ClientSecret},
		{"authorization_api", c.AuthorizationAPI},
		{"signature_api", c.SignatureAPI},
		{"tenant", c.Tenant},
	}
	if c.UploadEnabled {
		required = append(required, []struct {
			name  string
			value string
		}{
			{"spaces.access_key", c.Spaces.AccessKey},
			{"spaces.secret_key", c.Spaces.SecretKey},
			{"spaces.region", c.Spaces.Region},
			{"spaces.bucket", c.Spaces.Bucket},
			{"spaces.endpoint", c.Spaces.Endpoint},
		}...)
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if c.SignaturesNumber < 1 {
		errs = append(errs, fmt.Errorf("signatures_number must be at least 1, got %d", c.SignaturesNumber))
	}
	if c.HTTP.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("http.retry_count must not be negative, got %d", c.HTTP.RetryCount))
	}
	return errors.Join(errs...)
}
