package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hm-edu/remotesign/config"
)

// envNames maps config keys to the environment variables of existing
// deployments.
var envNames = map[string]string{
	"client_id":              "CLIENT_ID",
	"client_secret":          "CLIENT_SECRET",
	"authorization_api":      "AUTHORIZATION_API",
	"signature_api":          "SIGNATURE_API",
	"tenant":                 "TENANT",
	"signatures_number":      "SIGNATURES_NUMBER",
	"upload_enabled":         "UPLOAD_ENABLED",
	"spaces.access_key":      "DO_SPACES_ACCESS_KEY",
	"spaces.secret_key":      "DO_SPACES_SECRET_KEY",
	"spaces.region":          "DO_SPACES_REGION",
	"spaces.bucket":          "DO_SPACES_BUCKET",
	"spaces.endpoint":        "DO_SPACES_ENDPOINT",
	"spaces.path_style":      "DO_SPACES_PATH_STYLE",
	"http.timeout":           "HTTP_TIMEOUT",
	"http.retry_count":       "HTTP_RETRY_COUNT",
	"http.retry_wait":        "HTTP_RETRY_WAIT",
	"http.retry_max_wait":    "HTTP_RETRY_MAX_WAIT",
	"stamp.font_size":        "STAMP_FONT_SIZE",
	"stamp.caption_prefix":   "STAMP_CAPTION_PREFIX",
	"session.username":       "SIGN_USERNAME",
	"session.password":       "SIGN_PASSWORD",
	"session.access_token":   "SIGN_ACCESS_TOKEN",
	"session.certificate_id": "SIGN_CERTIFICATE_ID",
	"session.pin":            "SIGN_PIN",
}

func setDefaults(v *viper.Viper) {
	d := config.Default()
	v.SetDefault("signatures_number", d.SignaturesNumber)
	v.SetDefault("upload_enabled", d.UploadEnabled)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.retry_count", d.HTTP.RetryCount)
	v.SetDefault("http.retry_wait", d.HTTP.RetryWait)
	v.SetDefault("http.retry_max_wait", d.HTTP.RetryMaxWait)
	v.SetDefault("stamp.font_size", d.Stamp.FontSize)
	v.SetDefault("stamp.caption_prefix", d.Stamp.CaptionPrefix)
}

// loadConfig reads remotesign.yaml, a .env file and the environment, in
// increasing precedence.
func loadConfig() (config.Config, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not read .env file", slog.Any("error", err))
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("remotesign")
	v.AddConfigPath("/etc/remotesign/")  // path to look for the config file in
	v.AddConfigPath("$HOME/remotesign/") // call multiple times to add many search paths
	v.AddConfigPath("/opt/remotesign/")
	v.AddConfigPath(".") // optionally look for config in the working directory
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return config.Config{}, nil, err
		}
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config.Config{}, nil, err
		}
		slog.Debug("No configuration file found")
	} else {
		slog.Debug("Using config file", slog.String("config", v.ConfigFileUsed()))
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, nil, err
	}
	cfg.Debug = debug
	return cfg, v, nil
}

func loadOrExit(cmd *cobra.Command) config.Config {
	cfg, v, err := loadConfig()
	if err != nil {
		slog.Error("Error reading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	applySessionDefaults(cmd, v)
	return cfg
}

// validateOrExit checks cfg. Storage settings are only checked when upload
// is true.
func validateOrExit(cfg config.Config, upload bool) {
	cfg.UploadEnabled = upload
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
}

func mustConfig(cmd *cobra.Command, upload bool) config.Config {
	cfg := loadOrExit(cmd)
	validateOrExit(cfg, upload)
	return cfg
}

// sessionKeys maps flags to the configuration keys they fall back to.
var sessionKeys = map[string]string{
	"username":       "session.username",
	"password":       "session.password",
	"token":          "session.access_token",
	"certificate-id": "session.certificate_id",
	"pin":            "session.pin",
}

// applySessionDefaults sets every unset session flag of cmd from the
// configuration.
func applySessionDefaults(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := sessionKeys[f.Name]
		if !ok || f.Changed || !v.IsSet(key) {
			return
		}
		if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(key))); err != nil {
			slog.Error("Failed to set flag", slog.String("flag", f.Name), slog.Any("error", err))
			os.Exit(1)
		}
	})
}
