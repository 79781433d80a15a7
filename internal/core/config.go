// Package core holds the configuration layer of the board client.
package core

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
	"github.com/spf13/viper"
)

// ConfigFileName is the base name of the configuration file (.boardconfig.yaml).
const ConfigFileName = ".boardconfig"

// ConfigurationManager defines the interface for loading and validating the
// client configuration from .boardconfig.
type ConfigurationManager interface {
	LoadConfig() (*models.BoardConfig, error)
	ValidateConfig(cfg *models.BoardConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .boardconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a BoardConfig populated with sensible defaults.
func DefaultConfig(basePath string) *models.BoardConfig {
	return &models.BoardConfig{
		Server: models.ServerConfig{
			URL:     "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Markup:     models.DefaultMarkup(),
		Policy:     models.PolicyAll,
		Log:        models.LogConfig{Level: "warn"},
		EventsPath: filepath.Join(basePath, ".board_events.jsonl"),
	}
}

// LoadConfig reads the .boardconfig file from the base path using Viper.
// If the file does not exist, defaults are returned. BOARD_SERVER_URL
// overrides server.url either way.
func (cm *viperConfigManager) LoadConfig() (*models.BoardConfig, error) {
	cfg := DefaultConfig(cm.basePath)

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("markup.csrf_meta_name", cfg.Markup.CSRFMetaName)
	v.SetDefault("markup.csrf_header", cfg.Markup.CSRFHeader)
	v.SetDefault("markup.flash_cookie", cfg.Markup.FlashCookie)
	v.SetDefault("markup.marker_id", cfg.Markup.MarkerID)
	v.SetDefault("markup.error_element_id", cfg.Markup.ErrorElementID)
	v.SetDefault("markup.swap_target", cfg.Markup.SwapTarget)
	v.SetDefault("arbiter_policy", string(cfg.Policy))
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("events_path", cfg.EventsPath)
	v.SetDefault("webhook_url", "")

	if err := v.BindEnv("server.url", "BOARD_SERVER_URL"); err != nil {
		return nil, fmt.Errorf("binding BOARD_SERVER_URL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Server.URL = v.GetString("server.url")
	cfg.Server.Timeout = v.GetDuration("server.timeout")
	cfg.Markup = models.MarkupConfig{
		CSRFMetaName:   v.GetString("markup.csrf_meta_name"),
		CSRFHeader:     v.GetString("markup.csrf_header"),
		FlashCookie:    v.GetString("markup.flash_cookie"),
		MarkerID:       v.GetString("markup.marker_id"),
		ErrorElementID: v.GetString("markup.error_element_id"),
		SwapTarget:     v.GetString("markup.swap_target"),
	}
	cfg.Policy = models.ArbiterPolicy(v.GetString("arbiter_policy"))
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.File = v.GetString("log.file")
	cfg.EventsPath = v.GetString("events_path")
	cfg.WebhookURL = v.GetString("webhook_url")

	return cfg, nil
}

var validPolicies = map[models.ArbiterPolicy]bool{
	models.PolicyAll:   true,
	models.PolicyFirst: true,
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true, "panic": true,
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.BoardConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if u, err := url.Parse(cfg.Server.URL); err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Sprintf("server.url %q must be an absolute http(s) url", cfg.Server.URL))
	}

	if cfg.Server.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.timeout must be positive, got %s", cfg.Server.Timeout))
	}

	if !validPolicies[cfg.Policy] {
		errs = append(errs, fmt.Sprintf("arbiter_policy %q is invalid, must be one of: all, first", cfg.Policy))
	}

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level %q is not a known level", cfg.Log.Level))
	}

	m := cfg.Markup
	for _, f := range []struct{ key, val string }{
		{"markup.csrf_meta_name", m.CSRFMetaName},
		{"markup.csrf_header", m.CSRFHeader},
		{"markup.flash_cookie", m.FlashCookie},
		{"markup.marker_id", m.MarkerID},
		{"markup.error_element_id", m.ErrorElementID},
		{"markup.swap_target", m.SwapTarget},
	} {
		if strings.TrimSpace(f.val) == "" {
			errs = append(errs, f.key+" must not be empty")
		}
	}

	if cfg.WebhookURL != "" {
		if u, err := url.Parse(cfg.WebhookURL); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Sprintf("webhook_url %q must be an absolute url", cfg.WebhookURL))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
