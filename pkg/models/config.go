package models

import "time"

// ArbiterPolicy controls how many signals one arbiter run renders.
type ArbiterPolicy string

const (
	PolicyAll   ArbiterPolicy = "all"
	PolicyFirst ArbiterPolicy = "first"
)

// ServerConfig locates the board server.
type ServerConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// MarkupConfig names the element ids, cookie and header the server uses for
// its feedback and anti-forgery contracts.
type MarkupConfig struct {
	CSRFMetaName   string `yaml:"csrf_meta_name" mapstructure:"csrf_meta_name"`
	CSRFHeader     string `yaml:"csrf_header" mapstructure:"csrf_header"`
	FlashCookie    string `yaml:"flash_cookie" mapstructure:"flash_cookie"`
	MarkerID       string `yaml:"marker_id" mapstructure:"marker_id"`
	ErrorElementID string `yaml:"error_element_id" mapstructure:"error_element_id"`
	SwapTarget     string `yaml:"swap_target" mapstructure:"swap_target"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file,omitempty" mapstructure:"file"`
}

// BoardConfig holds settings read from .boardconfig via Viper.
type BoardConfig struct {
	Server     ServerConfig  `yaml:"server" mapstructure:"server"`
	Markup     MarkupConfig  `yaml:"markup" mapstructure:"markup"`
	Policy     ArbiterPolicy `yaml:"arbiter_policy" mapstructure:"arbiter_policy"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
	EventsPath string        `yaml:"events_path" mapstructure:"events_path"`
	WebhookURL string        `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
}

// DefaultMarkup returns the markup contract of the board server.
func DefaultMarkup() MarkupConfig {
	return MarkupConfig{
		CSRFMetaName:   "csrf-token",
		CSRFHeader:     "X-CSRFToken",
		FlashCookie:    "flash_message",
		MarkerID:       "message-data",
		ErrorElementID: "error-message",
		SwapTarget:     "main-content",
	}
}
