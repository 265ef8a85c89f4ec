package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/nextvm/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	Service       ServiceConfig  `mapstructure:"service" yaml:"service"`
	Executor      ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Executor modes.
const (
	ExecutorModeHTTP  = "http"
	ExecutorModeLocal = "local"
)

// ServiceConfig controls core service behavior.
type ServiceConfig struct {
	BufferMaxEntries int    `mapstructure:"buffer_max_entries" yaml:"buffer_max_entries"`
	Prompt           string `mapstructure:"prompt" yaml:"prompt"`
	Banner           string `mapstructure:"banner" yaml:"banner"`
}

// ExecutorConfig selects how submitted commands are executed.
//
// In "http" mode the service posts commands to Endpoint. An empty Endpoint
// means this server's own /api/execute, derived from http.addr and
// http.base_path. In "local" mode commands run in-process.
type ExecutorConfig struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Shell          string `mapstructure:"shell" yaml:"shell"`
	WorkingDir     string `mapstructure:"working_dir" yaml:"working_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	KillPrevious   bool   `mapstructure:"kill_previous" yaml:"kill_previous"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr             string  `mapstructure:"addr" yaml:"addr"`
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url"`
	BasePath         string  `mapstructure:"base_path" yaml:"base_path"`
	ExecuteRateLimit float64 `mapstructure:"execute_rate_limit" yaml:"execute_rate_limit"`
	ExecuteBurst     int     `mapstructure:"execute_burst" yaml:"execute_burst"`
	EnableMetrics    bool    `mapstructure:"enable_metrics" yaml:"enable_metrics"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Service: ServiceConfig{
			BufferMaxEntries: schema.DefaultBufferMaxEntries,
			Prompt:           schema.DefaultPrompt,
			Banner:           schema.DefaultBanner,
		},
		Executor: ExecutorConfig{
			Mode:           ExecutorModeHTTP,
			Endpoint:       "",
			Shell:          "zsh",
			WorkingDir:     home,
			TimeoutSeconds: 0,
			KillPrevious:   false,
		},
		HTTP: HTTPConfig{
			Addr:             ":27580",
			BaseURL:          "",
			BasePath:         "",
			ExecuteRateLimit: 20,
			ExecuteBurst:     40,
			EnableMetrics:    true,
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".nextvm", "config.yaml"), nil
}
