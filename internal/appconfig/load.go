package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("service.buffer_max_entries", cfg.Service.BufferMaxEntries)
	v.SetDefault("service.prompt", cfg.Service.Prompt)
	v.SetDefault("service.banner", cfg.Service.Banner)
	v.SetDefault("executor.mode", cfg.Executor.Mode)
	v.SetDefault("executor.endpoint", cfg.Executor.Endpoint)
	v.SetDefault("executor.shell", cfg.Executor.Shell)
	v.SetDefault("executor.working_dir", cfg.Executor.WorkingDir)
	v.SetDefault("executor.timeout_seconds", cfg.Executor.TimeoutSeconds)
	v.SetDefault("executor.kill_previous", cfg.Executor.KillPrevious)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.execute_rate_limit", cfg.HTTP.ExecuteRateLimit)
	v.SetDefault("http.execute_burst", cfg.HTTP.ExecuteBurst)
	v.SetDefault("http.enable_metrics", cfg.HTTP.EnableMetrics)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateExecutorConfig(cfg.Executor); err != nil {
		return Config{}, err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	if cfg.Service.BufferMaxEntries < 0 {
		return Config{}, fmt.Errorf("service.buffer_max_entries must not be negative")
	}
	return cfg, nil
}

func validateExecutorConfig(cfg ExecutorConfig) error {
	switch cfg.Mode {
	case ExecutorModeHTTP:
		endpoint := strings.TrimSpace(cfg.Endpoint)
		if endpoint == "" {
			break
		}
		parsed, err := url.Parse(endpoint)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("executor.endpoint must be an http(s) URL when executor.mode is %q", ExecutorModeHTTP)
		}
	case ExecutorModeLocal:
	default:
		return fmt.Errorf("unsupported executor.mode %q", cfg.Mode)
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("executor.timeout_seconds must not be negative")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	if cfg.ExecuteRateLimit < 0 {
		return fmt.Errorf("http.execute_rate_limit must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Executor.Endpoint = expandEnv(cfg.Executor.Endpoint)
	cfg.Executor.Shell = expandEnv(cfg.Executor.Shell)
	cfg.Executor.WorkingDir = expandEnv(cfg.Executor.WorkingDir)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
