package schema

import (
	"errors"
	"strings"
)

// ServiceConfig defines defaults and limits for the session store.
type ServiceConfig struct {
	// BufferMaxEntries caps the number of entries kept per session log.
	BufferMaxEntries int
	// Prompt is the marker prefixed to echoed commands.
	Prompt string
	// Banner is the text shown at the top of a fresh or cleared session.
	Banner string
	// DisableAuditLogging disables audit trail debug logs for commands.
	DisableAuditLogging bool
}

// DefaultBufferMaxEntries is the default per-session log limit.
const DefaultBufferMaxEntries = 5000

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.BufferMaxEntries < 0 {
		return ServiceConfig{}, errors.New("buffer max entries must not be negative")
	}
	if cfg.BufferMaxEntries == 0 {
		cfg.BufferMaxEntries = DefaultBufferMaxEntries
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = DefaultPrompt
	}
	if strings.ContainsAny(cfg.Prompt, "\r\n") {
		return ServiceConfig{}, errors.New("prompt must be a single line")
	}
	if cfg.Banner == "" {
		cfg.Banner = DefaultBanner
	}
	return cfg, nil
}
