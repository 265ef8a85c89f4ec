package httpapi

// Config defines HTTP API and UI settings.
type Config struct {
	Addr     string
	BaseURL  string
	BasePath string
	// ExecuteRateLimit caps /api/execute requests per second. Zero disables the limit.
	ExecuteRateLimit float64
	ExecuteBurst     int
	// InitialLogEntries bounds the per-session log sent in stream snapshots.
	InitialLogEntries int
	// EnableMetrics exposes /metrics when a metrics collector is wired.
	EnableMetrics bool
}
