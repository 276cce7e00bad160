package conf

import "time"

// Bootstrap is the root configuration for the ProjectHub AI backend.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	OpenRouter *OpenRouter
	Resilience *Resilience
	Log        *Log
}

// Server holds transport configuration.
type Server struct {
	Http *ServerHTTP
}

// ServerHTTP holds HTTP server configuration.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout time.Duration
	// ApiKey, when set, is required as a Bearer token on every request.
	ApiKey string
}

// Data holds data layer configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database holds MySQL connection configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds Redis connection configuration.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// OpenRouter holds configuration for the external AI routing API.
type OpenRouter struct {
	BaseURL string
	ApiKey  string
	// DefaultModel is the model used when the caller does not specify one.
	DefaultModel string
	// RequestTimeout bounds a single chat completion call.
	RequestTimeout time.Duration
	// ProxyURL optionally routes API traffic through a SOCKS5/HTTP proxy.
	ProxyURL string
}

// Resilience holds the knobs of the AI-operation recovery core.
type Resilience struct {
	Retry     *Retry
	Breaker   *Breaker
	Budget    *Budget
	RateLimit *RateLimit
	// EnableDegradation allows serving degraded responses when the budget
	// is critical instead of failing the request.
	EnableDegradation bool
	// AutoFallback enables the cached/knowledge-base fallback chain when
	// the primary AI operation is exhausted.
	AutoFallback bool
}

// Retry holds default retry behavior. Individual calls may override these.
type Retry struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// Breaker holds circuit breaker thresholds.
type Breaker struct {
	FailureThreshold int
	CooldownPeriod   time.Duration
}

// Budget holds budget gate thresholds.
type Budget struct {
	WarningThreshold  float64
	CriticalThreshold float64
}

// RateLimit holds per-user request throttling limits. Zero disables a limit.
type RateLimit struct {
	// UserRPM caps assistant requests per user per minute.
	UserRPM int32
	// UserTPM caps AI tokens per user per minute.
	UserTPM int32
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
