package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nkurosawa/taskrelay/internal/model"
	"github.com/nkurosawa/taskrelay/internal/remote"
)

const (
	defaultListenAddr   = ":8080"
	defaultGlobalDomain = "api.nodehub.ai"
	defaultCNDomain     = "api.nodehub.cn"
	defaultAcceptCodes  = "421,801"
	defaultHTTPTimeout  = 30 * time.Second

	envListenAddr   = "TASKRELAY_LISTEN_ADDR"
	envLogLevel     = "TASKRELAY_LOG_LEVEL"
	envAPIKey       = "TASKRELAY_API_KEY"
	envGlobalDomain = "TASKRELAY_GLOBAL_DOMAIN"
	envGlobalHost   = "TASKRELAY_GLOBAL_HOST"
	envCNDomain     = "TASKRELAY_CN_DOMAIN"
	envCNHost       = "TASKRELAY_CN_HOST"
	envAcceptCodes  = "TASKRELAY_ACCEPT_CODES"
	envHTTPTimeout  = "TASKRELAY_HTTP_TIMEOUT_S"
	envPollInterval = "TASKRELAY_POLL_INTERVAL_MS"
	envMaxAttempts  = "TASKRELAY_POLL_MAX_ATTEMPTS"
	envMaxUpload    = "TASKRELAY_MAX_UPLOAD_BYTES"
	envDominant     = "TASKRELAY_DOMINANT_BACKEND"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	LogLevel   slog.Level

	APIKey      string
	Regions     map[model.Region]remote.RegionConfig
	AcceptCodes map[int]bool

	HTTPTimeout    time.Duration
	PollInterval   time.Duration
	MaxAttempts    int
	MaxUploadBytes int64

	// Dominant is the backend kind lookups try first when the originating
	// kind is unknown.
	Dominant model.Kind
}

// Load reads configuration from environment variables with sensible
// defaults. The API key has no default; the server refuses to start
// without one.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		LogLevel:       slog.LevelInfo,
		APIKey:         os.Getenv(envAPIKey),
		AcceptCodes:    parseCodes(defaultAcceptCodes),
		HTTPTimeout:    defaultHTTPTimeout,
		PollInterval:   5 * time.Second,
		MaxAttempts:    60,
		MaxUploadBytes: remote.DefaultMaxUploadBytes,
		Dominant:       model.KindWorkflow,
	}

	globalDomain := getenv(envGlobalDomain, defaultGlobalDomain)
	cnDomain := getenv(envCNDomain, defaultCNDomain)
	cfg.Regions = map[model.Region]remote.RegionConfig{
		model.RegionGlobal: {
			BaseDomain: globalDomain,
			HostHeader: getenv(envGlobalHost, globalDomain),
		},
		model.RegionCN: {
			BaseDomain: cnDomain,
			HostHeader: getenv(envCNHost, cnDomain),
		},
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envAcceptCodes); v != "" {
		cfg.AcceptCodes = parseCodes(v)
	}
	if n, ok := intEnv(envHTTPTimeout); ok && n > 0 {
		cfg.HTTPTimeout = time.Duration(n) * time.Second
	}
	if n, ok := intEnv(envPollInterval); ok && n > 0 {
		cfg.PollInterval = time.Duration(n) * time.Millisecond
	}
	if n, ok := intEnv(envMaxAttempts); ok && n > 0 {
		cfg.MaxAttempts = n
	}
	if n, ok := intEnv(envMaxUpload); ok && n > 0 {
		cfg.MaxUploadBytes = int64(n)
	}
	if v := os.Getenv(envDominant); strings.EqualFold(v, string(model.KindApp)) {
		cfg.Dominant = model.KindApp
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseCodes parses a comma-separated list of envelope codes the provider
// documents as informational rather than fatal.
func parseCodes(s string) map[int]bool {
	codes := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			codes[n] = true
		}
	}
	return codes
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
