package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/surulere15/CONTINUUM-sub000/pkg/artifacts"
)

// Audit sink kinds.
const (
	SinkMemory   = "memory"
	SinkFile     = "file"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

// Config holds kernel process configuration.
type Config struct {
	LogLevel string

	AuditSink   string
	AuditPath   string
	DatabaseURL string

	// RedisAddr selects Redis-backed stabilization history. Empty keeps
	// history in memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OverridePublicKey is the base64 Ed25519 key trusted for human
	// override tokens. Empty disables rejection clearance.
	OverridePublicKey string
	// SigningSeed is the base64 Ed25519 seed for audit export signatures.
	// Empty generates an ephemeral key.
	SigningSeed string

	Archive artifacts.Config

	ProfilePath string
	CanonDir    string
	// CanonHead is the archive reference of the latest canon snapshot. It
	// restores canon history on restart and requires an archive backend.
	CanonHead string

	TelemetryEnabled bool
	OTLPEndpoint     string
	ServiceName      string
}

// Load loads configuration from environment variables.
func Load() *Config {
	sink := strings.ToLower(getenv("CONTINUUM_AUDIT_SINK", SinkMemory))
	defaultPath := "data/audit.jsonl"
	if sink == SinkSQLite {
		defaultPath = "data/audit.db"
	}

	region := os.Getenv("ARCHIVE_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	return &Config{
		LogLevel:          getenv("LOG_LEVEL", "INFO"),
		AuditSink:         sink,
		AuditPath:         getenv("CONTINUUM_AUDIT_PATH", defaultPath),
		DatabaseURL:       getenv("DATABASE_URL", "postgres://continuum@localhost:5432/continuum?sslmode=disable"),
		RedisAddr:         os.Getenv("CONTINUUM_REDIS_ADDR"),
		RedisPassword:     os.Getenv("CONTINUUM_REDIS_PASSWORD"),
		RedisDB:           getenvInt("CONTINUUM_REDIS_DB", 0),
		OverridePublicKey: os.Getenv("CONTINUUM_OVERRIDE_PUBLIC_KEY"),
		SigningSeed:       os.Getenv("CONTINUUM_SIGNING_SEED"),
		Archive: artifacts.Config{
			Backend:  artifacts.Backend(strings.ToLower(os.Getenv("ARCHIVE_BACKEND"))),
			Dir:      getenv("ARCHIVE_DIR", "data/archive"),
			Bucket:   os.Getenv("ARCHIVE_BUCKET"),
			Region:   region,
			Endpoint: os.Getenv("ARCHIVE_ENDPOINT"),
			Prefix:   os.Getenv("ARCHIVE_PREFIX"),
		},
		ProfilePath:      os.Getenv("CONTINUUM_PROFILE"),
		CanonDir:         os.Getenv("CONTINUUM_CANON_DIR"),
		CanonHead:        os.Getenv("CONTINUUM_CANON_HEAD"),
		TelemetryEnabled: os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:     getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:      getenv("OTEL_SERVICE_NAME", "continuum-kernel"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// NewLogger returns a JSON slog logger at level (DEBUG, INFO, WARN, ERROR).
// Unknown levels fall back to INFO.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
