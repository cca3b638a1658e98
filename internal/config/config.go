package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string // base URL used in shared exam links

	// Apps Script web app endpoint (the opaque backend)
	RemoteURL     string
	RetryMax      int
	RetryBackoff  time.Duration
	RemoteTimeout time.Duration // 0 = caller context only

	DBDriver string
	DBDSN    string

	BlobBasePath string

	AuthHMACSecret    string
	SessionSealSecret string

	// Quiz policy
	TabSwitchLimit    int
	PassThreshold     int // percent
	HeartbeatInterval time.Duration

	// AI tutor
	GeminiAPIKey string
	GeminiModel  string
	GeminiURL    string

	// Optional read cache
	RedisAddr string
	CacheTTL  time.Duration

	EnableGuest   bool
	EnableMetrics bool

	CORSOrigins []string
	LogLevel    string
}

// CacheEnabled reports whether the shared redis read cache should be used.
// Offline desks never dial it.
func (c Config) CacheEnabled() bool {
	return c.Mode == ModeOnline && c.RedisAddr != ""
}

// FromEnv loads an optional .env file and then reads the process environment.
func FromEnv() Config {
	_ = godotenv.Load()

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8085"
	}
	secret := envOr("AUTH_HMAC_SECRET", "quizdesk-dev-key")
	return Config{
		Mode:      mode,
		HTTPAddr:  addr,
		PublicURL: strings.TrimSuffix(envOr("PUBLIC_URL", "http://localhost:3000/"), "/") + "/",

		RemoteURL:     os.Getenv("REMOTE_URL"),
		RetryMax:      envInt("RETRY_MAX", 2),
		RetryBackoff:  envDuration("RETRY_BACKOFF", time.Second),
		RemoteTimeout: envDuration("REMOTE_TIMEOUT", 0),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),

		AuthHMACSecret:    secret,
		SessionSealSecret: envOr("SESSION_SEAL_SECRET", secret),

		TabSwitchLimit:    envInt("TAB_SWITCH_LIMIT", 1),
		PassThreshold:     envInt("PASS_THRESHOLD", 80),
		HeartbeatInterval: envDuration("HEARTBEAT_INTERVAL", 60*time.Second),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiURL:    envOr("GEMINI_URL", "https://generativelanguage.googleapis.com/v1beta"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		CacheTTL:  envDuration("CACHE_TTL", 10*time.Minute),

		EnableGuest:   envBool("ENABLE_GUEST", true),
		EnableMetrics: envBool("ENABLE_METRICS", true),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
