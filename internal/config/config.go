package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr       string // API bind address, e.g., "127.0.0.1:8080" (Windows) or ":8080" (Docker)
	LogDir     string // logs directory
	LogConsole bool   // also log to stderr (dev)

	// Storage backend selection: first non-empty of DatabaseURL (postgres),
	// SQLitePath, DataDir (JSON documents); otherwise in-memory.
	DatabaseURL string
	SQLitePath  string
	DataDir     string
	HistoryCap  int // global history log capacity

	Sites       []string // URLs to monitor
	Schedule    string   // cron spec, e.g. "@every 1m"
	HTTPTimeout time.Duration
	Retries     int
	RetryWait   time.Duration
	Concurrency int

	AlertBurst     int     // transition alerts allowed instantly per site
	AlertWindowSec float64 // seconds for a full refill from empty
	LimiterMaxKeys int     // 0 = unbounded

	SlackWebhook string
	PublicRPM    int // API per-IP rate limit, 0 disables
	PublicBurst  int
}

func FromEnv() Config {
	cfg := Config{
		Addr:           envStr("ADDR", "127.0.0.1:8080"),
		LogDir:         envStr("LOG_DIR", "logs"),
		LogConsole:     envStr("LOG_CONSOLE", "") != "",
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		DataDir:        os.Getenv("DATA_DIR"),
		HistoryCap:     envInt("HISTORY_CAP", 1000),
		Schedule:       envStr("CHECK_SCHEDULE", "@every 1m"),
		HTTPTimeout:    envMS("HTTP_TIMEOUT_MS", 10*time.Second),
		Retries:        envInt("RETRY_ATTEMPTS", 2),
		RetryWait:      envMS("RETRY_BACKOFF_MS", 300*time.Millisecond),
		Concurrency:    envInt("MAX_CONCURRENT_CHECKS", 8),
		AlertBurst:     envInt("ALERT_BURST", 3),
		AlertWindowSec: envFloat("ALERT_WINDOW_SEC", 300),
		LimiterMaxKeys: envInt("LIMITER_MAX_KEYS", 0),
		SlackWebhook:   os.Getenv("SLACK_WEBHOOK"),
		PublicRPM:      envInt("PUBLIC_RPM", 0),
		PublicBurst:    envInt("PUBLIC_BURST", 0),
	}

	if v := os.Getenv("SITES"); v != "" {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if !strings.Contains(s, "://") {
				s = "https://" + s
			}
			cfg.Sites = append(cfg.Sites, s)
		}
	}

	return cfg
}

// Validate enforces the parameters the system must refuse to start with.
func (c Config) Validate() error {
	if c.AlertBurst <= 0 {
		return fmt.Errorf("config: ALERT_BURST must be positive, got %d", c.AlertBurst)
	}
	if c.AlertWindowSec <= 0 {
		return fmt.Errorf("config: ALERT_WINDOW_SEC must be positive, got %v", c.AlertWindowSec)
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("config: HISTORY_CAP must be positive, got %d", c.HistoryCap)
	}
	return nil
}

// AlertWindow converts the configured seconds into a duration.
func (c Config) AlertWindow() time.Duration {
	return time.Duration(c.AlertWindowSec * float64(time.Second))
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envMS(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
