package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// Driver selects the store: "sqlite3" (Path or DSN) or "postgres"
	// (DatabaseURL).
	Driver          string
	DSN             string
	Path            string
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	StationsFile string

	IMAPAddr            string
	IMAPUsername        string
	IMAPPassword        string
	IMAPAllMailFolder   string
	IMAPDeleteProcessed bool

	PollInterval     time.Duration
	BackfillCount    int
	PlotSamples      int
	OutputDir        string
	MaxCycleFailures int
	IngestWorkers    int

	FTPAddr      string
	FTPUsername  string
	FTPPassword  string
	FTPUploadDir string
	FTPPDFDir    string

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	RedisAddr string
	RedisDB   int
	StatusTTL time.Duration

	NotifyWebhookURL string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFromEnv()
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   appEnv,
		LogLevel: level,
		HTTPAddr: stringFromEnv("HTTP_ADDR", ":8080"),

		Driver:      stringFromEnv("DB_DRIVER", "sqlite3"),
		DSN:         stringFromEnv("DB_DSN", ""),
		Path:        stringFromEnv("SQLITE_PATH", "../dev/sqlite/app.db"),
		DatabaseURL: stringFromEnv("DATABASE_URL", ""),

		StationsFile: stringFromEnv("STATIONS_FILE", "stations.yaml"),

		IMAPAddr:          stringFromEnv("IMAP_ADDR", ""),
		IMAPUsername:      stringFromEnv("IMAP_USERNAME", ""),
		IMAPPassword:      os.Getenv("IMAP_PASSWORD"),
		IMAPAllMailFolder: stringFromEnv("IMAP_ALL_MAIL_FOLDER", "[Gmail]/All Mail"),

		OutputDir: stringFromEnv("OUTPUT_DIR", "generated"),

		FTPAddr:      stringFromEnv("FTP_ADDR", ""),
		FTPUsername:  stringFromEnv("FTP_USERNAME", ""),
		FTPPassword:  os.Getenv("FTP_PASSWORD"),
		FTPUploadDir: stringFromEnv("FTP_UPLOAD_DIR", "/public_html/data"),
		FTPPDFDir:    stringFromEnv("FTP_PDF_DIR", "/public_html/pdf"),

		MQTTBroker:      stringFromEnv("MQTT_BROKER", ""),
		MQTTClientID:    stringFromEnv("MQTT_CLIENT_ID", "emergency-stations"),
		MQTTTopicPrefix: stringFromEnv("MQTT_TOPIC_PREFIX", "stations"),

		RedisAddr: stringFromEnv("REDIS_ADDR", ""),

		NotifyWebhookURL: stringFromEnv("NOTIFY_WEBHOOK_URL", ""),
	}

	switch cfg.Driver {
	case "sqlite3":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, postgres)", cfg.Driver)
	}

	if cfg.MaxOpenConns, err = intFromEnv("DB_MAX_OPEN_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = intFromEnv("DB_MAX_IDLE_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = durationFromEnv("DB_CONN_MAX_LIFETIME", 0); err != nil {
		return Config{}, err
	}
	if cfg.LogSQL, err = boolFromEnv("DB_LOG_SQL", false); err != nil {
		return Config{}, err
	}
	if cfg.IMAPDeleteProcessed, err = boolFromEnv("IMAP_DELETE_PROCESSED", false); err != nil {
		return Config{}, err
	}
	if cfg.IMAPAddr != "" && cfg.IMAPUsername == "" {
		return Config{}, errors.New("IMAP_USERNAME is required when IMAP_ADDR is set")
	}

	if cfg.PollInterval, err = durationFromEnv("POLL_INTERVAL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL %q: must be > 0", os.Getenv("POLL_INTERVAL"))
	}
	if cfg.BackfillCount, err = intFromEnv("LAST_N_EMAILS", 2); err != nil {
		return Config{}, err
	}
	if cfg.PlotSamples, err = intFromEnv("PLOT_SAMPLES", 500); err != nil {
		return Config{}, err
	}
	if cfg.MaxCycleFailures, err = intFromEnv("MAX_CYCLE_FAILURES", 5); err != nil {
		return Config{}, err
	}
	if cfg.IngestWorkers, err = intFromEnv("INGEST_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.IngestWorkers < 1 {
		return Config{}, fmt.Errorf("invalid INGEST_WORKERS %d: must be >= 1", cfg.IngestWorkers)
	}

	if cfg.MQTTPort, err = intFromEnv("MQTT_PORT", 1883); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = intFromEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.StatusTTL, err = durationFromEnv("STATUS_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func stringFromEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
