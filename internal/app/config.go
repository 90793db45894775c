package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	MongoURI           string // empty = in-memory records
	MongoDatabase      string
	MongoCollection    string
	RedisURL           string // empty = no redis event sink
	RedisChannel       string
	CORSAllowedOrigins []string
	HTTPRateLimit      float64
	HTTPRateBurst      int
	OTELEndpoint       string // empty = tracing off
	OTELSampleRate     float64

	DownloadDir        string
	MaxTorrents        int // 0 = unlimited, defaults to 50
	MaxPeersPerTorrent int
	ListenPort         int
	EnableDHT          bool
	EnableUPnP         bool
	UploadLimitKBps    int64 // 0 = unlimited
	DownloadLimitKBps  int64 // 0 = unlimited
	SeedRatioLimit     float64
	SeedTimeLimit      time.Duration

	ProgressInterval  time.Duration
	ProgressIncrement float64
	SyncInterval      time.Duration
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		MongoURI:           strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:      getEnv("MONGO_DB", "torrentsession"),
		MongoCollection:    getEnv("MONGO_COLLECTION", "torrents"),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisChannel:       getEnv("REDIS_CHANNEL", "torrent-events"),
		CORSAllowedOrigins: parseCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPRateLimit:      getEnvFloat("HTTP_RATE_LIMIT", 100),
		HTTPRateBurst:      int(getEnvInt64("HTTP_RATE_BURST", 200)),
		OTELEndpoint:       strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:     getEnvFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),

		DownloadDir:        getEnv("TORRENT_DOWNLOAD_DIR", "downloads"),
		MaxTorrents:        int(getEnvInt64("TORRENT_MAX_TORRENTS", 50)),
		MaxPeersPerTorrent: int(getEnvInt64("TORRENT_MAX_PEERS", 50)),
		ListenPort:         int(getEnvInt64("TORRENT_LISTEN_PORT", 6881)),
		EnableDHT:          getEnvBool("TORRENT_ENABLE_DHT", true),
		EnableUPnP:         getEnvBool("TORRENT_ENABLE_UPNP", false),
		UploadLimitKBps:    getEnvInt64("TORRENT_UPLOAD_LIMIT_KBPS", 0),
		DownloadLimitKBps:  getEnvInt64("TORRENT_DOWNLOAD_LIMIT_KBPS", 0),
		SeedRatioLimit:     getEnvFloat("TORRENT_SEED_RATIO_LIMIT", 0),
		SeedTimeLimit:      getEnvDuration("TORRENT_SEED_TIME_LIMIT", 0),

		ProgressInterval:  getEnvDuration("PROGRESS_INTERVAL", time.Second),
		ProgressIncrement: getEnvFloat("PROGRESS_INCREMENT", 0.01),
		SyncInterval:      getEnvDuration("SYNC_INTERVAL", 5*time.Second),
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is empty"))
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("TORRENT_LISTEN_PORT %d out of range", c.ListenPort))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, errors.New("PROGRESS_INTERVAL must be > 0"))
	}
	if c.ProgressIncrement <= 0 || c.ProgressIncrement > 1 {
		errs = append(errs, fmt.Errorf("PROGRESS_INCREMENT %v must be in (0, 1]", c.ProgressIncrement))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be > 0"))
	}
	if c.HTTPRateLimit <= 0 || c.HTTPRateBurst <= 0 {
		errs = append(errs, errors.New("HTTP_RATE_LIMIT and HTTP_RATE_BURST must be > 0"))
	}
	if c.RedisURL != "" && strings.TrimSpace(c.RedisChannel) == "" {
		errs = append(errs, errors.New("REDIS_CHANNEL is empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go duration strings and bare integers as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
