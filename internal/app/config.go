// Package app holds the configuration store and the supervisor glue that
// wires the music-server core into a running process.
package app

import (
	"os"
	"strconv"
	"strings"
)

// Config carries process-level settings resolved from the environment.
// Owner settings (the music folder, setup state) live in the on-disk
// Settings store instead; ARIAMI_MUSIC_DIR overrides the stored value.
type Config struct {
	HTTPAddr            string
	ConfigDir           string // empty = platform default via Layout
	DataDir             string // client-side downloads root; empty = under ConfigDir
	MusicDir            string // override for the stored music folder
	LogLevel            string
	LogFormat           string
	FFmpegPath          string
	ScanBatchSize       int   // 0 = derived from CPU count
	TranscodeCacheBytes int64 // transcoded artifact disk budget
	WatchDebounceMS     int64
	WarmupPerSecond     int64 // duration warm-up probe rate
	CORSAllowedOrigins  []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:            getEnv("ARIAMI_HTTP_ADDR", ":8080"),
		ConfigDir:           getEnv("ARIAMI_CONFIG_DIR", ""),
		DataDir:             getEnv("ARIAMI_DATA_DIR", ""),
		MusicDir:            getEnv("ARIAMI_MUSIC_DIR", ""),
		LogLevel:            strings.ToLower(getEnv("ARIAMI_LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("ARIAMI_LOG_FORMAT", "text")),
		FFmpegPath:          getEnv("ARIAMI_FFMPEG_PATH", "ffmpeg"),
		ScanBatchSize:       int(getEnvInt64("ARIAMI_SCAN_BATCH_SIZE", 0)),
		TranscodeCacheBytes: getEnvInt64("ARIAMI_TRANSCODE_CACHE_BYTES", 2<<30),
		WatchDebounceMS:     getEnvInt64("ARIAMI_WATCH_DEBOUNCE_MS", 2000),
		WarmupPerSecond:     getEnvInt64("ARIAMI_WARMUP_PER_SECOND", 50),
		CORSAllowedOrigins:  parseCSV(os.Getenv("ARIAMI_CORS_ALLOWED_ORIGINS")),
	}
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

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
