package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"czstreams/internal/resolvers/common"
)

// DefaultResolvers is the registration order used when RESOLVERS is unset.
var DefaultResolvers = []string{"prehrajto", "webshare", "hellspy", "sosac", "fastshare", "sledujteto"}

type Config struct {
	HTTPAddr        string
	PublicURL       string
	MediaRedirect   bool
	StreamTimeout   time.Duration
	ResolverTimeout time.Duration

	SearchCap            int
	SearchMaxConcurrency int
	Resolvers            []string
	EnableFastshare      bool
	EnableSledujteto     bool
	AuthCacheTTL         time.Duration
	UserAgent            string

	CinemetaBaseURL   string
	TMDBAPIKey        string
	TMDBBaseURL       string
	TMDBLanguage      string
	TMDBCacheTTL      time.Duration
	RedisURL          string
	MetaCacheTTL      time.Duration
	MetaCacheDisabled bool

	MongoURI      string
	MongoDatabase string

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel          string
	LogFormat         string
	LogFile           string
	LogFileMaxMB      int
	LogFileMaxBackups int
	LogFileMaxAgeDays int
	LogFileCompress   bool

	OTLPEndpoint string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        httpAddr(),
		PublicURL:       strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
		MediaRedirect:   getEnvBool("MEDIA_REDIRECT", false),
		StreamTimeout:   time.Duration(getEnvInt("STREAM_TIMEOUT_SECONDS", 40)) * time.Second,
		ResolverTimeout: time.Duration(getEnvInt("RESOLVER_TIMEOUT_SECONDS", 15)) * time.Second,

		SearchCap:            getEnvInt("SEARCH_CAP", 7),
		SearchMaxConcurrency: getEnvInt("SEARCH_MAX_CONCURRENCY", 16),
		Resolvers:            parseList(getEnv("RESOLVERS", strings.Join(DefaultResolvers, ","))),
		EnableFastshare:      getEnvBool("FASTSHARE_ENABLED", false),
		EnableSledujteto:     getEnvBool("SLEDUJTETO_ENABLED", false),
		AuthCacheTTL:         time.Duration(getEnvInt("AUTH_CACHE_TTL_MS", 8_400_000)) * time.Millisecond,
		UserAgent:            getEnv("USER_AGENT", common.DefaultUserAgent),

		CinemetaBaseURL:   getEnv("CINEMETA_BASE_URL", "https://v3-cinemeta.strem.io"),
		TMDBAPIKey:        strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:       getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBLanguage:      strings.ToLower(getEnv("TMDB_LANGUAGE", "cs")),
		TMDBCacheTTL:      time.Duration(getEnvInt("TMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		RedisURL:          getEnv("REDIS_URL", ""),
		MetaCacheTTL:      time.Duration(getEnvInt("META_CACHE_TTL_HOURS", 24)) * time.Hour,
		MetaCacheDisabled: getEnvBool("META_CACHE_DISABLED", false),

		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "czstreams"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:           getEnv("LOG_FILE", ""),
		LogFileMaxMB:      getEnvInt("LOG_FILE_MAX_MB", 50),
		LogFileMaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 3),
		LogFileMaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 14),
		LogFileCompress:   getEnvBool("LOG_FILE_COMPRESS", true),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// httpAddr honours HTTP_ADDR first and falls back to a bare PORT, which is
// what most PaaS hosts set.
func httpAddr() string {
	if addr := getEnv("HTTP_ADDR", ""); addr != "" {
		return addr
	}
	if port := getEnv("PORT", ""); port != "" {
		if strings.Contains(port, ":") {
			return port
		}
		return ":" + port
	}
	return ":52932"
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
