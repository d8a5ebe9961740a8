package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API     APIConfig
	Gateway GatewayConfig
	Redis   RedisConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	Envelope      string
	ListStaleTime time.Duration
}

type GatewayConfig struct {
	Addr        string
	RateLimit   string
	CORSOrigins []string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		API: APIConfig{
			BaseURL:       getEnv("PARTS_API_BASE_URL", "http://localhost:3000"),
			Timeout:       getDuration("PARTS_API_TIMEOUT", 10*time.Second),
			Envelope:      getEnv("PARTS_API_ENVELOPE", "auto"),
			ListStaleTime: getDuration("PARTS_LIST_STALE_TIME", 5*time.Minute),
		},
		Gateway: GatewayConfig{
			Addr:        getEnv("GATEWAY_ADDR", ":8080"),
			RateLimit:   getEnv("GATEWAY_RATE_LIMIT", "100-M"),
			CORSOrigins: strings.Split(getEnv("GATEWAY_CORS_ORIGINS", "*"), ","),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Channel:  getEnv("INVALIDATION_CHANNEL", "parts:invalidate"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
