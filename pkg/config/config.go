package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds the application config
type AppConfig struct {
	ListenAddr      string
	RedisAddr       string
	RedisPassword   string
	BadgerPath      string
	AbuseIPDBKey    string
	MaxUploadBytes  int64
	MaxPackets      int
	AnalysisWorkers int
	InProduction    bool
	InfoLog         *log.Logger
}

// Load reads configuration from the environment. A .env file is an
// optional source; a missing one is not an error.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8081"),
		RedisAddr:       getEnv("REDIS_SERVER_ADDR", ""),
		RedisPassword:   getEnv("REDIS_SERVER_PASSWORD", ""),
		BadgerPath:      getEnv("BADGER_PATH", "/tmp/pcapwatch-settings"),
		AbuseIPDBKey:    getEnv("ABUSEIPDB_API_KEY", ""),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 100<<20)),
		MaxPackets:      getEnvInt("MAX_PACKETS", 1000000),
		AnalysisWorkers: getEnvInt("ANALYSIS_WORKERS", 4),
		InProduction:    getEnv("IN_PRODUCTION", "true") == "true",
		InfoLog:         log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Printf("ERROR: parsing %v as integer: %v\n", key, err)
		return fallback
	}
	return n
}

// Handle logs an error with a description, panicking when fatal.
func Handle(err error, description string, fatal bool) {
	if err == nil {
		return
	}
	if fatal {
		log.Panicf("ERROR: %v:%v\n", description, err)
	}
	fmt.Printf("ERROR: %v:%v\n", description, err)
}
