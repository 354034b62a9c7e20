package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	MaxUploadSizeBytes int64

	// OutputTimezone controls the timezone of the Date column in the
	// CoinTracker export. The import format expects local wall-clock time.
	OutputTimezone string
	OutputLocation *time.Location
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	outputTimezone := getEnv("OUTPUT_TIMEZONE", "Local")
	outputLocation := time.Local
	if outputTimezone != "Local" {
		loc, err := time.LoadLocation(outputTimezone)
		if err != nil {
			log.Printf("WARNING: Invalid OUTPUT_TIMEZONE '%s'. Falling back to local time. Error: %v", outputTimezone, err)
			outputTimezone = "Local"
		} else {
			outputLocation = loc
		}
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./coinfolio.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes: maxUploadSizeBytes,
		OutputTimezone:     outputTimezone,
		OutputLocation:     outputLocation,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, OutputTimezone=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.OutputTimezone)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}
