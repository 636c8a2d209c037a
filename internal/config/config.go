package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env              string
	HTTPPort         string
	APIBaseURL       string
	RequestTimeout   time.Duration
	ScanWindow       time.Duration
	ListLimit        int
	RateLimitPerMin  int
	RateLimitBackend string
	RedisAddr        string
	BluetoothctlPath string
}

// Load returns application config populated from environment variables with
// sensible defaults. A .env file in the working directory is read first when
// present.
func Load() App {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env: %v", err)
	}
	return App{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPPort:         getEnv("HTTP_PORT", "8081"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:5000"),
		RequestTimeout:   durationEnv("REQUEST_TIMEOUT", 10*time.Second),
		ScanWindow:       durationEnv("SCAN_WINDOW", 8*time.Second),
		ListLimit:        intEnv("LIST_LIMIT", 500),
		RateLimitPerMin:  intEnv("RATE_LIMIT_PER_MIN", 120),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		BluetoothctlPath: getEnv("BLUETOOTHCTL_PATH", "bluetoothctl"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
