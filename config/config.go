package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	GitHub  GitHubConfig
	Redis   RedisConfig
	Sync    SyncConfig
	App     AppConfig
}

type ServerConfig struct {
	Port        string
	APIKey      string
	MaxUploadMB int
}

type StorageConfig struct {
	DataFile  string
	UploadDir string
	StaticDir string
}

// GitHubConfig holds the coordinates and credential of the mirror target.
type GitHubConfig struct {
	APIBaseURL string
	Owner      string
	Repo       string
	Branch     string
	Token      string
	RemoteDir  string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SyncConfig struct {
	Schedule string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "3000"),
			APIKey:      getEnv("API_KEY", ""),
			MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 32),
		},
		Storage: StorageConfig{
			DataFile:  getEnv("DATA_FILE", "proyectos.json"),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			StaticDir: getEnv("STATIC_DIR", ""),
		},
		GitHub: GitHubConfig{
			APIBaseURL: strings.TrimRight(getEnv("GITHUB_API_URL", "https://api.github.com"), "/"),
			Owner:      getEnv("GITHUB_OWNER", "jessm23"),
			Repo:       getEnv("GITHUB_REPO", "portafolio"),
			Branch:     getEnv("GITHUB_BRANCH", "main"),
			Token:      loadToken(getEnv("GITHUB_TOKEN_FILE", "token.txt")),
			RemoteDir:  strings.Trim(getEnv("GITHUB_REMOTE_DIR", "portafolioweb"), "/"),
			Timeout:    getEnvAsDuration("GITHUB_TIMEOUT", 30*time.Second),
			RateLimit:  getEnvAsFloat("GITHUB_RATE_LIMIT", 5),
			RateBurst:  getEnvAsInt("GITHUB_RATE_BURST", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Sync: SyncConfig{
			Schedule: getEnv("SYNC_SCHEDULE", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Storage.DataFile == "" {
		return fmt.Errorf("DATA_FILE is required")
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}

	if c.GitHub.Owner == "" || c.GitHub.Repo == "" || c.GitHub.Branch == "" {
		return fmt.Errorf("GITHUB_OWNER, GITHUB_REPO and GITHUB_BRANCH are required")
	}

	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("GITHUB_TIMEOUT must be positive")
	}

	if c.GitHub.RateLimit <= 0 || c.GitHub.RateBurst <= 0 {
		return fmt.Errorf("GITHUB_RATE_LIMIT and GITHUB_RATE_BURST must be positive")
	}

	return nil
}

// loadToken resolves the GitHub credential: GITHUB_TOKEN, then the legacy
// "mitoken" variable, then the first line of tokenFile.
func loadToken(tokenFile string) string {
	if v := getEnv("GITHUB_TOKEN", ""); v != "" {
		return v
	}
	if v := getEnv("mitoken", ""); v != "" {
		return v
	}
	if tokenFile == "" {
		return ""
	}
	b, err := os.ReadFile(tokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warnf("Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warnf("Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warnf("Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}
