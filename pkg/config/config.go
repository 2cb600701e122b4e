package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the report generator
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Output
	OutputDir  string
	PolicyFile string

	// Static reference data
	Reference ReferenceConfig

	// Upstream sources
	Sources SourcesConfig

	// HTTP
	HTTP HTTPConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring (node-exporter textfile, no listener)
	MetricsTextfile string

	// Scheduling
	ScheduleCron string

	// Charts
	EChartsAssetsHost string
}

// ReferenceConfig holds the locations of the static lookup tables.
// Each value is either a local path or an http(s) URL.
type ReferenceConfig struct {
	LARegion    string
	CCGRegion   string
	Populations string
}

// SourcesConfig holds upstream dataset endpoints
type SourcesConfig struct {
	PHEAPIURL        string
	NHSTriageURL     string
	ScotlandCasesURL string
	AppExposuresURL  string
	AppVenuesURL     string
}

// HTTPConfig holds outbound HTTP behaviour
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  float64 // requests per second, 0 = unlimited
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		OutputDir:  getEnv("OUTPUT_DIR", "./output"),
		PolicyFile: getEnv("POLICY_FILE", "./config/policy.yaml"),

		Reference: ReferenceConfig{
			LARegion: getEnv("LA_REGION_SOURCE",
				"https://raw.githubusercontent.com/russss/local_authority_nhs_region/master/local_authority_nhs_region.csv"),
			CCGRegion:   getEnv("CCG_REGION_FILE", "./data/ccg_region.csv"),
			Populations: getEnv("POPULATION_FILE", "./data/region_populations.csv"),
		},

		Sources: SourcesConfig{
			PHEAPIURL: getEnv("PHE_API_URL", "https://api.coronavirus.data.gov.uk/v1/data"),
			NHSTriageURL: getEnv("NHS_TRIAGE_URL",
				"https://digital.nhs.uk/data-and-information/publications/statistical/mi-potential-covid-19-symptoms-reported-through-nhs-pathways-and-111-online/latest"),
			ScotlandCasesURL: getEnv("SCOTLAND_CASES_URL",
				"https://www.opendata.nhs.scot/dataset/b318bddf-a4dc-4262-971f-0ba329e09b87/resource/427f9a25-db22-4014-a3bc-893b68243055/download/trend_ca.csv"),
			AppExposuresURL: getEnv("APP_EXPOSURES_URL",
				"https://raw.githubusercontent.com/russss/nhs-covid19-app-data/main/data/exposures.csv"),
			AppVenuesURL: getEnv("APP_VENUES_URL",
				"https://raw.githubusercontent.com/russss/nhs-covid19-app-data/main/data/risky_venues.csv"),
		},

		HTTP: HTTPConfig{
			Timeout:    getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			MaxRetries: getEnvAsInt("HTTP_MAX_RETRIES", 3),
			RetryDelay: getEnvAsDuration("HTTP_RETRY_DELAY", "1s"),
			RateLimit:  getEnvAsFloat("HTTP_RATE_LIMIT", 5),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),

		ScheduleCron: getEnv("SCHEDULE_CRON", "0 0 17 * * *"),

		EChartsAssetsHost: getEnv("ECHARTS_ASSETS_HOST", "https://cdn.jsdelivr.net/npm/echarts@5.5.1/dist/"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}

	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("HTTP_MAX_RETRIES must be >= 0")
	}

	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("HTTP_RATE_LIMIT must be >= 0")
	}

	if !strings.HasPrefix(c.Sources.PHEAPIURL, "http") {
		return fmt.Errorf("PHE_API_URL must be an http(s) URL")
	}

	return nil
}

// IsRemote reports whether a reference location is fetched over HTTP
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
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
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
