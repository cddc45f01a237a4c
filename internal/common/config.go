package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkelechi/docextract/constants"
)

// Config holds all application configuration.
type Config struct {
	ApplicationID string
	Server        ServerConfig
	Database      DatabaseConfig
	Schema        SchemaConfig
	Extractor     ExtractorConfig
	OCR           OCRConfig
	LLM           LLMConfig
	Storage       StorageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
}

// DatabaseConfig holds tracker store configuration. DSN is either a
// postgres:// URL (pgx) or a filesystem path (sqlite).
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// SchemaConfig locates the caller-supplied JSON Schema.
type SchemaConfig struct {
	Path string
}

// ExtractorConfig holds the chunking and scan-detection knobs.
type ExtractorConfig struct {
	MaxTokens            int
	TokenOverlap         int
	ScanDensityThreshold int
}

// OCRConfig holds OCR-related configuration.
type OCRConfig struct {
	Method    string // constants.OCRMethodTesseract | constants.OCRMethodVLM
	Pdftotext string
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
	MaxPages  int

	// Vision path only.
	PageTimeout  time.Duration
	PagesPerSec  float64
	MaxPageBytes int64
}

// LLMConfig holds model-call configuration.
type LLMConfig struct {
	ModelID       string
	VisionModelID string
	APIKey        string
	BaseURL       string
	Temperature   float32
	Timeout       time.Duration
	MaxRetries    int
	RetryBaseWait time.Duration
}

// StorageConfig holds optional S3 configuration for original files.
// Missing credentials degrade to a no-op store.
type StorageConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// LoadConfig loads configuration from a .env file (if present) and
// environment variables.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		ApplicationID: getEnv("APPLICATION_ID", "generic_data_extractor"),
		Server: ServerConfig{
			Addr:           ":" + getEnv("PORT", "8080"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Schema: SchemaConfig{
			Path: getEnv("RESPONSE_SCHEMA_PATH", "schema.json"),
		},
		Extractor: ExtractorConfig{
			MaxTokens:            getEnvAsInt("MAX_TOKENS", 100000),
			TokenOverlap:         getEnvAsInt("TOKEN_OVERLAP", 500),
			ScanDensityThreshold: getEnvAsInt("SCAN_DENSITY_THRESHOLD", 100),
		},
		OCR: OCRConfig{
			Method:       getEnv("OCR_METHOD", constants.OCRMethodVLM),
			Pdftotext:    getEnv("PDFTOTEXT", "pdftotext"),
			Pdftoppm:     getEnv("PDFTOPPM", "pdftoppm"),
			Tesseract:    getEnv("TESSERACT", "tesseract"),
			Lang:         getEnv("TESSERACT_LANG", "eng"),
			DPI:          getEnvAsInt("OCR_DPI", 300),
			MaxPages:     getEnvAsInt("OCR_MAX_PAGES", 0),
			PageTimeout:  getEnvAsDuration("OCR_PAGE_TIMEOUT", 60*time.Second),
			PagesPerSec:  getEnvAsFloat64("OCR_PAGES_PER_SEC", 2),
			MaxPageBytes: int64(getEnvAsInt("OCR_MAX_PAGE_MB", 20)) << 20,
		},
		LLM: LLMConfig{
			ModelID:       getEnv("MODEL_ID", "gpt-4o-mini"),
			VisionModelID: getEnv("VISION_MODEL_ID", ""),
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature:   getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			MaxRetries:    getEnvAsInt("LLM_MAX_RETRIES", 3),
			RetryBaseWait: getEnvAsDuration("LLM_RETRY_BASE_WAIT", 2*time.Second),
		},
		Storage: StorageConfig{
			Bucket:    getEnv("S3_BUCKET_NAME", ""),
			Region:    getEnv("AWS_REGION", "us-east-1"),
			AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
	}
}

// Validate rejects configuration errors before any processing begins.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return c.ValidatePipeline()
}

// ValidatePipeline checks only the knobs the core pipeline consumes.
// cmd/runextract uses this without requiring a database.
func (c *Config) ValidatePipeline() error {
	switch c.OCR.Method {
	case constants.OCRMethodTesseract, constants.OCRMethodVLM:
	default:
		return NewAppError("CONFIG_ERROR",
			fmt.Sprintf("unknown OCR_METHOD %q (want tesseract or vlm)", c.OCR.Method), ErrInvalidInput)
	}
	if c.Extractor.MaxTokens <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_TOKENS must be positive", ErrInvalidInput)
	}
	if c.Extractor.TokenOverlap < 0 {
		return NewAppError("CONFIG_ERROR", "TOKEN_OVERLAP must be non-negative", ErrInvalidInput)
	}
	if c.Extractor.TokenOverlap >= c.Extractor.MaxTokens {
		return NewAppError("CONFIG_ERROR",
			fmt.Sprintf("TOKEN_OVERLAP (%d) must be smaller than MAX_TOKENS (%d)",
				c.Extractor.TokenOverlap, c.Extractor.MaxTokens), ErrInvalidInput)
	}
	if c.Extractor.ScanDensityThreshold < 0 {
		return NewAppError("CONFIG_ERROR", "SCAN_DENSITY_THRESHOLD must be non-negative", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
