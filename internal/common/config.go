package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	LLM       LLMConfig
	OCR       OCRConfig
	Limits    LimitsConfig
	Screening ScreeningConfig
	Store     StoreConfig
	Server    ServerConfig
	LogLevel  slog.Level
}

// LLMConfig holds the chat-completion endpoint settings
type LLMConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	ClassifyTimeout time.Duration
}

// OCRConfig holds document conversion settings
type OCRConfig struct {
	Pdftoppm         string
	Pdftotext        string
	Tesseract        string
	TessdataDir      string
	Lang             string
	DPI              int
	PSM              int
	ForceFullPageOCR bool
	TableStructure   bool
	Timeout          time.Duration
}

// LimitsConfig holds the character budgets applied before classification
type LimitsConfig struct {
	CriteriaChars int
	CaseChars     int
}

// ScreeningConfig holds session behaviour knobs
type ScreeningConfig struct {
	FailureMarker string
}

// StoreConfig holds the saved-runs database settings
type StoreConfig struct {
	DSN      string
	MaxConns int32
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			APIKey:          getEnv("API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:         strings.TrimRight(getEnv("API_URL", "https://api.deepseek.com"), "/"),
			Model:           getEnv("LLM_MODEL", "deepseek-chat"),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			ClassifyTimeout: getEnvAsDuration("LLM_CLASSIFY_TIMEOUT", 120*time.Second),
		},
		OCR: OCRConfig{
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdftotext:        getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:      getEnv("ARTIFACTS_PATH", os.Getenv("TESSDATA_PREFIX")),
			Lang:             getEnv("OCR_LANG", "chi_sim+eng"),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			PSM:              getEnvAsInt("OCR_PSM", 6),
			ForceFullPageOCR: getEnvAsBool("OCR_FORCE_FULL_PAGE", true),
			TableStructure:   getEnvAsBool("OCR_TABLE_STRUCTURE", true),
			Timeout:          getEnvAsDuration("OCR_TIMEOUT", 10*time.Minute),
		},
		Limits: LimitsConfig{
			CriteriaChars: getEnvAsInt("LIMIT_CRITERIA_CHARS", 10000),
			CaseChars:     getEnvAsInt("LIMIT_CASE_CHARS", 20000),
		},
		Screening: ScreeningConfig{
			FailureMarker: getEnv("FAILURE_MARKER", "分析失败"),
		},
		Store: StoreConfig{
			DSN:      getEnv("STORE_DSN", ""),
			MaxConns: getEnvAsInt32("STORE_MAX_CONNS", 4),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate checks the settings every binary needs. Callers that never talk
// to the model (runocr) skip it.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("API_KEY", c.LLM.APIKey, Required).
		Field("API_URL", c.LLM.BaseURL, Required).
		Field("LLM_MODEL", c.LLM.Model, Required).
		Field("LIMIT_CRITERIA_CHARS", c.Limits.CriteriaChars, Positive).
		Field("LIMIT_CASE_CHARS", c.Limits.CaseChars, Positive).
		Field("OCR_DPI", c.OCR.DPI, Positive)
	if err := v.Error(); err != nil {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
