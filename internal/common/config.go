package common

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joseph-ayodele/clinical-timeline/constants"
)

// Config holds all application configuration
type Config struct {
	Pipeline PipelineConfig
	OCR      OCRConfig
	Database DatabaseConfig
	Log      LogConfig
}

// PipelineConfig holds batch-related configuration
type PipelineConfig struct {
	InputDir     string
	OutputDir    string // defaults to <InputDir>/processed_pdfs
	Workers      int
	Parallel     bool
	MinTextChars int
	VocabPath    string // empty -> embedded default vocabulary
	ExportXLSX   bool
}

// OCRConfig holds settings for the external recognition engine
type OCRConfig struct {
	OCRmyPDF string
	Language string
	PSM      int
	OEM      int
	Optimize int
	Timeout  time.Duration
}

// DatabaseConfig holds run-ledger configuration. An empty DSN disables the ledger.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "json" | "text"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			InputDir:     getEnv("TIMELINE_INPUT_DIR", "input"),
			OutputDir:    getEnv("TIMELINE_OUTPUT_DIR", ""),
			Workers:      getEnvAsInt("TIMELINE_WORKERS", runtime.NumCPU()),
			Parallel:     getEnvAsBool("TIMELINE_PARALLEL", false),
			MinTextChars: getEnvAsInt("TIMELINE_MIN_TEXT_CHARS", 100),
			VocabPath:    getEnv("TIMELINE_VOCAB_PATH", ""),
			ExportXLSX:   getEnvAsBool("TIMELINE_EXPORT_XLSX", false),
		},
		OCR: OCRConfig{
			OCRmyPDF: getEnv("OCRMYPDF_BIN", "ocrmypdf"),
			Language: getEnv("OCR_LANGUAGE", "eng"),
			PSM:      getEnvAsInt("OCR_PSM", 6),
			OEM:      getEnvAsInt("OCR_OEM", 3),
			Optimize: getEnvAsInt("OCR_OPTIMIZE", 1),
			Timeout:  getEnvAsDuration("OCR_TIMEOUT", 10*time.Minute),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// ResolvedOutputDir returns the configured output directory, or the default
// location under the input directory.
func (c *Config) ResolvedOutputDir() string {
	if c.Pipeline.OutputDir != "" {
		return c.Pipeline.OutputDir
	}
	return filepath.Join(c.Pipeline.InputDir, constants.ProcessedDirName)
}

// EffectiveWorkers is the pool size used by the per-document stages.
func (c *Config) EffectiveWorkers() int {
	if !c.Pipeline.Parallel {
		return 1
	}
	if c.Pipeline.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Pipeline.Workers
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("TIMELINE_INPUT_DIR", c.Pipeline.InputDir, Required)
	v.Field("TIMELINE_MIN_TEXT_CHARS", c.Pipeline.MinTextChars, NonNegative)
	v.Field("OCRMYPDF_BIN", c.OCR.OCRmyPDF, Required)
	v.Field("OCR_PSM", c.OCR.PSM, InRange(0, 13))
	v.Field("OCR_OEM", c.OCR.OEM, InRange(0, 3))
	v.Field("OCR_OPTIMIZE", c.OCR.Optimize, InRange(0, 3))
	v.Field("LOG_FORMAT", c.Log.Format, OneOf("json", "text"))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
