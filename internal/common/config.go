package common

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"costbreakdown/constants"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Ingest   IngestConfig
	Extract  ExtractConfig
	AI       AIConfig
	Paths    PathsConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// IngestConfig holds input acceptance limits
type IngestConfig struct {
	MaxFileSizeMB     int
	MaxBatchFiles     int
	SanitizeFilenames bool
}

// ExtractConfig holds text extraction configuration
type ExtractConfig struct {
	Pdftotext     string
	Tesseract     string
	TesseractLang string
}

// AIConfig holds the structuring model configuration
type AIConfig struct {
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
}

// PathsConfig holds filesystem locations used by the pipeline
type PathsConfig struct {
	TemplatePath string
	OutputDir    string
	TempDir      string
}

// LoadConfig loads configuration from BREAKDOWN_* environment variables,
// applying defaults for anything unset. The Gemini key additionally falls
// back to the conventional GEMINI_API_KEY variable.
func LoadConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("BREAKDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("ingest.max_file_size_mb", 50)
	v.SetDefault("ingest.max_batch_files", 10)
	v.SetDefault("ingest.sanitize_filenames", true)
	v.SetDefault("extract.pdftotext", "pdftotext")
	v.SetDefault("extract.tesseract", "tesseract")
	v.SetDefault("extract.tesseract_lang", "eng")
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_output_tokens", 8192)
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("paths.template", "templates/"+constants.DefaultTemplateName)
	v.SetDefault("paths.output_dir", "outputs")
	v.SetDefault("paths.temp_dir", "temp")
	v.SetDefault("log.level", "info")

	apiKey := v.GetString("ai.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	return &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Ingest: IngestConfig{
			MaxFileSizeMB:     v.GetInt("ingest.max_file_size_mb"),
			MaxBatchFiles:     v.GetInt("ingest.max_batch_files"),
			SanitizeFilenames: v.GetBool("ingest.sanitize_filenames"),
		},
		Extract: ExtractConfig{
			Pdftotext:     v.GetString("extract.pdftotext"),
			Tesseract:     v.GetString("extract.tesseract"),
			TesseractLang: v.GetString("extract.tesseract_lang"),
		},
		AI: AIConfig{
			Model:           v.GetString("ai.model"),
			APIKey:          apiKey,
			BaseURL:         v.GetString("ai.base_url"),
			Temperature:     float32(v.GetFloat64("ai.temperature")),
			MaxOutputTokens: v.GetInt("ai.max_output_tokens"),
			Timeout:         v.GetDuration("ai.timeout"),
		},
		Paths: PathsConfig{
			TemplatePath: v.GetString("paths.template"),
			OutputDir:    v.GetString("paths.output_dir"),
			TempDir:      v.GetString("paths.temp_dir"),
		},
		LogLevel: v.GetString("log.level"),
	}
}

// Validate validates the loaded configuration. A missing AI key is not a
// validation failure: extraction and manual entry still work without it.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError(CodeConfigError, "BREAKDOWN_SERVER_ADDR is required", ErrInvalidInput)
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		return NewAppError(CodeConfigError, "BREAKDOWN_INGEST_MAX_FILE_SIZE_MB must be positive", ErrInvalidInput)
	}
	if c.Ingest.MaxBatchFiles <= 0 {
		return NewAppError(CodeConfigError, "BREAKDOWN_INGEST_MAX_BATCH_FILES must be positive", ErrInvalidInput)
	}
	if c.AI.Timeout <= 0 {
		return NewAppError(CodeConfigError, "BREAKDOWN_AI_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Paths.OutputDir == "" {
		return NewAppError(CodeConfigError, "BREAKDOWN_PATHS_OUTPUT_DIR is required", ErrInvalidInput)
	}
	return nil
}
