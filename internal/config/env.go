package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    ErrorFile    string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ProvidersConfig selects the AI engine and model used for filename generation.
type ProvidersConfig struct {
    Engine         string // "openai"|"anthropic"
    OpenAIModel    string
    AnthropicModel string
    RequestTimeout time.Duration
}

// ExtractionConfig defines content extraction behavior and thresholds.
type ExtractionConfig struct {
    MinContentChars int           // below this, the document is treated as likely scanned
    OCRMaxPages     int           // OCR at most this many rendered pages
    RenderDPI       int
    JPEGQuality     int
    OCRLanguage     string
    TesseractBin    string
    OCRTimeout      time.Duration
}

// RetryConfig defines the AI-call retry policy.
type RetryConfig struct {
    MaxAttempts int
    BaseDelay   time.Duration
}

// MoveConfig defines file move behavior.
type MoveConfig struct {
    MaxAttempts int
    RetryDelay  time.Duration
}

// PathsConfig defines the filesystem layout contract.
type PathsConfig struct {
    InputDir       string
    ProcessedDir   string
    UnprocessedDir string
    ProgressFile   string
    ResetProgress  bool
}

// SanitizeConfig bounds the generated filenames.
type SanitizeConfig struct {
    MaxNameLength int
}

// MetricsConfig enables the optional Prometheus listener.
type MetricsConfig struct {
    Addr string // empty disables the listener
}

// Config is the top-level configuration.
type Config struct {
    Logging    LoggingConfig
    Axiom      AxiomConfig
    Providers  ProvidersConfig
    Extraction ExtractionConfig
    Retry      RetryConfig
    Move       MoveConfig
    Paths      PathsConfig
    Sanitize   SanitizeConfig
    Metrics    MetricsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/airenamer.log"),
        ErrorFile:  getEnv("ERROR_LOG_FILE", "logs/airenamer_errors.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_airenamer",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Providers defaults
    cfg.Providers = ProvidersConfig{
        Engine:         getEnv("PROVIDER", "openai"),
        OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
        AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet"),
        RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "60s"), 60*time.Second),
    }

    // Extraction defaults
    cfg.Extraction = ExtractionConfig{
        MinContentChars: parseInt(getEnv("MIN_CONTENT_CHARS", "100"), 100),
        OCRMaxPages:     parseInt(getEnv("OCR_MAX_PAGES", "3"), 3),
        RenderDPI:       parseInt(getEnv("RENDER_DPI", "150"), 150),
        JPEGQuality:     parseInt(getEnv("JPEG_QUALITY", "85"), 85),
        OCRLanguage:     getEnv("OCR_LANGUAGE", "eng"),
        TesseractBin:    getEnv("TESSERACT_BIN", "tesseract"),
        OCRTimeout:      parseDuration(getEnv("OCR_TIMEOUT", "60s"), 60*time.Second),
    }

    // Retry defaults
    cfg.Retry = RetryConfig{
        MaxAttempts: parseInt(getEnv("AI_MAX_ATTEMPTS", "3"), 3),
        BaseDelay:   parseDuration(getEnv("AI_RETRY_BASE_DELAY", "1s"), time.Second),
    }

    // Move defaults
    cfg.Move = MoveConfig{
        MaxAttempts: parseInt(getEnv("MOVE_MAX_ATTEMPTS", "3"), 3),
        RetryDelay:  parseDuration(getEnv("MOVE_RETRY_DELAY", "500ms"), 500*time.Millisecond),
    }

    // Paths defaults
    cfg.Paths = PathsConfig{
        InputDir:       getEnv("INPUT_DIR", "input"),
        ProcessedDir:   getEnv("PROCESSED_DIR", "processed"),
        UnprocessedDir: getEnv("UNPROCESSED_DIR", "unprocessed"),
        ProgressFile:   getEnv("PROGRESS_FILE", ".rename_progress"),
        ResetProgress:  parseBool(getEnv("RESET_PROGRESS", "0")),
    }

    cfg.Sanitize = SanitizeConfig{
        MaxNameLength: parseInt(getEnv("MAX_NAME_LENGTH", "160"), 160),
    }

    cfg.Metrics = MetricsConfig{
        Addr: getEnv("METRICS_ADDR", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
