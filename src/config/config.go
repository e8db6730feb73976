package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	EnvPathEnvVar     = "SCREEN_OCR_ENV"

	DefaultHotkey        = "Ctrl+Shift+Alt+S"
	DefaultCancelKey     = "esc"
	DefaultLanguage      = "eng"
	DefaultEngine        = EngineTesseract
	DefaultMinLineLength = 21
	DefaultCapturePath   = "assets/screenshot.png"
	DefaultOutputPath    = "assets/extracted_text.txt"
	DefaultLogFile       = "image_to_text.log"
	DefaultSelectionRGB  = "#0078d4"
	DefaultPortStart     = 49500
	DefaultPortEnd       = 49550

	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
	EngineVision    = "vision"
)

// tesseractPaths are the per-OS default locations of the tesseract binary.
var tesseractPaths = map[string]string{
	"windows": `C:\Program Files\Tesseract-OCR\tesseract.exe`,
	"linux":   "/usr/bin/tesseract",
	"darwin":  "/usr/local/bin/tesseract",
}

type LoadOptions struct {
	APIKeyPathOverride string
	LanguageOverride   string
	EngineOverride     string
	OutputPathOverride string
	FilterOverride     *bool
}

type Config struct {
	Hotkey    string
	CancelKey string

	Engine         string
	TesseractPath  string
	Language       string
	OCRDeadlineSec int

	PDFFilter        bool
	PDFMinLineLength int
	PDFWorkers       int

	CapturePath string
	OutputPath  string
	SaveOutput  bool

	LogFile           string
	LogLevel          string
	EnableFileLogging bool

	MinSelectionSpan int
	SelectionColor   string

	// Loopback port range for the resident; it binds the first port.
	SingleInstancePortStart int
	SingleInstancePortEnd   int

	APIKey     string
	APIKeyPath string
	Model      string
	Providers  []string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) otherwise the file named by SCREEN_OCR_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		Hotkey:                  getEnvWithDefault("HOTKEY", DefaultHotkey),
		CancelKey:               getEnvWithDefault("CANCEL_KEY", DefaultCancelKey),
		Engine:                  resolveEngine(firstNonEmpty(opts.EngineOverride, os.Getenv("OCR_ENGINE"))),
		TesseractPath:           getEnvWithDefault("TESSERACT_PATH", defaultTesseractPath()),
		Language:                firstNonEmpty(opts.LanguageOverride, getEnvWithDefault("OCR_LANGUAGE", DefaultLanguage)),
		OCRDeadlineSec:          getEnvInt("OCR_DEADLINE_SEC", 20),
		PDFFilter:               getEnvBool("PDF_FILTER", false),
		PDFMinLineLength:        getEnvInt("PDF_MIN_LINE_LENGTH", DefaultMinLineLength),
		PDFWorkers:              getEnvInt("PDF_WORKERS", 1),
		CapturePath:             getEnvWithDefault("CAPTURE_PATH", DefaultCapturePath),
		OutputPath:              firstNonEmpty(opts.OutputPathOverride, getEnvWithDefault("OUTPUT_PATH", DefaultOutputPath)),
		SaveOutput:              getEnvBool("SAVE_OUTPUT", false) || opts.OutputPathOverride != "",
		LogFile:                 getEnvWithDefault("LOG_FILE", DefaultLogFile),
		LogLevel:                getEnvWithDefault("LOG_LEVEL", "info"),
		EnableFileLogging:       getEnvBool("ENABLE_FILE_LOGGING", true),
		MinSelectionSpan:        getEnvIntAllowZero("MIN_SELECTION_SPAN", 0),
		SelectionColor:          getEnvWithDefault("SELECTION_COLOR", DefaultSelectionRGB),
		SingleInstancePortStart: getEnvInt("SINGLEINSTANCE_PORT_START", DefaultPortStart),
		SingleInstancePortEnd:   getEnvInt("SINGLEINSTANCE_PORT_END", DefaultPortEnd),
		APIKey:                  resolveAPIKey(apiKeyPath),
		APIKeyPath:              apiKeyPath,
		Model:                   os.Getenv("MODEL"),
		Providers:               providers,
	}
	if opts.FilterOverride != nil {
		cfg.PDFFilter = *opts.FilterOverride
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func resolveEngine(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case EngineGosseract:
		return EngineGosseract
	case EngineVision, "llm", "openrouter":
		return EngineVision
	default:
		return EngineTesseract
	}
}

func defaultTesseractPath() string {
	if p, ok := tesseractPaths[runtime.GOOS]; ok {
		return p
	}
	return "tesseract"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns a positive integer from env, or def when unset/invalid.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getEnvIntAllowZero(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
