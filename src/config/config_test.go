package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("HOTKEY", "Ctrl+Shift+T")
	t.Setenv("OCR_LANGUAGE", "deu")
	t.Setenv("ENABLE_FILE_LOGGING", "false")
	t.Setenv("PDF_FILTER", "true")
	t.Setenv("PDF_MIN_LINE_LENGTH", "8")
	t.Setenv("MODEL", "test_model")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Hotkey != "Ctrl+Shift+T" {
		t.Errorf("Expected Hotkey to be 'Ctrl+Shift+T', got '%s'", cfg.Hotkey)
	}
	if cfg.Language != "deu" {
		t.Errorf("Expected Language to be 'deu', got '%s'", cfg.Language)
	}
	if cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be false")
	}
	if !cfg.PDFFilter {
		t.Errorf("Expected PDFFilter to be true")
	}
	if cfg.PDFMinLineLength != 8 {
		t.Errorf("Expected PDFMinLineLength to be 8, got %d", cfg.PDFMinLineLength)
	}
	if cfg.Model != "test_model" {
		t.Errorf("Expected Model to be 'test_model', got '%s'", cfg.Model)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HOTKEY", "CANCEL_KEY", "OCR_ENGINE", "OCR_LANGUAGE", "PDF_MIN_LINE_LENGTH", "CAPTURE_PATH", "SAVE_OUTPUT", "PDF_WORKERS", "SINGLEINSTANCE_PORT_START", "SINGLEINSTANCE_PORT_END"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Hotkey != DefaultHotkey {
		t.Errorf("Expected default hotkey %q, got %q", DefaultHotkey, cfg.Hotkey)
	}
	if cfg.CancelKey != DefaultCancelKey {
		t.Errorf("Expected default cancel key %q, got %q", DefaultCancelKey, cfg.CancelKey)
	}
	if cfg.Engine != EngineTesseract {
		t.Errorf("Expected default engine %q, got %q", EngineTesseract, cfg.Engine)
	}
	if cfg.PDFMinLineLength != DefaultMinLineLength {
		t.Errorf("Expected default min line length %d, got %d", DefaultMinLineLength, cfg.PDFMinLineLength)
	}
	if cfg.CapturePath != DefaultCapturePath {
		t.Errorf("Expected default capture path %q, got %q", DefaultCapturePath, cfg.CapturePath)
	}
	if cfg.SaveOutput {
		t.Errorf("Expected SaveOutput to default to false")
	}
	if cfg.PDFWorkers != 1 {
		t.Errorf("Expected PDFWorkers to default to 1, got %d", cfg.PDFWorkers)
	}
	if cfg.SingleInstancePortStart != DefaultPortStart || cfg.SingleInstancePortEnd != DefaultPortEnd {
		t.Errorf("Expected default port range %d-%d, got %d-%d", DefaultPortStart, DefaultPortEnd,
			cfg.SingleInstancePortStart, cfg.SingleInstancePortEnd)
	}
}

func TestLoadWithOptionsOverrides(t *testing.T) {
	t.Setenv("OCR_LANGUAGE", "eng")
	t.Setenv("PDF_FILTER", "false")

	filter := true
	cfg, err := LoadWithOptions(LoadOptions{
		LanguageOverride:   "fra",
		EngineOverride:     "llm",
		OutputPathOverride: "out.txt",
		FilterOverride:     &filter,
	})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Language != "fra" {
		t.Errorf("Expected override language 'fra', got %q", cfg.Language)
	}
	if cfg.Engine != EngineVision {
		t.Errorf("Expected engine alias to resolve to %q, got %q", EngineVision, cfg.Engine)
	}
	if cfg.OutputPath != "out.txt" || !cfg.SaveOutput {
		t.Errorf("Expected output override to enable saving to out.txt, got %q save=%v", cfg.OutputPath, cfg.SaveOutput)
	}
	if !cfg.PDFFilter {
		t.Errorf("Expected filter override to win over env")
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "screen-ocr.env")
	if err := os.WriteFile(envFile, []byte("CANCEL_KEY=q\nMIN_SELECTION_SPAN=4\nSINGLEINSTANCE_PORT_START=50200\nSINGLEINSTANCE_PORT_END=50201\n"), 0600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(EnvPathEnvVar, envFile)
	// godotenv never overrides variables that are already present.
	t.Setenv("CANCEL_KEY", "")
	t.Setenv("MIN_SELECTION_SPAN", "")
	t.Setenv("SINGLEINSTANCE_PORT_START", "")
	t.Setenv("SINGLEINSTANCE_PORT_END", "")
	os.Unsetenv("CANCEL_KEY")
	os.Unsetenv("MIN_SELECTION_SPAN")
	os.Unsetenv("SINGLEINSTANCE_PORT_START")
	os.Unsetenv("SINGLEINSTANCE_PORT_END")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.CancelKey != "q" {
		t.Errorf("Expected CANCEL_KEY from env file, got %q", cfg.CancelKey)
	}
	if cfg.MinSelectionSpan != 4 {
		t.Errorf("Expected MIN_SELECTION_SPAN=4 from env file, got %d", cfg.MinSelectionSpan)
	}
	if cfg.SingleInstancePortStart != 50200 || cfg.SingleInstancePortEnd != 50201 {
		t.Errorf("Expected port range 50200-50201 from env file, got %d-%d",
			cfg.SingleInstancePortStart, cfg.SingleInstancePortEnd)
	}
}

func TestAPIKeyFromFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("  file-key\n"), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, err := LoadWithOptions(LoadOptions{APIKeyPathOverride: keyFile})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.APIKey != "file-key" {
		t.Errorf("Expected key file to take precedence, got %q", cfg.APIKey)
	}
}
