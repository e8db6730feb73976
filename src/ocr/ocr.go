package ocr

import (
	"context"
	"errors"
	"fmt"

	"screen-ocr/src/config"
)

// ErrEngineUnavailable means the OCR engine is missing or misconfigured, as
// opposed to failing on one particular image.
var ErrEngineUnavailable = errors.New("OCR engine unavailable")

// Engine recognizes text in an image file.
type Engine interface {
	Name() string
	// Check verifies the engine can run at all.
	Check(ctx context.Context) error
	// Recognize returns the text found in the image at imagePath. lang is a
	// tesseract-style language code such as "eng" or "eng+deu".
	Recognize(ctx context.Context, imagePath, lang string) (string, error)
}

// New returns the engine selected by cfg.Engine.
func New(cfg *config.Config) (Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", ErrEngineUnavailable)
	}
	switch cfg.Engine {
	case config.EngineTesseract:
		return NewTesseract(cfg.TesseractPath), nil
	case config.EngineGosseract:
		return NewGosseract(), nil
	case config.EngineVision:
		return NewVision(VisionConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Providers: cfg.Providers,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrEngineUnavailable, cfg.Engine)
	}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEngineUnavailable, fmt.Sprintf(format, args...))
}
