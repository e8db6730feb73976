//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract runs libtesseract in-process. Build with -tags gosseract.
type Gosseract struct {
	// libtesseract clients are not safe for concurrent use.
	mu sync.Mutex
}

func NewGosseract() *Gosseract { return &Gosseract{} }

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Check(ctx context.Context) error {
	client := gosseract.NewClient()
	defer client.Close()
	if v := client.Version(); v == "" {
		return unavailable("libtesseract did not report a version")
	}
	return nil
}

func (g *Gosseract) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	client := gosseract.NewClient()
	defer client.Close()

	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return "", unavailable("failed to set language %q: %v", lang, err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
