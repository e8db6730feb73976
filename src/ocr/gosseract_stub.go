//go:build !gosseract

package ocr

import "context"

// Gosseract is unavailable without the gosseract build tag.
type Gosseract struct{}

func NewGosseract() *Gosseract { return &Gosseract{} }

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Check(ctx context.Context) error {
	return unavailable("built without the gosseract tag")
}

func (g *Gosseract) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	return "", unavailable("built without the gosseract tag")
}
