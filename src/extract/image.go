package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"screen-ocr/src/logutil"
	"screen-ocr/src/ocr"
)

// ImageExtractor runs OCR once over a whole image.
type ImageExtractor struct {
	Engine ocr.Engine
}

func (e *ImageExtractor) Extract(ctx context.Context, req Request) (Result, error) {
	log := logutil.Logger().WithField("path", req.Path)

	// Decode first so a corrupt file is reported as such rather than as an
	// engine error.
	img, err := imaging.Open(req.Path)
	if err != nil {
		log.Errorf("Failed to read image: %v", err)
		return Result{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Result{}, fmt.Errorf("%w: empty image", ErrSourceUnreadable)
	}

	start := time.Now()
	log.Infof("Image extraction started (%dx%d, lang=%s)", b.Dx(), b.Dy(), req.Options.Language)
	text, err := e.Engine.Recognize(ctx, req.Path, req.Options.Language)
	if err != nil {
		log.Errorf("Failed to extract text from image: %v", err)
		return Result{}, fmt.Errorf("image OCR failed: %w", err)
	}
	log.Infof("Image extraction finished in %s, %d characters", time.Since(start).Round(time.Millisecond), len(text))
	return Result{Segments: []string{text}}, nil
}
