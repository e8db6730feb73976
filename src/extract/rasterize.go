package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"screen-ocr/src/ocr"
)

// Rasterizer renders one PDF page to an image file for OCR.
type Rasterizer interface {
	// Rasterize writes page of pdfPath to outPrefix plus an extension and
	// returns the file path.
	Rasterize(ctx context.Context, pdfPath string, page int, outPrefix string) (string, error)
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	Path string
	DPI  int
}

// NewPdftoppm returns a rasterizer if pdftoppm is on PATH, else nil.
func NewPdftoppm() Rasterizer {
	p, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil
	}
	return &Pdftoppm{Path: p, DPI: 300}
}

func (r *Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page int, outPrefix string) (string, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}
	p := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, r.Path,
		"-f", p, "-l", p,
		"-r", strconv.Itoa(dpi),
		"-png", "-singlefile",
		pdfPath, outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, lerr := exec.LookPath(r.Path); lerr != nil {
			return "", fmt.Errorf("%w: pdftoppm: %v", ocr.ErrEngineUnavailable, err)
		}
		return "", fmt.Errorf("%w: pdftoppm page %d: %v (stderr: %s)", ErrSourceUnreadable, page, err, strings.TrimSpace(stderr.String()))
	}
	return outPrefix + ".png", nil
}
