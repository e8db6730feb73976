package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"screen-ocr/src/logutil"
	"screen-ocr/src/ocr"
)

// PageReader opens a PDF for page-by-page text access.
type PageReader interface {
	Open(path string) (Document, error)
}

// Document is an opened PDF. Pages are numbered from 1. PageText must be
// safe for concurrent use when the extractor runs more than one worker.
type Document interface {
	NumPages() int
	PageText(page int) (string, error)
	Close() error
}

// PDFExtractor produces one segment per page, in page order.
type PDFExtractor struct {
	Reader     PageReader
	Engine     ocr.Engine
	Rasterizer Rasterizer
	// Workers bounds concurrent page processing; <= 1 is sequential.
	Workers int
}

type pageFailure struct {
	page int
	err  error
}

func (e *PDFExtractor) Extract(ctx context.Context, req Request) (Result, error) {
	log := logutil.Logger().WithField("path", req.Path)

	if _, err := os.Stat(req.Path); err != nil {
		log.Errorf("Failed to extract text from PDF: %v", err)
		return Result{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	doc, err := e.Reader.Open(req.Path)
	if err != nil {
		log.Errorf("Failed to open PDF: %v", err)
		return Result{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	defer doc.Close()

	n := doc.NumPages()
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: no pages", ErrSourceUnreadable)
	}

	start := time.Now()
	log.Infof("PDF extraction started: %d pages, filter=%v", n, req.Options.Filter)

	segments := make([]string, n)
	failures := make([]error, n)

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		page := i + 1
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := e.page(gctx, doc, req, page)
			if err != nil {
				failures[i] = err
				log.WithFields(logrus.Fields{"page": page}).Warnf("Page extraction failed: %v", err)
				return nil
			}
			if req.Options.Filter {
				text = FilterShortLines(text, req.Options.MinLineLength)
			}
			segments[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var failed []pageFailure
	for i, err := range failures {
		if err != nil {
			failed = append(failed, pageFailure{page: i + 1, err: err})
		}
	}
	if len(failed) == n {
		return Result{}, allPagesFailed(failed)
	}

	log.Infof("PDF extraction finished in %s: %d pages, %d failed", time.Since(start).Round(time.Millisecond), n, len(failed))
	return Result{Segments: segments}, nil
}

// page reads the text layer and falls back to OCR for pages without one.
func (e *PDFExtractor) page(ctx context.Context, doc Document, req Request, page int) (string, error) {
	text, textErr := doc.PageText(page)
	if textErr == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if e.Rasterizer == nil || e.Engine == nil {
		if textErr != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrSourceUnreadable, page, textErr)
		}
		return "", nil
	}

	dir, err := os.MkdirTemp("", "screen-ocr-page-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	img, err := e.Rasterizer.Rasterize(ctx, req.Path, page, filepath.Join(dir, "page"))
	if err != nil {
		return "", err
	}
	return e.Engine.Recognize(ctx, img, req.Options.Language)
}

// allPagesFailed reports the engine as the cause when any page failed on it.
func allPagesFailed(failed []pageFailure) error {
	errs := make([]error, 0, len(failed))
	engine := false
	for _, f := range failed {
		if errors.Is(f.err, ErrEngineUnavailable) {
			engine = true
		}
		errs = append(errs, fmt.Errorf("page %d: %w", f.page, f.err))
	}
	cause := ErrSourceUnreadable
	if engine {
		cause = ErrEngineUnavailable
	}
	return fmt.Errorf("%w: all %d pages failed: %v", cause, len(failed), errors.Join(errs...))
}

// LedongthucReader reads the PDF text layer with github.com/ledongthuc/pdf.
type LedongthucReader struct{}

func (LedongthucReader) Open(path string) (doc Document, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &ledongthucDoc{f: f, r: r}, nil
}

type ledongthucDoc struct {
	f interface{ Close() error }
	r *pdf.Reader
}

func (d *ledongthucDoc) NumPages() int { return d.r.NumPage() }

func (d *ledongthucDoc) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed page %d: %v", n, r)
		}
	}()
	p := d.r.Page(n)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d missing", n)
	}
	rows, err := p.GetTextByRow()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, row := range rows {
		for _, word := range row.Content {
			sb.WriteString(word.S)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (d *ledongthucDoc) Close() error { return d.f.Close() }
