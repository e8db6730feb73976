// Package extract turns image and PDF files into text.
//
// A Pipeline picks the variant by file extension. Images go through the OCR
// engine once and yield one segment. PDFs yield one segment per page in
// document order: the text layer is used where present, and pages without
// one are rasterized and OCR'd when a Rasterizer is configured.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"screen-ocr/src/ocr"
)

var (
	// ErrSourceUnreadable means the file is missing, corrupt or undecodable.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrUnsupportedFormat means the extension is not one we extract from.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEngineUnavailable is ocr.ErrEngineUnavailable, re-exported so callers
	// of this package need not import ocr to classify failures.
	ErrEngineUnavailable = ocr.ErrEngineUnavailable
)

// SegmentSeparator is placed between page or image segments in Text.
const SegmentSeparator = "\n\n"

// DefaultMinLineLength keeps lines longer than 20 characters.
const DefaultMinLineLength = 21

type Kind int

const (
	KindImage Kind = iota + 1
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

var kindsByExt = map[string]Kind{
	"pdf":  KindPDF,
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"tiff": KindImage,
	"tif":  KindImage,
	"bmp":  KindImage,
}

// KindOf classifies path by extension.
func KindOf(path string) (Kind, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if k, ok := kindsByExt[ext]; ok {
		return k, nil
	}
	if ext == "" {
		return 0, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return 0, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
}

type Options struct {
	// Language is passed to the OCR engine, e.g. "eng".
	Language string
	// Filter drops PDF lines shorter than MinLineLength characters.
	Filter        bool
	MinLineLength int
}

type Request struct {
	Path    string
	Kind    Kind
	Options Options
}

// NewRequest builds a Request for path, inferring Kind from the extension.
func NewRequest(path string, opts Options) (Request, error) {
	kind, err := KindOf(path)
	if err != nil {
		return Request{}, err
	}
	return Request{Path: path, Kind: kind, Options: opts}, nil
}

// Result holds the segments in reading order.
type Result struct {
	Segments []string
}

// Text joins the non-empty segments with SegmentSeparator.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, SegmentSeparator)
}

// Extractor is the capability shared by the image and PDF variants.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}

// Pipeline dispatches a Request to the extractor for its Kind.
type Pipeline struct {
	Image Extractor
	PDF   Extractor
}

// NewPipeline wires both variants to engine. rasterizer may be nil.
func NewPipeline(engine ocr.Engine, rasterizer Rasterizer, pdfWorkers int) *Pipeline {
	return &Pipeline{
		Image: &ImageExtractor{Engine: engine},
		PDF: &PDFExtractor{
			Reader:     LedongthucReader{},
			Engine:     engine,
			Rasterizer: rasterizer,
			Workers:    pdfWorkers,
		},
	}
}

func (p *Pipeline) Extract(ctx context.Context, req Request) (Result, error) {
	if req.Kind == 0 {
		kind, err := KindOf(req.Path)
		if err != nil {
			return Result{}, err
		}
		req.Kind = kind
	}
	switch req.Kind {
	case KindImage:
		return p.Image.Extract(ctx, req)
	case KindPDF:
		return p.PDF.Extract(ctx, req)
	default:
		return Result{}, fmt.Errorf("%w: kind %s", ErrUnsupportedFormat, req.Kind)
	}
}

// ExtractFile is a convenience for NewRequest followed by Extract.
func (p *Pipeline) ExtractFile(ctx context.Context, path string, opts Options) (Result, error) {
	req, err := NewRequest(path, opts)
	if err != nil {
		return Result{}, err
	}
	return p.Extract(ctx, req)
}
