package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"screen-ocr/src/logutil"
)

// ErrWriteFailed means a requested destination did not receive the full text.
var ErrWriteFailed = errors.New("write failed")

// Clipboard is the subset of the clipboard package the sink needs.
type Clipboard interface {
	Write(text string) error
}

type Options struct {
	// Clipboard is best-effort; nil skips it.
	Clipboard Clipboard
	// FilePath, when set, receives the text atomically.
	FilePath string
	// Stdout, when set, receives the text as-is.
	Stdout io.Writer
}

// Report lists the destinations that received the text.
type Report struct {
	Clipboard bool
	File      string
	Stdout    bool
}

// Sink delivers extracted text to its destinations.
type Sink struct {
	opts Options
}

func New(opts Options) *Sink {
	return &Sink{opts: opts}
}

// WithFile returns a copy of the sink that also writes to path.
func (s *Sink) WithFile(path string) *Sink {
	opts := s.opts
	opts.FilePath = path
	return &Sink{opts: opts}
}

// WithStdout returns a copy of the sink that also writes to w.
func (s *Sink) WithStdout(w io.Writer) *Sink {
	opts := s.opts
	opts.Stdout = w
	return &Sink{opts: opts}
}

// WithoutClipboard returns a copy of the sink that skips the clipboard.
func (s *Sink) WithoutClipboard() *Sink {
	opts := s.opts
	opts.Clipboard = nil
	return &Sink{opts: opts}
}

// Deliver sends text to every configured destination. Empty text is logged
// and delivered nowhere.
func (s *Sink) Deliver(ctx context.Context, text string) (Report, error) {
	log := logutil.Logger()
	var rep Report

	if text == "" {
		if s.opts.Clipboard != nil {
			log.Warn("No text to copy to clipboard.")
		}
		if s.opts.FilePath != "" {
			log.Warn("No text to save to file.")
		}
		return rep, nil
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	if s.opts.Clipboard != nil {
		if err := s.opts.Clipboard.Write(text); err != nil {
			log.Warnf("Clipboard copy failed: %v", err)
		} else {
			rep.Clipboard = true
			log.Infof("Text copied to clipboard (%d characters).", len(text))
		}
	}

	if s.opts.FilePath != "" {
		if err := WriteFileAtomic(s.opts.FilePath, []byte(text)); err != nil {
			log.Errorf("Failed to save text to %s: %v", s.opts.FilePath, err)
			return rep, fmt.Errorf("%w: %s: %v", ErrWriteFailed, s.opts.FilePath, err)
		}
		rep.File = s.opts.FilePath
		log.WithField("path", s.opts.FilePath).Info("Text saved to file")
	}

	if s.opts.Stdout != nil {
		if _, err := io.WriteString(s.opts.Stdout, text); err != nil {
			log.Errorf("Failed to write text to stdout: %v", err)
			return rep, fmt.Errorf("%w: stdout: %v", ErrWriteFailed, err)
		}
		rep.Stdout = true
	}

	return rep, nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so readers see either the old content or all of the new.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
