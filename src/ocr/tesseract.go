package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"screen-ocr/src/logutil"
)

// Tesseract shells out to the tesseract binary.
type Tesseract struct {
	// Path is the binary location; a bare name is looked up on PATH.
	Path string
}

func NewTesseract(path string) *Tesseract {
	if strings.TrimSpace(path) == "" {
		path = "tesseract"
	}
	return &Tesseract{Path: path}
}

func (t *Tesseract) Name() string { return "tesseract" }

// resolve returns the runnable binary path.
func (t *Tesseract) resolve() (string, error) {
	if strings.ContainsRune(t.Path, filepath.Separator) || filepath.IsAbs(t.Path) {
		info, err := os.Stat(t.Path)
		if err != nil {
			// Fall back to PATH when the configured default is not installed.
			if p, lerr := exec.LookPath("tesseract"); lerr == nil {
				logutil.Logger().Warnf("Tesseract not found at %s, using %s", t.Path, p)
				return p, nil
			}
			return "", unavailable("tesseract not found at %s", t.Path)
		}
		if info.IsDir() {
			return "", unavailable("tesseract path %s is a directory", t.Path)
		}
		return t.Path, nil
	}
	p, err := exec.LookPath(t.Path)
	if err != nil {
		return "", unavailable("%s not found on PATH", t.Path)
	}
	return p, nil
}

func (t *Tesseract) Check(ctx context.Context) error {
	bin, err := t.resolve()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return unavailable("%s --version: %v", bin, err)
	}
	if line, _, _ := strings.Cut(out.String(), "\n"); line != "" {
		logutil.Logger().Debugf("Tesseract: %s", strings.TrimSpace(line))
	}
	return nil
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	bin, err := t.resolve()
	if err != nil {
		return "", err
	}
	if lang == "" {
		lang = "eng"
	}

	// Usage: tesseract imagefile stdout -l eng
	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout", "-l", lang)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) || errors.Is(err, exec.ErrNotFound) {
			return "", unavailable("cannot run %s: %v", bin, err)
		}
		// Missing traineddata is a configuration problem, not a bad image.
		if strings.Contains(msg, "Failed loading language") || strings.Contains(msg, "Error opening data file") {
			return "", unavailable("language %q not installed: %s", lang, msg)
		}
		return "", fmt.Errorf("tesseract failed: %w (stderr: %s)", err, msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
