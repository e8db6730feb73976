package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-ocr/src/config"
	"screen-ocr/src/ocr"
)

type fakeEngine struct{ text string }

func (f fakeEngine) Name() string                    { return "fake" }
func (f fakeEngine) Check(ctx context.Context) error { return nil }

func (f fakeEngine) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	return f.text, nil
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SCREEN_OCR_ENV", "")
	t.Setenv("ENABLE_FILE_LOGGING", "false")
}

func testOptions(text string) (*cliOptions, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &cliOptions{
		stdout:    &stdout,
		stderr:    &stderr,
		newEngine: func(*config.Config) (ocr.Engine, error) { return fakeEngine{text: text}, nil },
	}, &stdout, &stderr
}

func writePNG(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sample.png")
	require.NoError(t, imaging.Save(image.NewRGBA(image.Rect(0, 0, 8, 8)), p))
	return p
}

func TestPlainTextOutput(t *testing.T) {
	isolateEnv(t)
	opts, stdout, _ := testOptions("Hello, world\n")
	require.NoError(t, runWithArgs([]string{"ocr-tool", "--file", writePNG(t)}, opts))
	assert.Equal(t, "Hello, world", stdout.String())
}

func TestJSONOutputAndOutFile(t *testing.T) {
	isolateEnv(t)
	src := writePNG(t)
	out := filepath.Join(t.TempDir(), "out.txt")
	opts, stdout, stderr := testOptions("Invoice total 42")

	require.NoError(t, runWithArgs([]string{"ocr-tool", "-file", src, "-json", "--out", out, "-v"}, opts))

	var result OCRResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "Invoice total 42", result.Text)
	assert.Equal(t, src, result.Source)
	assert.Equal(t, 1, result.Segments)
	assert.Equal(t, len("Invoice total 42"), result.CharCount)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Invoice total 42", string(data))
	assert.Contains(t, stderr.String(), "[verbose]")
}

func TestStdinInput(t *testing.T) {
	isolateEnv(t)
	data, err := os.ReadFile(writePNG(t))
	require.NoError(t, err)

	opts, stdout, _ := testOptions("from stdin")
	opts.stdin = bytes.NewReader(data)
	require.NoError(t, runWithArgs([]string{"ocr-tool", "--file", "-"}, opts))
	assert.Equal(t, "from stdin", stdout.String())
}

func TestInputValidation(t *testing.T) {
	isolateEnv(t)
	empty := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	opts, _, _ := testOptions("x")
	assert.ErrorContains(t, runWithArgs([]string{"ocr-tool", "--file", empty}, opts), "empty")

	opts, _, _ = testOptions("x")
	assert.Error(t, runWithArgs([]string{"ocr-tool", "--file", filepath.Join(t.TempDir(), "missing.png")}, opts))

	opts, _, _ = testOptions("x")
	assert.Error(t, runWithArgs([]string{"ocr-tool"}, opts), "--file is required")
}

func TestSniffExt(t *testing.T) {
	assert.Equal(t, ".pdf", sniffExt([]byte("%PDF-1.7\n")))
	assert.Equal(t, ".jpg", sniffExt([]byte{0xff, 0xd8, 0xff, 0xe0}))
	assert.Equal(t, ".tiff", sniffExt([]byte("II*\x00rest")))
	assert.Equal(t, ".png", sniffExt([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}))
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"ocr-tool", "-file", "a.png", "-json=true", "-filter", "--out", "x", "-v"})
	assert.Equal(t, []string{"ocr-tool", "--file", "a.png", "--json=true", "--filter", "--out", "x", "-v"}, got)
}
