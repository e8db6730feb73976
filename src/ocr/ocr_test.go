package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-ocr/src/config"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644))
	return path
}

// fakeTesseract writes a shell script that behaves like tesseract.
func fakeTesseract(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNewSelectsEngine(t *testing.T) {
	cases := map[string]string{
		config.EngineTesseract: "tesseract",
		config.EngineGosseract: "gosseract",
		config.EngineVision:    "vision",
	}
	for engine, want := range cases {
		e, err := New(&config.Config{Engine: engine})
		require.NoError(t, err)
		assert.Equal(t, want, e.Name())
	}

	_, err := New(&config.Config{Engine: "bogus"})
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	_, err = New(nil)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestTesseractRecognize(t *testing.T) {
	bin := fakeTesseract(t, `if [ "$2" != "stdout" ] || [ "$3" != "-l" ]; then exit 2; fi
echo "lang=$4"
echo "  Hello from $(basename "$1")  "`)
	e := NewTesseract(bin)

	text, err := e.Recognize(context.Background(), writeImage(t), "deu")
	require.NoError(t, err)
	assert.Equal(t, "lang=deu\n  Hello from capture.png", text)
}

func TestTesseractMissingBinary(t *testing.T) {
	e := NewTesseract(filepath.Join(t.TempDir(), "nope", "tesseract-not-here"))
	t.Setenv("PATH", t.TempDir())

	_, err := e.Recognize(context.Background(), writeImage(t), "eng")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.ErrorIs(t, e.Check(context.Background()), ErrEngineUnavailable)
}

func TestTesseractMissingLanguage(t *testing.T) {
	bin := fakeTesseract(t, `echo "Error opening data file /usr/share/tessdata/xyz.traineddata" >&2
echo "Failed loading language 'xyz'" >&2
exit 1`)
	_, err := NewTesseract(bin).Recognize(context.Background(), writeImage(t), "xyz")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestTesseractImageFailureIsNotEngineFailure(t *testing.T) {
	bin := fakeTesseract(t, `echo "Error in pixReadStream: Unknown format" >&2
exit 1`)
	_, err := NewTesseract(bin).Recognize(context.Background(), writeImage(t), "eng")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEngineUnavailable)
}

func TestTesseractCheck(t *testing.T) {
	bin := fakeTesseract(t, `echo "tesseract 5.3.0"`)
	assert.NoError(t, NewTesseract(bin).Check(context.Background()))
}

func TestGosseractStubUnavailable(t *testing.T) {
	err := NewGosseract().Check(context.Background())
	if err == nil {
		t.Skip("built with gosseract")
	}
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestVisionRequiresConfig(t *testing.T) {
	_, err := NewVision(VisionConfig{Model: "m"}).Recognize(context.Background(), writeImage(t), "")
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = NewVision(VisionConfig{APIKey: "k"}).Recognize(context.Background(), writeImage(t), "")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestVisionRecognize(t *testing.T) {
	var (
		mu      sync.Mutex
		payload map[string]any
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &payload)
		headers = r.Header.Clone()
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Invoice 42\nTotal 9.99</image>"}}]}`)
	}))
	defer srv.Close()

	v := NewVision(VisionConfig{APIKey: "sk-test-123456789", Model: "vision-model", Providers: []string{"p1"}, BaseURL: srv.URL})
	text, err := v.Recognize(context.Background(), writeImage(t), "eng")
	require.NoError(t, err)
	assert.Equal(t, "Invoice 42\nTotal 9.99", text)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "vision-model", payload["model"])
	provider, ok := payload["provider"].(map[string]any)
	require.True(t, ok, "provider preferences injected")
	assert.Equal(t, []any{"p1"}, provider["order"])
	assert.Equal(t, false, provider["allow_fallbacks"])
	assert.Equal(t, "Screen OCR Tool", headers.Get("X-Title"))
	assert.Equal(t, "Bearer sk-test-123456789", headers.Get("Authorization"))
	assert.Contains(t, mustJSON(t, payload["messages"]), "data:image/png;base64,")
}

func TestVisionNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"NO_TEXT_FOUND"}}]}`)
	}))
	defer srv.Close()

	text, err := NewVision(VisionConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}).Recognize(context.Background(), writeImage(t), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestVisionUnauthorizedIsEngineUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"No auth credentials found","code":401}}`)
	}))
	defer srv.Close()

	_, err := NewVision(VisionConfig{APIKey: "bad", Model: "m", BaseURL: srv.URL}).Recognize(context.Background(), writeImage(t), "")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "auth failures are not retried")
}

func TestWithProvidersLeavesNonJSON(t *testing.T) {
	assert.Equal(t, []byte("not json"), withProviders([]byte("not json"), []string{"x"}))
}

func TestCleanExtractedText(t *testing.T) {
	assert.Equal(t, "", cleanExtractedText("</image>"))
	assert.Equal(t, "abc", cleanExtractedText("abc</image>"))
	assert.Equal(t, "abc", cleanExtractedText("abc"))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
