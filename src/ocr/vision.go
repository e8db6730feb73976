package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"screen-ocr/src/logutil"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	maxRetries        = 3
	initialDelay      = 1 * time.Second
	requestTimeout    = 45 * time.Second
	noTextMarker      = "NO_TEXT_FOUND"

	visionPrompt = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
		"- No formatting\n" +
		"- No XML/HTML tags\n" +
		"- No markdown\n" +
		"- No explanations\n" +
		"- Preserve line breaks accurately from the visual layout.\n" +
		"If no text found, return '" + noTextMarker + "'"
)

type VisionConfig struct {
	APIKey    string
	Model     string
	Providers []string
	// BaseURL overrides the OpenRouter endpoint.
	BaseURL string
}

// Vision sends the image to a vision-capable chat model on OpenRouter.
type Vision struct {
	cfg    VisionConfig
	client *openai.Client
}

func NewVision(cfg VisionConfig) *Vision {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{
		Timeout:   requestTimeout,
		Transport: &openRouterTransport{base: http.DefaultTransport, providers: cfg.Providers},
	}
	return &Vision{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (v *Vision) Name() string { return "vision" }

func (v *Vision) validate() error {
	if v.cfg.APIKey == "" {
		return unavailable("API key is required")
	}
	if v.cfg.Model == "" {
		return unavailable("model is required")
	}
	return nil
}

func (v *Vision) Check(ctx context.Context) error {
	if err := v.validate(); err != nil {
		return err
	}
	if _, err := v.client.ListModels(ctx); err != nil {
		return classify(fmt.Errorf("model list request failed: %w", err))
	}
	logutil.Logger().Debugf("Vision engine ready: model=%s key=%s", v.cfg.Model, logutil.RedactKey(v.cfg.APIKey))
	return nil
}

// Recognize ignores lang; the model reads whatever script is present.
func (v *Vision) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	if err := v.validate(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	request := openai.ChatCompletionRequest{
		Model: v.cfg.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL: dataURL(imagePath, data),
				}},
			},
		}},
		Temperature: 0.1,
		MaxTokens:   2000,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(initialDelay) * (1.5 * float64(attempt)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := v.client.CreateChatCompletion(ctx, request)
		if err != nil {
			lastErr = classify(err)
			if errors.Is(lastErr, ErrEngineUnavailable) || ctx.Err() != nil {
				return "", lastErr
			}
			logutil.Logger().Warnf("Vision request attempt %d failed: %v", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in API response")
			continue
		}

		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" || text == noTextMarker {
			return "", nil
		}
		return cleanExtractedText(text), nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// classify maps authentication and routing failures to ErrEngineUnavailable.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusPaymentRequired:
			return unavailable("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return unavailable("request rejected with status %d", reqErr.HTTPStatusCode)
		}
	}
	return err
}

func dataURL(path string, data []byte) string {
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mt, base64.StdEncoding.EncodeToString(data))
}

func cleanExtractedText(text string) string {
	if text == "</image>" {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(text, "</image>"))
}

// openRouterTransport adds the attribution headers and the provider routing
// preferences that the OpenAI request type has no field for.
type openRouterTransport struct {
	base      http.RoundTripper
	providers []string
}

func (t *openRouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("HTTP-Referer", "https://github.com/screen-ocr/screen-ocr")
	req.Header.Set("X-Title", "Screen OCR Tool")

	if len(t.providers) > 0 && req.Body != nil && req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = withProviders(body, t.providers)
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return t.base.RoundTrip(req)
}

// withProviders pins the request to the given providers without fallbacks.
// Bodies that are not JSON objects pass through unchanged.
func withProviders(body []byte, providers []string) []byte {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}
	payload["provider"] = map[string]any{
		"order":           providers,
		"allow_fallbacks": false,
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return out
}
