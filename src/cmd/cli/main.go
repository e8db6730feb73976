package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-ocr/src/config"
	"screen-ocr/src/logutil"
	"screen-ocr/src/ocr"
	"screen-ocr/src/runtimeinit"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	engine     string
	lang       string
	filter     bool
	outPath    string

	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	newEngine func(cfg *config.Config) (ocr.Engine, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), &cliOptions{})
}

func runWithArgs(args []string, opts *cliOptions) error {
	if len(args) == 0 {
		args = []string{"ocr-tool"}
	}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ocr-tool",
		Short:         "Extract text from an image or PDF file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.stdin == nil {
				opts.stdin = cmd.InOrStdin()
			}
			if opts.stdout == nil {
				opts.stdout = cmd.OutOrStdout()
			}
			if opts.stderr == nil {
				opts.stderr = cmd.ErrOrStderr()
			}
			return runWithOptions(cmd.Context(), *opts, cmd.Flags().Changed("filter"))
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to an image or PDF file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "OCR engine: tesseract, gosseract or vision")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "OCR language, e.g. eng or eng+deu")
	cmd.Flags().BoolVar(&opts.filter, "filter", false, "Drop short PDF lines")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "Also write the text to this file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, filterSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	verbosef := func(format string, args ...any) {
		if opts.verbose {
			fmt.Fprintf(opts.stderr, "[verbose] "+format+"\n", args...)
		}
	}
	verbosef("Starting OCR tool")

	loadOptions := config.LoadOptions{
		APIKeyPathOverride: opts.apiKeyPath,
		EngineOverride:     opts.engine,
		LanguageOverride:   opts.lang,
	}
	if filterSet {
		loadOptions.FilterOverride = &opts.filter
	}
	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: loadOptions,
		NewEngine:   opts.newEngine,
	})
	if err != nil {
		return err
	}
	defer logutil.Close()
	verbosef("Engine %s ready, lang=%s", rt.Engine.Name(), rt.Config.Language)

	path, cleanup, err := resolveInput(opts.filePath, opts.stdin)
	if err != nil {
		return err
	}
	defer cleanup()
	verbosef("Reading input from %s", path)

	start := time.Now()
	res, err := rt.Pipeline.ExtractFile(ctx, path, rt.ExtractOptions())
	elapsed := time.Since(start)
	if err != nil {
		verbosef("OCR failed after %v: %v", elapsed, err)
		return fmt.Errorf("OCR failed: %w", err)
	}
	text := res.Text()
	verbosef("OCR completed in %v, extracted %d characters", elapsed, len(text))

	if opts.outPath != "" {
		if _, err := rt.Sink.WithoutClipboard().WithFile(opts.outPath).Deliver(ctx, text); err != nil {
			return err
		}
		verbosef("Text written to %s", opts.outPath)
	}

	return outputResult(opts.stdout, text, opts.filePath, len(res.Segments), elapsed, opts.jsonOutput)
}

// resolveInput validates the input file, or spools stdin to a temp file
// named after its sniffed type.
func resolveInput(filePath string, stdin io.Reader) (string, func(), error) {
	noop := func() {}
	if filePath != "-" {
		info, err := os.Stat(filePath)
		if err != nil {
			return "", noop, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
		if err := checkSize(info.Size()); err != nil {
			return "", noop, err
		}
		return filePath, noop, nil
	}

	data, err := io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
	if err != nil {
		return "", noop, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if err := checkSize(int64(len(data))); err != nil {
		return "", noop, err
	}
	dir, err := os.MkdirTemp("", "ocr-tool-")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	path := filepath.Join(dir, "stdin"+sniffExt(data))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", noop, err
	}
	return path, cleanup, nil
}

func checkSize(n int64) error {
	if n == 0 {
		return fmt.Errorf("input file is empty")
	}
	if n > maxFileSize {
		return fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return nil
}

func sniffExt(data []byte) string {
	switch ct := http.DetectContentType(data); {
	case ct == "application/pdf":
		return ".pdf"
	case ct == "image/jpeg":
		return ".jpg"
	case ct == "image/bmp":
		return ".bmp"
	case strings.HasPrefix(string(data), "II*\x00"), strings.HasPrefix(string(data), "MM\x00*"):
		return ".tiff"
	default:
		return ".png"
	}
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	legacy := []string{"-file", "-json", "-verbose", "-api-key-path", "-engine", "-lang", "-filter", "-out"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, flag := range legacy {
			if arg == flag || strings.HasPrefix(arg, flag+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

type OCRResult struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Segments  int     `json:"segments"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(w io.Writer, text, sourcePath string, segments int, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := io.WriteString(w, text)
		return err
	}

	result := OCRResult{
		Text:      text,
		Source:    sourcePath,
		Segments:  segments,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len(text),
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
