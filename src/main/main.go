package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screen-ocr/src/config"
	"screen-ocr/src/eventloop"
	"screen-ocr/src/extract"
	"screen-ocr/src/gui"
	"screen-ocr/src/hotkey"
	"screen-ocr/src/logutil"
	"screen-ocr/src/notification"
	"screen-ocr/src/overlay"
	"screen-ocr/src/popup"
	"screen-ocr/src/runtimeinit"
	"screen-ocr/src/screenshot"
	"screen-ocr/src/session"
	"screen-ocr/src/singleinstance"
	"screen-ocr/src/tray"
	"screen-ocr/src/worker"
)

// captureSettle is how long the compositor gets to remove the overlay
// before the region is grabbed.
const captureSettle = 150 * time.Millisecond

type mainOptions struct {
	runOnce    bool
	runOnceStd bool
	apiKeyPath string
	engine     string
	lang       string
	outputPath string
	verbose    bool
}

func (o mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		APIKeyPathOverride: o.apiKeyPath,
		EngineOverride:     o.engine,
		LanguageOverride:   o.lang,
		OutputPathOverride: o.outputPath,
	}
}

func main() {
	enableDPIAwareness()
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-ocr"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-ocr",
		Short:         "Select a screen region with a hotkey and extract its text",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce || opts.runOnceStd {
				return runOnce(cmd.Context(), *opts, cmd.OutOrStdout())
			}
			return runResident(*opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	flags.StringVar(&opts.engine, "engine", "", "OCR engine: tesseract, gosseract or vision")
	flags.StringVar(&opts.lang, "lang", "", "OCR language, e.g. eng or eng+deu")
	flags.StringVar(&opts.outputPath, "output", "", "Also save extracted text to this file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror log output to stderr")

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Capture once, copy to clipboard, and exit")
	cmd.Flags().BoolVar(&opts.runOnceStd, "run-once-std", false, "Capture once and print the text to stdout")

	cmd.AddCommand(newExtractCmd(opts))
	return cmd
}

func newExtractCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE...",
		Short: "Extract text from image or PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), *opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// normalizeLegacyArgs maps single-dash long flags to the double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)

	legacy := []string{"-run-once-std", "-run-once", "-api-key-path", "-engine", "-lang", "-output", "-verbose"}
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

func bootstrap(ctx context.Context, opts mainOptions, blocking bool) (*runtimeinit.Runtime, error) {
	return runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:             opts.loadOptions(),
		Verbose:                 opts.verbose,
		ShowBlockingEngineError: blocking,
	})
}

func newSelector(ui *gui.App, cfg *config.Config) overlay.Selector {
	surface := ui.NewSurface(gui.SurfaceOptions{SelectionColor: cfg.SelectionColor})
	return overlay.NewSelector(surface, overlay.Options{MinSpan: cfg.MinSelectionSpan})
}

// residentPorts is the loopback range both the resident and run-once
// clients agree on.
func residentPorts(cfg *config.Config) singleinstance.PortRange {
	return singleinstance.PortRange{Start: cfg.SingleInstancePortStart, End: cfg.SingleInstancePortEnd}
}

// displayBounds reports the virtual screen; replaced in tests.
var displayBounds = screenshot.VirtualBounds

// checkDisplay fails when no display can host the selection overlay.
func checkDisplay(bounds func() (image.Rectangle, error)) error {
	r, err := bounds()
	if err == nil && r.Empty() {
		err = screenshot.ErrNoDisplay
	}
	if err != nil {
		return fmt.Errorf("%w: %v", overlay.ErrDisplayUnavailable, err)
	}
	return nil
}

// runResident owns the hotkey until SIGINT/SIGTERM or the tray Quit item.
func runResident(opts mainOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx, opts, true)
	if err != nil {
		return err
	}
	defer logutil.Close()
	log := logutil.Logger()

	ports := residentPorts(rt.Config)
	preflight, cancelPreflight := context.WithTimeout(ctx, time.Second)
	port, running := singleinstance.DetectResidentPort(preflight, ports)
	cancelPreflight()
	if running {
		return fmt.Errorf("screen-ocr is already running on port %d", port)
	}
	if err := checkDisplay(displayBounds); err != nil {
		log.Errorf("Cannot start resident: %v", err)
		return err
	}
	logMonitorConfiguration()

	ui := gui.New()
	notification.Init(ui.Fyne())

	loopOpts, err := eventloop.FromConfig(rt.Config, eventloop.Options{
		Source:   hotkey.NewHookSource(),
		Selector: newSelector(ui, rt.Config),
		Capture:  session.CaptureTo(rt.Config.CapturePath, captureSettle),
		Extract:  session.ExtractWith(rt.Pipeline, rt.ExtractOptions()),
		Sink:     rt.Sink,
		Server:   singleinstance.NewServer(ports),
		Notify:   func(text string) { _ = popup.Show(text) },
	})
	if err != nil {
		return err
	}
	loop := eventloop.New(loopOpts)
	tray.Install(ui.Fyne(), loop.Trigger)

	loopErr := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		loopErr <- err
		ui.Quit()
	}()
	go func() {
		<-ctx.Done()
		log.Info("Shutdown requested")
		ui.Quit()
	}()

	log.Infof("Screen OCR running, press %s to capture", rt.Config.Hotkey)
	ui.Run()
	stop()

	err = <-loopErr
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		log.Errorf("Event loop stopped: %v", err)
	}
	log.Info("Screen OCR stopped")
	return err
}

// runOnceClient is the delegation half of singleinstance.Client.
type runOnceClient interface {
	TryRunOnce(ctx context.Context, outputToStdout bool) (bool, string, error)
}

func runOnce(ctx context.Context, opts mainOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadWithOptions(opts.loadOptions())
	if err != nil {
		return err
	}
	return handleRunOnceWithDelegation(ctx, singleinstance.NewClient(residentPorts(cfg)), opts.runOnceStd, stdout, func() error {
		return runStandalone(ctx, opts, stdout)
	})
}

// handleRunOnceWithDelegation hands the request to a resident when one
// answers, and otherwise runs fallback. Errors reported by the resident
// itself are returned as-is.
func handleRunOnceWithDelegation(ctx context.Context, client runOnceClient, toStdout bool, stdout io.Writer, fallback func() error) error {
	log := logutil.Logger()
	delegated, text, err := client.TryRunOnce(ctx, toStdout)
	var resident *singleinstance.ResidentError
	switch {
	case errors.As(err, &resident):
		if resident.Message == overlay.ErrSelectionCancelled.Error() {
			log.Info("Delegated capture cancelled")
			return nil
		}
		return resident
	case err != nil:
		log.Warnf("Delegation error: %v; falling back to standalone", err)
		return fallback()
	case !delegated:
		log.Info("No resident detected, running standalone")
		return fallback()
	}

	log.Info("Delegated to resident")
	if toStdout && stdout != nil {
		_, err := io.WriteString(stdout, text)
		return err
	}
	return nil
}

// runStandalone performs a single capture without a resident.
func runStandalone(ctx context.Context, opts mainOptions, stdout io.Writer) error {
	rt, err := bootstrap(ctx, opts, false)
	if err != nil {
		return err
	}
	defer logutil.Close()

	ui := gui.New()
	notification.Init(ui.Fyne())

	var target session.ResultTarget = session.SinkTarget{Sink: rt.Sink}
	notify := func(text string) { _ = popup.Show(text) }
	if opts.runOnceStd {
		target = session.StdoutTarget{Sink: rt.Sink, Writer: stdout}
		notify = nil
	}

	logutil.Logger().Infof("Running capture once with extraction deadline %ds", rt.Config.OCRDeadlineSec)
	done := make(chan error, 1)
	go func() {
		_, err := session.Execute(ctx, session.Options{
			Deadline:     time.Duration(rt.Config.OCRDeadlineSec) * time.Second,
			SelectRegion: newSelector(ui, rt.Config).Select,
			Capture:      session.CaptureTo(rt.Config.CapturePath, captureSettle),
			Extract:      session.ExtractWith(rt.Pipeline, rt.ExtractOptions()),
			Target:       target,
			Notify:       notify,
		})
		done <- err
		ui.Quit()
	}()
	ui.Run()

	err = <-done
	if errors.Is(err, session.ErrSelectionCancelled) {
		return nil
	}
	return err
}

type fileResult struct {
	text string
	err  error
}

// runExtract runs the pipeline over files through the worker pool and
// delivers the joined text once, in argument order.
func runExtract(ctx context.Context, opts mainOptions, files []string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap(ctx, opts, false)
	if err != nil {
		return err
	}
	defer logutil.Close()

	results := extractFiles(ctx, worker.New(min(len(files), runtime.NumCPU()), rt.Pipeline), files, rt.ExtractOptions())

	var texts []string
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %v\n", files[i], r.err)
			continue
		}
		if r.text != "" {
			texts = append(texts, r.text)
		}
	}
	if failed == len(files) {
		return fmt.Errorf("no text extracted from %d file(s)", failed)
	}

	text := strings.Join(texts, extract.SegmentSeparator)
	if _, err := rt.Sink.WithStdout(stdout).Deliver(ctx, text); err != nil {
		return err
	}
	if text != "" {
		fmt.Fprintln(stdout)
	}
	return nil
}

// extractFiles submits every file and waits for all results. The pool is
// closed on return.
func extractFiles(ctx context.Context, pool *worker.Pool, files []string, opts extract.Options) []fileResult {
	defer pool.Close()
	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	for i, path := range files {
		i := i
		req, err := extract.NewRequest(path, opts)
		if err != nil {
			results[i].err = err
			continue
		}
		wg.Add(1)
		if err := pool.SubmitWait(ctx, req, func(res extract.Result, err error) {
			defer wg.Done()
			results[i] = fileResult{text: res.Text(), err: err}
		}); err != nil {
			wg.Done()
			results[i].err = err
		}
	}
	wg.Wait()
	return results
}
