package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"screen-ocr/src/extract"
	"screen-ocr/src/logutil"
	"screen-ocr/src/output"
	"screen-ocr/src/overlay"
	"screen-ocr/src/popup"
	"screen-ocr/src/screenshot"
	"screen-ocr/src/singleinstance"
)

// ErrSelectionCancelled is returned when the user dismisses the overlay.
var ErrSelectionCancelled = overlay.ErrSelectionCancelled

type RegionSelectorFunc func(ctx context.Context) (screenshot.Region, bool, error)

// CaptureFunc writes the region to an image file and returns its path.
type CaptureFunc func(ctx context.Context, region screenshot.Region) (string, error)

// ExtractFunc turns the captured image into text.
type ExtractFunc func(ctx context.Context, path string) (string, error)

type ResultTarget interface {
	OnSuccess(ctx context.Context, text string) error
	OnFailure(err error) error
}

type Options struct {
	Deadline     time.Duration
	SelectRegion RegionSelectorFunc
	Capture      CaptureFunc
	Extract      ExtractFunc
	Target       ResultTarget
	// Notify shows the result to the user; nil disables it.
	Notify func(text string)
}

type Result struct {
	Text   string
	Region screenshot.Region
	Path   string
}

// Execute runs one capture request: select, capture, extract, deliver.
// Every failure is reported to the target once and returned.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.SelectRegion == nil {
		return Result{}, errors.New("SelectRegion is required")
	}
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}
	if opts.Capture == nil || opts.Extract == nil {
		return Result{}, errors.New("Capture and Extract are required")
	}
	log := logutil.Logger()

	region, cancelled, err := opts.SelectRegion(ctx)
	if err != nil {
		log.Errorf("Region selection failed: %v", err)
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	if cancelled {
		log.Info("Capture cancelled")
		_ = opts.Target.OnFailure(ErrSelectionCancelled)
		return Result{}, ErrSelectionCancelled
	}

	path, err := opts.Capture(ctx, region)
	if err != nil {
		log.WithField("region", region.String()).Errorf("Screen capture failed: %v", err)
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	res := Result{Region: region, Path: path}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	log.WithField("path", path).Info("Extraction started")
	text, err := opts.Extract(jobCtx, path)
	if err != nil {
		log.WithField("path", path).Errorf("Extraction failed: %v", err)
		_ = opts.Target.OnFailure(err)
		return res, err
	}
	log.WithFields(logrus.Fields{
		"chars":   len(text),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("Extraction finished")
	res.Text = text

	if err := opts.Target.OnSuccess(ctx, text); err != nil {
		log.Errorf("Delivery failed: %v", err)
		_ = opts.Target.OnFailure(err)
		return res, err
	}

	if opts.Notify != nil && text != "" {
		opts.Notify(text)
	}
	return res, nil
}

// CaptureTo returns a CaptureFunc that overwrites the image at path. settle
// gives the compositor time to remove the overlay before the grab.
func CaptureTo(path string, settle time.Duration) CaptureFunc {
	return func(ctx context.Context, region screenshot.Region) (string, error) {
		if settle > 0 {
			select {
			case <-time.After(settle):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err := screenshot.CaptureToFile(region, path); err != nil {
			return "", err
		}
		logutil.Logger().WithFields(logrus.Fields{
			"path":   path,
			"region": region.String(),
		}).Info("Screen capture saved")
		return path, nil
	}
}

// ExtractWith returns an ExtractFunc backed by an extraction pipeline.
func ExtractWith(ex extract.Extractor, opts extract.Options) ExtractFunc {
	return func(ctx context.Context, path string) (string, error) {
		req, err := extract.NewRequest(path, opts)
		if err != nil {
			return "", err
		}
		res, err := ex.Extract(ctx, req)
		if err != nil {
			return "", err
		}
		return res.Text(), nil
	}
}

// SinkTarget delivers through the output sink and reports failures as popups.
type SinkTarget struct {
	Sink *output.Sink
	// Quiet suppresses popups, e.g. for cancellation.
	Quiet bool
}

func (t SinkTarget) OnSuccess(ctx context.Context, text string) error {
	if t.Sink == nil {
		return errors.New("sink target missing sink")
	}
	_, err := t.Sink.Deliver(ctx, text)
	return err
}

func (t SinkTarget) OnFailure(err error) error {
	if t.Quiet || err == nil || errors.Is(err, ErrSelectionCancelled) {
		return nil
	}
	popup.ShowError(err.Error())
	return nil
}

type StdoutTarget struct {
	Sink   *output.Sink
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(ctx context.Context, text string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	sink := t.Sink
	if sink == nil {
		sink = output.New(output.Options{})
	}
	_, err := sink.WithoutClipboard().WithStdout(w).Deliver(ctx, text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a run-once client. In stdout mode the text goes
// back over the connection; otherwise it lands on the resident's clipboard.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
	Sink           *output.Sink
}

func (t DelegatedTarget) OnSuccess(ctx context.Context, text string) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(text)
	}
	if t.Sink != nil {
		if _, err := t.Sink.Deliver(ctx, text); err != nil {
			return fmt.Errorf("delivery error: %w", err)
		}
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}
