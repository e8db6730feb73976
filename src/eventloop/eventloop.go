package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"screen-ocr/src/config"
	"screen-ocr/src/hotkey"
	"screen-ocr/src/logutil"
	"screen-ocr/src/output"
	"screen-ocr/src/overlay"
	"screen-ocr/src/screenshot"
	"screen-ocr/src/session"
	"screen-ocr/src/singleinstance"
)

// ErrBusy is reported to run-once clients while a capture is active.
var ErrBusy = errors.New(singleinstance.BusyMessage)

type Options struct {
	Source    hotkey.Source
	Chord     hotkey.Chord
	CancelKey hotkey.Key
	Selector  overlay.Selector
	Capture   session.CaptureFunc
	Extract   session.ExtractFunc
	Sink      *output.Sink
	// Server accepts run-once delegations; nil disables them.
	Server   singleinstance.Server
	Deadline time.Duration
	// Notify shows a successful result; nil disables it.
	Notify func(text string)
	// OnDone runs on the loop goroutine after each capture request.
	OnDone func(res session.Result, err error)
}

// Loop is the single-threaded coordinator for hotkey, tray, and run-once
// capture requests. Only Run touches the tracker and the busy guard.
type Loop struct {
	opts    Options
	tracker *hotkey.Tracker

	busy     bool
	cancelCh chan struct{}
	done     chan outcome
	triggers chan struct{}
}

type outcome struct {
	res    session.Result
	err    error
	source string
	cancel context.CancelFunc
	close  func()
}

// New creates a loop. Deadline defaults to 20s.
func New(opts Options) *Loop {
	if opts.Deadline <= 0 {
		opts.Deadline = 20 * time.Second
	}
	return &Loop{
		opts:     opts,
		tracker:  hotkey.NewTracker(opts.Chord),
		done:     make(chan outcome, 1),
		triggers: make(chan struct{}, 4),
	}
}

// FromConfig parses the configured hotkey and cancel key into Options.
func FromConfig(cfg *config.Config, opts Options) (Options, error) {
	chord, err := hotkey.ParseChord(cfg.Hotkey)
	if err != nil {
		return opts, fmt.Errorf("invalid HOTKEY: %w", err)
	}
	cancelKey, err := hotkey.ParseKey(cfg.CancelKey)
	if err != nil {
		return opts, fmt.Errorf("invalid CANCEL_KEY: %w", err)
	}
	opts.Chord = chord
	opts.CancelKey = cancelKey
	if cfg.OCRDeadlineSec > 0 {
		opts.Deadline = time.Duration(cfg.OCRDeadlineSec) * time.Second
	}
	return opts, nil
}

// Trigger requests a capture as if the hotkey fired. Safe from any goroutine.
func (l *Loop) Trigger() {
	select {
	case l.triggers <- struct{}{}:
	default:
	}
}

// Run starts the key source and processes requests until ctx is cancelled.
// A key source that fails to start is fatal.
func (l *Loop) Run(ctx context.Context) error {
	log := logutil.Logger()
	if l.opts.Source == nil {
		return fmt.Errorf("%w: no key source", hotkey.ErrHookUnavailable)
	}
	keys, err := l.opts.Source.Start()
	if err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	defer l.opts.Source.Stop()

	conns := l.serve(ctx)
	log.WithFields(logrus.Fields{
		"hotkey": l.opts.Chord.String(),
		"cancel": l.opts.CancelKey.Name,
	}).Info("Listening for hotkey")

	for {
		select {
		case <-ctx.Done():
			l.drain()
			log.Info("Event loop stopped")
			return ctx.Err()
		case ev, ok := <-keys:
			if !ok {
				l.drain()
				return errors.New("hotkey listener stopped")
			}
			l.handleKey(ctx, ev)
		case <-l.triggers:
			l.handleFire(ctx, "tray")
		case conn, ok := <-conns:
			if !ok {
				conns = nil
				continue
			}
			l.handleConn(ctx, conn)
		case o := <-l.done:
			l.finish(o)
		}
	}
}

// serve starts the run-once server and forwards accepted connections.
func (l *Loop) serve(ctx context.Context) <-chan singleinstance.Conn {
	if l.opts.Server == nil {
		return nil
	}
	log := logutil.Logger()
	if err := l.opts.Server.Start(ctx); err != nil {
		log.Warnf("Run-once delegation disabled: %v", err)
		return nil
	}
	if p := l.opts.Server.Port(); p > 0 {
		log.Infof("Resident listening on 127.0.0.1:%d", p)
	}

	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		defer l.opts.Server.Close()
		for {
			conn, err := l.opts.Server.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()
	return reqCh
}

func (l *Loop) handleKey(ctx context.Context, ev hotkey.KeyEvent) {
	latched := l.tracker.Latched()
	if l.tracker.Handle(ev) {
		l.handleFire(ctx, "hotkey")
		return
	}
	if latched && !l.tracker.Latched() {
		logutil.Logger().Debug("Hotkey re-armed")
	}
	if ev.Kind == hotkey.KeyDown && l.busy && l.opts.CancelKey.Matches(ev.Code) {
		select {
		case l.cancelCh <- struct{}{}:
			logutil.Logger().Debug("Cancel key forwarded to active capture")
		default:
		}
	}
}

func (l *Loop) handleFire(ctx context.Context, source string) {
	if l.busy {
		logutil.Logger().WithField("source", source).Info("Capture already in progress, trigger ignored")
		return
	}
	l.start(ctx, source, session.SinkTarget{Sink: l.opts.Sink}, l.opts.Notify, nil)
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	if l.busy {
		logutil.Logger().Info("Run-once request rejected: busy")
		_ = conn.RespondError(ErrBusy.Error())
		_ = conn.Close()
		return
	}
	target := session.DelegatedTarget{
		Conn:           conn,
		OutputToStdout: conn.Request().OutputToStdout,
		Sink:           l.opts.Sink,
	}
	l.start(ctx, "run-once", target, nil, func() { _ = conn.Close() })
}

// start launches one capture request. busy stays set until the request has
// been delivered, so the capture file is never overwritten mid-read.
func (l *Loop) start(ctx context.Context, source string, target session.ResultTarget, notify func(string), closeFn func()) {
	l.busy = true
	cancelCh := make(chan struct{}, 1)
	l.cancelCh = cancelCh
	reqCtx, cancel := context.WithCancel(ctx)

	logutil.Logger().WithField("source", source).Info("Capture requested")
	go func() {
		res, err := session.Execute(reqCtx, session.Options{
			Deadline:     l.opts.Deadline,
			SelectRegion: l.selectRegion(cancelCh),
			Capture:      l.opts.Capture,
			Extract:      l.opts.Extract,
			Target:       target,
			Notify:       notify,
		})
		l.done <- outcome{res: res, err: err, source: source, cancel: cancel, close: closeFn}
	}()
}

// selectRegion bridges cancel-key presses from the loop into the overlay
// session as a cancellation cause.
func (l *Loop) selectRegion(cancelCh <-chan struct{}) session.RegionSelectorFunc {
	return func(ctx context.Context) (screenshot.Region, bool, error) {
		selCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		go func() {
			select {
			case <-cancelCh:
				cancel(overlay.ErrSelectionCancelled)
			case <-selCtx.Done():
			}
		}()
		return l.opts.Selector.Select(selCtx)
	}
}

func (l *Loop) finish(o outcome) {
	l.busy = false
	l.cancelCh = nil
	o.cancel()
	if o.close != nil {
		o.close()
	}

	log := logutil.Logger().WithField("source", o.source)
	switch {
	case o.err == nil:
		log.WithField("chars", len(o.res.Text)).Info("Capture complete")
	case errors.Is(o.err, session.ErrSelectionCancelled):
		log.Info("Capture cancelled, back to idle")
	default:
		log.Warnf("Capture failed, still armed: %v", o.err)
	}
	if l.opts.OnDone != nil {
		l.opts.OnDone(o.res, o.err)
	}
}

// drain waits for an active request to observe cancellation.
func (l *Loop) drain() {
	if !l.busy {
		return
	}
	select {
	case o := <-l.done:
		l.finish(o)
	case <-time.After(5 * time.Second):
		logutil.Logger().Warn("Active capture did not stop in time")
	}
}
