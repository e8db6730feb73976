package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-ocr/src/config"
	"screen-ocr/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
	ports    singleinstance.PortRange
}

type runOnceClient interface {
	TryRunOnce(ctx context.Context, outputToStdout bool) (bool, string, error)
}

// tally counts client outcomes. Rejected means the resident answered with
// an error other than busy, e.g. a cancelled selection.
type tally struct {
	ok, busy, rejected, noResident, failed atomic.Int32
}

func (t *tally) String() string {
	return fmt.Sprintf("ok=%d busy=%d rejected=%d no-resident=%d err=%d",
		t.ok.Load(), t.busy.Load(), t.rejected.Load(), t.noResident.Load(), t.failed.Load())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-runonce",
		Short:         "Stress test run-once delegation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mode != "std" && opts.mode != "clip" {
				return fmt.Errorf("invalid --mode %q, want std or clip", opts.mode)
			}
			if err := resolvePorts(cmd, opts); err != nil {
				return err
			}
			newClient := func() runOnceClient { return singleinstance.NewClient(opts.ports) }
			return runWithOptions(*opts, newClient, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: run-once-std (stdout) or run-once (clipboard)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.ports.Start, "port-start", config.DefaultPortStart, "first resident port (default from config)")
	cmd.Flags().IntVar(&opts.ports.End, "port-end", config.DefaultPortEnd, "last resident port (default from config)")

	return cmd
}

// resolvePorts fills unset port flags from the loaded configuration.
func resolvePorts(cmd *cobra.Command, opts *stressOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("port-start") {
		opts.ports.Start = cfg.SingleInstancePortStart
	}
	if !cmd.Flags().Changed("port-end") {
		opts.ports.End = cfg.SingleInstancePortEnd
	}
	return nil
}

func runWithOptions(opts stressOptions, newClient func() runOnceClient, w io.Writer) error {
	var wg sync.WaitGroup
	var t tally

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := newClient().TryRunOnce(ctx, opts.mode == "std")
			t.record(delegated, err)
		}()
	}
	wg.Wait()
	fmt.Fprintf(w, "launched=%d %s elapsed=%s\n", opts.n, &t, time.Since(start).Round(time.Millisecond))
	return nil
}

func (t *tally) record(delegated bool, err error) {
	var resident *singleinstance.ResidentError
	switch {
	case errors.As(err, &resident) && resident.Message == singleinstance.BusyMessage:
		t.busy.Add(1)
	case errors.As(err, &resident):
		t.rejected.Add(1)
	case err != nil:
		t.failed.Add(1)
	case !delegated:
		t.noResident.Add(1)
	default:
		t.ok.Add(1)
	}
}
