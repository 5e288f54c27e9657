package imgcap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Sink consumes the results of a Run. All methods are called from the
// goroutine that called Run: Begin once with the number of paths, Emit once
// per result in completion order, and End after the last result.
type Sink interface {
	Begin(total int) error
	Emit(res Result) error
	End() error
}

type RunOptions struct {
	Threads   int // number of concurrent caption workers, at least 1
	MaxTokens int

	Progress io.Writer // progress bar destination, nil disables it
	Logger   *slog.Logger
}

// Run captions every path using up to opts.Threads concurrent workers and
// hands each result to sink as soon as it completes. Every path yields
// exactly one result, including when ctx is cancelled, in which case the
// remaining paths fail fast. Run returns the number of results emitted.
//
// If sink returns an error outstanding work is cancelled, the remaining
// results are discarded and the error is returned once all workers exit.
func (ic *Imgcap) Run(ctx context.Context, paths []string, opts RunOptions, sink Sink) (int, error) {
	threads := max(opts.Threads, 1)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	if err := sink.Begin(len(paths)); err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, sink.End()
	}

	bar := progressbar.NewOptions(
		len(paths),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan]Processing images...[reset]"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Result)
	go func() {
		var g errgroup.Group
		g.SetLimit(threads)

		for i, path := range paths {
			g.Go(func() error {
				start := time.Now()
				res := Caption(ctx, ic.Describer, path, opts.MaxTokens)
				res.Index = i
				logger.Debug("captioned image",
					"path", path,
					"failed", res.Failed(),
					"elapsed", time.Since(start))

				results <- res
				return nil
			})
		}

		g.Wait() // workers never return errors
		close(results)
	}()

	var (
		emitted int
		sinkErr error
	)
	for res := range results {
		if sinkErr != nil {
			// Drain so the workers can exit
			continue
		}

		bar.Clear()
		if err := sink.Emit(res); err != nil {
			sinkErr = fmt.Errorf("writing result for %s: %w", res.Path, err)
			cancel()
			continue
		}
		emitted++
		bar.Add(1)
	}
	bar.Finish()

	if sinkErr != nil {
		return emitted, sinkErr
	}

	return emitted, sink.End()
}
