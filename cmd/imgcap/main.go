package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/chriskillpack/imgcap"
	"github.com/chriskillpack/imgcap/internal/config"
	"github.com/chriskillpack/imgcap/internal/output"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// usageError marks errors caused by bad arguments, they exit with status 2.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

type outputFormat string

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }
func (f *outputFormat) Type() string   { return "format" }

func (f *outputFormat) Set(s string) error {
	if !slices.Contains(output.Formats, s) {
		return fmt.Errorf("must be one of %s", strings.Join(output.Formats, ", "))
	}
	*f = outputFormat(s)
	return nil
}

type flags struct {
	output     outputFormat
	model      string
	maxTokens  int
	recursive  bool
	threads    int
	backend    string
	configPath string
	llama      string
	seed       int
	ollama     string
	hfEndpoint string
	timeout    time.Duration
	db         string
	xlsx       string
	noProgress bool
	verbose    bool
}

// app holds what the command needs from the process, so tests can run it
// against buffers and a stub describer.
type app struct {
	stdout io.Writer
	stderr io.Writer

	progress io.Writer // nil disables the progress bar
	color    bool
	width    int

	init func(imgcap.InitOptions) (*imgcap.Imgcap, error)
}

func newRootCmd(a *app) *cobra.Command {
	f := &flags{output: output.FormatPretty}

	cmd := &cobra.Command{
		Use:   "imgcap [flags] PATH...",
		Short: "Caption images with a pretrained image-to-text model",
		Long: `imgcap captions image files with a pretrained image-to-text model.

Files named on the command line are always captioned. Directories contribute
their png, jpg, jpeg, gif and bmp files, including subdirectories with
--recursive.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError{errors.New("requires at least one PATH")}
			}
			for _, p := range args {
				if _, err := os.Stat(p); err != nil {
					return usageError{fmt.Errorf("path %q does not exist", p)}
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.Flags(), f, args)
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	fl := cmd.Flags()
	fl.Var(&f.output, "output", "Output format, pretty or json")
	fl.StringVar(&f.model, "model", "", fmt.Sprintf("Model to caption with (default %s for the huggingface backend)", imgcap.DefaultModel))
	fl.IntVar(&f.maxTokens, "max-tokens", 50, "Maximum number of tokens for the caption")
	fl.BoolVar(&f.recursive, "recursive", false, "Recursively process directories")
	fl.IntVar(&f.threads, "threads", 1, "Number of images to caption concurrently")
	fl.StringVar(&f.backend, "backend", imgcap.BackendHuggingFace, "Model backend, one of "+strings.Join(imgcap.Backends, ", "))
	fl.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	fl.StringVar(&f.llama, "llama", "", "Address of running llama server, typically http://localhost:8080")
	fl.IntVar(&f.seed, "seed", 385480504, "Random seed to llama")
	fl.StringVar(&f.ollama, "ollama", "", "Address of running ollama server, typically http://localhost:11434")
	fl.StringVar(&f.hfEndpoint, "hf-endpoint", "", "Hugging Face inference endpoint base URL")
	fl.DurationVar(&f.timeout, "timeout", 0, "Timeout for each request to the model server (default 1m)")
	fl.StringVar(&f.db, "db", "", "Record captions in this sqlite database")
	fl.StringVar(&f.xlsx, "xlsx", "", "Also write captions to this XLSX file")
	fl.BoolVar(&f.noProgress, "no-progress", false, "Disable the progress bar")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Log debug output to stderr")

	return cmd
}

// loadConfig layers explicitly set flags over the config file and
// environment.
func loadConfig(fs *pflag.FlagSet, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	if fs.Changed("backend") {
		cfg.Backend = f.backend
	}
	if fs.Changed("model") {
		cfg.Model = f.model
	}
	if fs.Changed("llama") {
		cfg.Llama.Server = f.llama
	}
	if fs.Changed("seed") {
		cfg.Llama.Seed = f.seed
	}
	if fs.Changed("ollama") {
		cfg.Ollama.Server = f.ollama
	}
	if fs.Changed("hf-endpoint") {
		cfg.HuggingFace.Endpoint = f.hfEndpoint
	}
	if fs.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fs.Changed("db") {
		cfg.DB = f.db
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError{err}
	}

	return cfg, nil
}

func (a *app) run(ctx context.Context, fs *pflag.FlagSet, f *flags, paths []string) error {
	if f.threads < 1 {
		return usageError{fmt.Errorf("--threads must be at least 1, got %d", f.threads)}
	}
	if f.maxTokens < 1 {
		return usageError{fmt.Errorf("--max-tokens must be at least 1, got %d", f.maxTokens)}
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(fs, f)
	if err != nil {
		return err
	}

	images, err := imgcap.CollectImagePaths(paths, f.recursive)
	if err != nil {
		return err
	}

	opts := cfg.InitOptions()
	opts.HttpClient = &http.Client{Timeout: cfg.Timeout}
	ic, err := a.init(opts)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	healthy := ic.IsHealthy(hctx)
	cancel()
	if !healthy {
		return fmt.Errorf("%s server is not responding", ic.Name())
	}
	logger.Info("using describer", "describer", ic.Name(), "model", ic.Model(), "images", len(images))

	var (
		console  imgcap.Sink
		summaryW = a.stdout
	)
	switch f.output {
	case output.FormatJSON:
		console = output.NewJSON(a.stdout)
		// Keep stdout a valid JSON document
		summaryW = a.stderr
	default:
		console = output.NewPretty(a.stdout, output.PrettyOptions{Color: a.color, Width: a.width})
	}

	sinks := output.Multi{console}
	if f.xlsx != "" {
		sinks = append(sinks, output.NewSpreadsheet(f.xlsx, logger))
	}
	if cfg.DB != "" {
		db, err := imgcap.NewDB(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		sinks = append(sinks, output.NewHistory(ctx, db, ic.Name(), ic.Model()))
	}

	progress := a.progress
	if f.noProgress {
		progress = nil
	}

	n, err := ic.Run(ctx, images, imgcap.RunOptions{
		Threads:   f.threads,
		MaxTokens: f.maxTokens,
		Progress:  progress,
		Logger:    logger,
	}, sinks)
	if err != nil {
		return err
	}

	return output.PrintSummary(summaryW, n, a.color)
}

func sighandler(ch chan os.Signal, cancel context.CancelFunc) {
	stopping := false
	for {
		<-ch
		if stopping {
			// Already stopping, hard stop
			fmt.Fprintln(os.Stderr, "Exiting")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "SIGINT received, stopping...")
		stopping = true
		cancel()
	}
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		init:   imgcap.Init,
	}
	if isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == "" {
		a.color = true
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			a.width = w
		}
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		a.progress = os.Stderr
	}

	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go sighandler(sigch, cancel)

	cmd := newRootCmd(a)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)

		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprint(os.Stderr, cmd.UsageString())
			os.Exit(2)
		}
		os.Exit(1)
	}
}
