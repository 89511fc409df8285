package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/chuanqisun/downstream"
	"github.com/chuanqisun/downstream/internal/config"
)

// Sentinel errors for CLI operations.
var (
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrBatchNeedsHTML     = errors.New("multiple inputs require --mode html")
)

// File permission constants.
const (
	dirPermissions  = 0o750
	filePermissions = 0o644
)

// rendererWarmupTimeout bounds how long we wait for the terminal
// renderer's highlighter warm-up before giving up.
const rendererWarmupTimeout = 30 * time.Second

// inputSource is one resolved input argument.
type inputSource struct {
	arg   string
	isURL bool
	stdin bool
}

// streamResult holds the outcome of streaming a single document.
type streamResult struct {
	input    string
	output   string
	err      error
	duration time.Duration
}

// run orchestrates the CLI: config resolution, input resolution, and
// per-mode pipeline construction.
func run(ctx context.Context, flags *cliFlags, positional []string) error {
	if flags.workers < 0 {
		return fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidWorkerCount, flags.workers)
	}

	env := loadEnvConfig()
	if !flags.common.quiet {
		warnUnknownEnvVars(os.Stderr)
	}

	cfg := config.DefaultConfig()
	configName := flags.common.config
	if configName == "" {
		configName = env.ConfigPath
	}
	if configName != "" {
		loaded, err := config.LoadConfig(configName)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	applyEnvConfig(env, cfg)
	mergeFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	mode := cfg.Render.Mode
	if mode == "" {
		mode = config.ModeTerm
	}

	logger := newLogger(flags.common.verbose, flags.common.quiet)
	defer func() { _ = logger.Sync() }()

	inputs := resolveInputs(positional)

	if len(inputs) > 1 {
		if mode != config.ModeHTML {
			return ErrBatchNeedsHTML
		}
		return runBatch(ctx, inputs, cfg, logger)
	}

	return runSingle(ctx, inputs[0], mode, cfg, logger)
}

// mergeFlags merges CLI flags into config. CLI values override config
// values.
func mergeFlags(flags *cliFlags, cfg *config.Config) {
	if flags.render.mode != "" {
		cfg.Render.Mode = flags.render.mode
	}
	if flags.render.style != "" {
		cfg.Render.Style = flags.render.style
	}
	if flags.render.width != 0 {
		cfg.Render.Width = flags.render.width
	}
	if flags.render.title != "" {
		cfg.Output.Title = flags.render.title
	}
	if flags.output != "" {
		cfg.Output.Dir = flags.output
	}
	if flags.workers != 0 {
		cfg.Workers = flags.workers
	}
	if flags.stream.mountEmpty {
		cfg.Stream.MountEmptyBlocks = true
	}
	if flags.stream.bufferPaused {
		cfg.Stream.BufferWhenPaused = true
	}
	if flags.simulate.enabled {
		cfg.Simulate.Enabled = true
	}
	if flags.simulate.chunkSize != 0 {
		cfg.Simulate.ChunkSize = flags.simulate.chunkSize
	}
	if flags.simulate.delay != "" {
		cfg.Simulate.Delay = flags.simulate.delay
	}
}

// newLogger builds the CLI logger. Verbose gets a development logger,
// quiet gets none, the default logs warnings and up.
func newLogger(verbose, quiet bool) *zap.Logger {
	if quiet {
		return zap.NewNop()
	}
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// resolveInputs turns positional args into input sources. No args means
// stdin.
func resolveInputs(args []string) []inputSource {
	if len(args) == 0 {
		return []inputSource{{arg: "-", stdin: true}}
	}
	inputs := make([]inputSource, 0, len(args))
	for _, arg := range args {
		inputs = append(inputs, inputSource{
			arg:   arg,
			isURL: strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"),
			stdin: arg == "-",
		})
	}
	return inputs
}

// streamOptions builds Stream options common to all modes.
func streamOptions(cfg *config.Config, logger *zap.Logger, r downstream.Renderer, sf downstream.Surface) []downstream.Option {
	opts := []downstream.Option{
		downstream.WithRenderer(r),
		downstream.WithSurface(sf),
		downstream.WithLogger(logger),
	}
	if cfg.Stream.MountEmptyBlocks {
		opts = append(opts, downstream.WithMountEmptyBlocks())
	}
	if cfg.Stream.BufferWhenPaused {
		opts = append(opts, downstream.WithPauseBuffering())
	}
	return opts
}

// feed streams one input into the stream, honoring simulate pacing for
// local sources. URLs always stream at network pace.
func feed(ctx context.Context, s *downstream.Stream, in inputSource, cfg *config.Config) error {
	if in.isURL {
		return downstream.FetchURL(ctx, s, in.arg, nil)
	}

	var r io.Reader
	if in.stdin {
		r = os.Stdin
	} else {
		f, err := os.Open(in.arg) // #nosec G304 -- input path is user-provided
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if cfg.Simulate.Enabled {
		delay, err := cfg.Simulate.DelayDuration()
		if err != nil {
			return err
		}
		return downstream.Simulate(ctx, downstream.SimulateRequest{
			Reader:    r,
			Stream:    s,
			ChunkSize: cfg.Simulate.ChunkSize,
			Delay:     delay,
		})
	}
	return downstream.Copy(ctx, s, r, 0)
}

// runSingle streams one input through the mode's pipeline.
func runSingle(ctx context.Context, in inputSource, mode string, cfg *config.Config, logger *zap.Logger) error {
	switch mode {
	case config.ModeTerm:
		return runTerm(ctx, in, cfg, logger)
	case config.ModeHTML:
		return runHTML(ctx, in, cfg, logger)
	case config.ModeBrowser:
		return runBrowser(ctx, in, cfg, logger)
	default:
		return fmt.Errorf("unknown render mode %q", mode)
	}
}

// runTerm renders the input as styled ANSI onto stdout.
func runTerm(ctx context.Context, in inputSource, cfg *config.Config, logger *zap.Logger) error {
	width := resolveWidth(cfg.Render.Width)

	var rendererOpts []downstream.ANSIOption
	if cfg.Render.Style != "" {
		rendererOpts = append(rendererOpts, downstream.WithChromaStyle(cfg.Render.Style))
	}
	renderer := downstream.NewANSIRenderer(width, rendererOpts...)

	warmCtx, cancel := context.WithTimeout(ctx, rendererWarmupTimeout)
	defer cancel()
	if err := renderer.WaitReady(warmCtx); err != nil {
		return fmt.Errorf("renderer warm-up: %w", err)
	}

	surface := downstream.NewTermSurface(os.Stdout, width)
	s := downstream.NewStream(streamOptions(cfg, logger, renderer, surface)...)
	defer s.Destroy()

	return feed(ctx, s, in, cfg)
}

// runHTML renders the input to a standalone HTML document.
func runHTML(ctx context.Context, in inputSource, cfg *config.Config, logger *zap.Logger) error {
	surface := downstream.NewHTMLSurface(documentTitle(cfg, in))
	s := downstream.NewStream(streamOptions(cfg, logger, downstream.NewGoldmarkRenderer(), surface)...)
	defer s.Destroy()

	if err := feed(ctx, s, in, cfg); err != nil {
		return err
	}
	return writeDocument(surface, in, cfg.Output.Dir)
}

// runBrowser renders the input into a live Chrome preview and keeps it
// open until interrupted.
func runBrowser(ctx context.Context, in inputSource, cfg *config.Config, logger *zap.Logger) error {
	surface := downstream.NewBrowserSurface()
	s := downstream.NewStream(streamOptions(cfg, logger, downstream.NewGoldmarkRenderer(), surface)...)
	defer s.Destroy()

	if err := feed(ctx, s, in, cfg); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Preview open. Press Ctrl-C to exit.")
	<-ctx.Done()
	return nil
}

// runBatch converts multiple files to HTML in parallel, one renderer per
// worker.
func runBatch(ctx context.Context, inputs []inputSource, cfg *config.Config, logger *zap.Logger) error {
	for _, in := range inputs {
		if in.stdin {
			return fmt.Errorf("stdin cannot be combined with other inputs")
		}
	}

	poolSize := downstream.ResolvePoolSize(cfg.Workers)
	if poolSize > len(inputs) {
		poolSize = len(inputs)
	}
	pool := downstream.NewRendererPool(poolSize, func() downstream.Renderer {
		return downstream.NewGoldmarkRenderer()
	})
	defer func() { _ = pool.Close() }()

	logger.Debug("starting batch", zap.Int("inputs", len(inputs)), zap.Int("workers", poolSize))

	results := make([]streamResult, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in inputSource) {
			defer wg.Done()
			renderer := pool.Acquire()
			defer pool.Release(renderer)
			results[i] = convertOne(ctx, in, renderer, cfg, logger)
		}(i, in)
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", res.input, res.err)
			continue
		}
		logger.Info("converted",
			zap.String("input", res.input),
			zap.String("output", res.output),
			zap.Duration("duration", res.duration))
	}
	if failed > 0 {
		return fmt.Errorf("%d conversion(s) failed", failed)
	}
	return nil
}

// convertOne streams a single file to an HTML document.
func convertOne(ctx context.Context, in inputSource, renderer downstream.Renderer, cfg *config.Config, logger *zap.Logger) streamResult {
	start := time.Now()
	surface := downstream.NewHTMLSurface(documentTitle(cfg, in))
	s := downstream.NewStream(streamOptions(cfg, logger, renderer, surface)...)
	defer s.Destroy()

	res := streamResult{input: in.arg}
	if err := feed(ctx, s, in, cfg); err != nil {
		res.err = err
		return res
	}
	res.output = outputPath(in, cfg.Output.Dir)
	res.err = writeDocumentTo(surface, res.output)
	res.duration = time.Since(start)
	return res
}

// documentTitle picks the HTML title: explicit config, else the input
// file's base name.
func documentTitle(cfg *config.Config, in inputSource) string {
	if cfg.Output.Title != "" {
		return cfg.Output.Title
	}
	if in.stdin || in.isURL {
		return ""
	}
	base := filepath.Base(in.arg)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputPath derives the HTML output path for an input.
func outputPath(in inputSource, outDir string) string {
	base := filepath.Base(in.arg)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
	if outDir == "" {
		return filepath.Join(filepath.Dir(in.arg), name)
	}
	if strings.HasSuffix(outDir, ".html") {
		return outDir
	}
	return filepath.Join(outDir, name)
}

// writeDocument writes the assembled document to the configured output,
// or stdout when none is set.
func writeDocument(surface *downstream.HTMLSurface, in inputSource, outDir string) error {
	if outDir == "" {
		_, err := surface.WriteTo(os.Stdout)
		return err
	}
	if in.stdin || in.isURL {
		if strings.HasSuffix(outDir, ".html") {
			return writeDocumentTo(surface, outDir)
		}
		return writeDocumentTo(surface, filepath.Join(outDir, "document.html"))
	}
	return writeDocumentTo(surface, outputPath(in, outDir))
}

// writeDocumentTo writes the assembled document to path, creating parent
// directories as needed.
func writeDocumentTo(surface *downstream.HTMLSurface, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(surface.Document()), filePermissions); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// resolveWidth picks the terminal wrap width: explicit value, detected
// terminal size, or 80.
func resolveWidth(configured int) int {
	if configured > 0 {
		return configured
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}
