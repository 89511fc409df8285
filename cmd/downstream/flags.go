package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across render modes.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
	version bool
}

// renderFlags holds render adapter flags.
type renderFlags struct {
	mode  string
	style string
	width int
	title string
}

// streamFlags holds orchestrator tuning flags.
type streamFlags struct {
	mountEmpty   bool
	bufferPaused bool
}

// simulateFlags holds input pacing flags.
type simulateFlags struct {
	enabled   bool
	chunkSize int
	delay     string
}

// cliFlags holds all flags for the downstream command.
type cliFlags struct {
	common   commonFlags
	render   renderFlags
	stream   streamFlags
	simulate simulateFlags
	output   string
	workers  int
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed progress")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
}

// addRenderFlags adds render adapter flags to a FlagSet.
func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.StringVarP(&f.mode, "mode", "m", "", "render mode: term, html, browser")
	fs.StringVar(&f.style, "style", "", "chroma highlight style for term mode")
	fs.IntVar(&f.width, "width", 0, "wrap width for term mode (0 = detect)")
	fs.StringVar(&f.title, "title", "", "document title for html mode")
}

// addStreamFlags adds orchestrator flags to a FlagSet.
func addStreamFlags(fs *flag.FlagSet, f *streamFlags) {
	fs.BoolVar(&f.mountEmpty, "mount-empty", false, "mount regions for empty blocks")
	fs.BoolVar(&f.bufferPaused, "buffer-paused", false, "buffer writes while paused instead of dropping")
}

// addSimulateFlags adds input pacing flags to a FlagSet.
func addSimulateFlags(fs *flag.FlagSet, f *simulateFlags) {
	fs.BoolVar(&f.enabled, "simulate", false, "replay input in paced chunks")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "bytes per simulated write (0 = default)")
	fs.StringVar(&f.delay, "delay", "", "pause between simulated chunks (e.g. 25ms)")
}

// parseFlags parses command-line flags and returns positional args.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("downstream", flag.ContinueOnError)
	f := &cliFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file or directory for html mode")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel documents in batch mode (0 = auto)")

	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)
	addStreamFlags(fs, &f.stream)
	addSimulateFlags(fs, &f.simulate)

	fs.Usage = func() { printUsage(os.Stderr) }

	if err := fs.Parse(args[1:]); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
