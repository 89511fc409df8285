package main

import (
	"fmt"
	"io"
)

// printUsage prints the usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: downstream [flags] [input...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render streaming markdown incrementally, block by block.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Markdown file, http(s) URL, or \"-\" for stdin (default: stdin)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>     Output file or directory for html mode")
	fmt.Fprintln(w, "  -c, --config <name>     Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>       Parallel documents in batch mode (0 = auto)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "  -m, --mode <s>          Render mode: term, html, browser (default: term)")
	fmt.Fprintln(w, "      --style <s>         Chroma highlight style for term mode")
	fmt.Fprintln(w, "      --width <n>         Wrap width for term mode (0 = detect)")
	fmt.Fprintln(w, "      --title <s>         Document title for html mode")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Streaming:")
	fmt.Fprintln(w, "      --mount-empty       Mount regions for empty blocks")
	fmt.Fprintln(w, "      --buffer-paused     Buffer writes while paused instead of dropping")
	fmt.Fprintln(w, "      --simulate          Replay input in paced chunks")
	fmt.Fprintln(w, "      --chunk-size <n>    Bytes per simulated write")
	fmt.Fprintln(w, "      --delay <dur>       Pause between simulated chunks (e.g. 25ms)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet             Only show errors")
	fmt.Fprintln(w, "  -v, --verbose           Show detailed progress")
	fmt.Fprintln(w, "      --version           Print version and exit")
}
