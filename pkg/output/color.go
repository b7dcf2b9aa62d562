package output

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var palette = []string{
	"\x1b[36m", // cyan
	"\x1b[33m", // yellow
	"\x1b[35m", // magenta
	"\x1b[32m", // green
	"\x1b[34m", // blue
	"\x1b[31m", // red
}

const reset = "\x1b[0m"

// Colorize wraps prefix in the palette colour for the index-th process.
// The visible width of the prefix is unchanged.
func Colorize(prefix string, index int) string {
	if index < 0 {
		index = -index
	}
	return palette[index%len(palette)] + prefix + reset
}

// Stdout returns the writer for the console sink and whether prefixes
// should be coloured under mode.
func Stdout(mode ColorMode) (io.Writer, bool) {
	switch mode {
	case ColorNever:
		return os.Stdout, false
	case ColorAlways:
		return colorable.NewColorableStdout(), true
	}

	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return colorable.NewColorableStdout(), true
	}
	return os.Stdout, false
}
