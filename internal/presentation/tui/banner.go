package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` ____            _            `, "#fbbf24"},
	{`|  _ \ __ _ _ __| | ___ _   _ `, "#f59e0b"},
	{`| |_) / _' | '__| |/ _ \ | | |`, "#f97316"},
	{`|  __/ (_| | |  | |  __/ |_| |`, "#ef4444"},
	{`|_|   \__,_|_|  |_|\___|\__, |`, "#e11d48"},
	{`                        |___/ `, "#be123c"},
}

// PrintBanner writes the Parley banner to w, colored when the terminal supports it.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
