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
	{"      _ _       _               _                 ", "#818cf8"},
	{"   __| (_) __ _| | ___   __ _  | |_ _ __ ___  ___ ", "#a78bfa"},
	{"  / _` | |/ _` | |/ _ \\ / _` | | __| '__/ _ \\/ _ \\", "#c084fc"},
	{" | (_| | | (_| | | (_) | (_| | | |_| | |  __/  __/", "#e879f9"},
	{"  \\__,_|_|\\__,_|_|\\___/ \\__, |  \\__|_|  \\___|\\___|", "#f472b6"},
	{"                        |___/                      ", "#fb7185"},
}

// PrintBanner writes the colored application banner to w.
// Colors degrade to the terminal's profile, or are dropped for plain writers.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
