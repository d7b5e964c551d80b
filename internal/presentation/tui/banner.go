package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/aretw0/automata/pkg/domain"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"              _                        _        ", "#818cf8"},
	{"   __ _ _   _| |_ ___  _ __ ___   __ _| |_ __ _ ", "#a78bfa"},
	{"  / _` | | | | __/ _ \\| '_ ` _ \\ / _` | __/ _` |", "#c084fc"},
	{" | (_| | |_| | || (_) | | | | | | (_| | || (_| |", "#e879f9"},
	{"  \\__,_|\\__,_|\\__\\___/|_| |_| |_|\\__,_|\\__\\__,_|", "#f472b6"},
}

// PrintBanner writes the ASCII art banner to w, colored when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	fmt.Fprintln(w)
}

// Verdict renders the outcome of a finished run for w: green ACCEPTED, red
// REJECTED. Unfinished runs render as "running".
func Verdict(w io.Writer, sim domain.Simulation) string {
	out := termenv.NewOutput(w)
	switch {
	case !sim.Finished:
		return out.String("running").Faint().String()
	case sim.Accepted:
		return out.String("ACCEPTED").Bold().Foreground(out.Color("#22c55e")).String()
	case sim.DeadEnd:
		return out.String("REJECTED (dead end)").Bold().Foreground(out.Color("#ef4444")).String()
	default:
		return out.String("REJECTED").Bold().Foreground(out.Color("#ef4444")).String()
	}
}
