package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/automata/pkg/domain"
)

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader    *bufio.Reader
	Writer    io.Writer
	Renderer  ContentRenderer
	Sanitizer Sanitizer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerMaxInputSize bounds the length of a typed command line.
func WithTextHandlerMaxInputSize(n int) TextHandlerOption {
	return func(h *TextHandler) {
		h.Sanitizer.MaxSize = n
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour cancellation.
func (h *TextHandler) pump() {
	defer close(h.inputChan)
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, frame Frame) error {
	output := Describe(frame)
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimRight(output, "\n"))
	return err
}

func (h *TextHandler) Input(ctx context.Context) (Command, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := h.Sanitizer.Sanitize(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return ParseCommand(clean)
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}

// Describe renders a frame as a short markdown list.
func Describe(frame Frame) string {
	sim := frame.Simulation
	total := len(sim.InputRunes())

	var b strings.Builder
	switch frame.Direction {
	case domain.DirectionForward:
		if sim.Position == 0 {
			fmt.Fprintf(&b, "- step 0 of %d\n", total)
			break
		}
		fmt.Fprintf(&b, "- step %d of %d, read `%s`\n", sim.Position, total, string(sim.InputRunes()[sim.Position-1]))
	case domain.DirectionBack:
		fmt.Fprintf(&b, "- back to step %d of %d\n", sim.Position, total)
	case domain.DirectionReset:
		fmt.Fprintf(&b, "- reset, run %d\n", sim.RunID)
	default:
		fmt.Fprintf(&b, "- %s run %d on `%s`, step %d of %d\n", sim.Mode, sim.RunID, sim.Input, sim.Position, total)
	}
	fmt.Fprintf(&b, "- current: `%s`\n", sim.Current)
	fmt.Fprintf(&b, "- trace: `%s`\n", frame.Formula)
	if sim.Finished {
		fmt.Fprintf(&b, "- result: **%s**\n", Verdict(sim))
	}
	return b.String()
}

// Verdict names the outcome of a finished run.
func Verdict(sim domain.Simulation) string {
	switch {
	case sim.Accepted:
		return "ACCEPTED"
	case sim.DeadEnd:
		return "REJECTED (dead end)"
	default:
		return "REJECTED"
	}
}
