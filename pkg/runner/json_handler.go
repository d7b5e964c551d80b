package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Frames are written as {"type":"frame",...} and messages as
// {"type":"system","message":...}. Input lines may be {"command":"back"},
// a JSON string or a bare command name.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

type jsonFrame struct {
	Type string `json:"type"`
	Frame
}

type jsonMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonCommand struct {
	Command string `json:"command"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, frame Frame) error {
	return h.Encoder.Encode(jsonFrame{Type: "frame", Frame: frame})
}

func (h *JSONHandler) Input(ctx context.Context) (Command, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := h.Reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "" {
			if err != nil {
				return "", err
			}
			// Blank lines are keep-alives, not "forward".
			continue
		}

		var cmd jsonCommand
		if jerr := json.Unmarshal([]byte(text), &cmd); jerr == nil && cmd.Command != "" {
			return ParseCommand(cmd.Command)
		}
		var name string
		if jerr := json.Unmarshal([]byte(text), &name); jerr == nil {
			return ParseCommand(name)
		}
		return ParseCommand(text)
	}
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(jsonMessage{Type: "system", Message: msg})
}
