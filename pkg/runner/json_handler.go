package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Every step is written as one StepResult object. Answers are read one per line and may be
// a bare number (1), a JSON string ("1") or an object ({"choice": 1}).
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

type choiceMessage struct {
	Choice json.RawMessage `json:"choice"`
}

type systemMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
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

func (h *JSONHandler) Output(ctx context.Context, step domain.StepResult) error {
	return h.Encoder.Encode(step)
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(text) == "") {
		return "", err
	}
	text, err = SanitizeInput(strings.TrimSpace(text))
	if err != nil {
		return "", err
	}
	return decodeAnswer(text), nil
}

// decodeAnswer unwraps the accepted encodings down to the raw index text.
// Anything unrecognized is passed through; the interpreter decides if it is valid.
func decodeAnswer(text string) string {
	var msg choiceMessage
	if strings.HasPrefix(text, "{") && json.Unmarshal([]byte(text), &msg) == nil && msg.Choice != nil {
		text = string(msg.Choice)
	}
	var s string
	if json.Unmarshal([]byte(text), &s) == nil {
		return s
	}
	return text
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(systemMessage{Kind: "system", Message: msg})
}
