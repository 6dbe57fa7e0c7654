package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/domain"
	"golang.org/x/term"
)

// TextHandler implements the standard text-based interface.
// Lines are printed as they come, choices are listed with the index to type,
// and only available options are shown.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer, overriding terminal detection.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
// When w is a terminal, line content is rendered as Markdown.
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
	if isTerminal(w) {
		h.Renderer = tui.NewRenderer()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so that Input can honor cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, step domain.StepResult) error {
	switch step.Kind {
	case domain.StepYielded:
		output := step.Node.Content
		if h.Renderer != nil {
			if rendered, err := h.Renderer(output); err == nil {
				output = rendered
			}
		}
		_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
		return err
	case domain.StepAwaitingChoice:
		for _, opt := range step.Options {
			if !opt.Available {
				continue
			}
			if _, err := fmt.Fprintf(h.Writer, "  [%d] %s\n", opt.Index, opt.Text); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(h.Writer, "-- end --")
		return err
	}
}

// Input prompts and reads one line. Blank lines are ignored.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
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
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			if clean == "" {
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return err
}
