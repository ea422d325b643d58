package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
)

// PromptGate asks the operator on a terminal. Anything but an explicit yes
// declines, and so does a closed input.
type PromptGate struct {
	mu    sync.Mutex
	out   io.Writer
	once  sync.Once
	in    io.Reader
	lines chan string
}

func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{in: in, out: out, lines: make(chan string)}
}

// readLines runs for the life of the process; an abandoned prompt does not
// leave a second reader behind.
func (g *PromptGate) readLines() {
	scanner := bufio.NewScanner(g.in)
	for scanner.Scan() {
		g.lines <- scanner.Text()
	}
	close(g.lines)
}

func (g *PromptGate) Confirm(ctx context.Context, prompt domain.Prompt) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.once.Do(func() { go g.readLines() })

	if _, err := fmt.Fprintf(g.out, "%s [y/N]: ", prompt.Message); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line, ok := <-g.lines:
		if !ok {
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// StaticGate answers every prompt the same way.
type StaticGate struct {
	Accept bool
}

func (g StaticGate) Confirm(context.Context, domain.Prompt) (bool, error) {
	return g.Accept, nil
}

// NewGate selects a gate by mode: "prompt", "accept" or "decline".
func NewGate(mode string, in io.Reader, out io.Writer) (ports.ConfirmationGate, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "prompt":
		return NewPromptGate(in, out), nil
	case "accept":
		return StaticGate{Accept: true}, nil
	case "decline":
		return StaticGate{Accept: false}, nil
	default:
		return nil, fmt.Errorf("unknown confirm mode %q", mode)
	}
}
