package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

// Presenter renders workspace signals as structured log records and writes
// verdicts and the response view as plain text.
type Presenter struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

func NewPresenter(out io.Writer, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{out: out, logger: logger}
}

func (p *Presenter) SetControlEnabled(control domain.Control, enabled bool) {
	p.logger.Debug("control_state", "control", control, "enabled", enabled)
}

func (p *Presenter) SetStatus(scope domain.ErrorScope, message string) {
	p.logger.Info("status", "scope", scope, "message", message)
}

func (p *Presenter) SetUnsavedWarning(key string, visible bool) {
	p.logger.Debug("unsaved_warning", "key", key, "visible", visible)
}

func (p *Presenter) RenderVerdict(verdict domain.Verdict) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeVerdict("Sample test cases", verdict)
	if verdict.Private != nil {
		p.writeVerdict("Staff test cases", *verdict.Private)
	}
}

func (p *Presenter) writeVerdict(title string, verdict domain.Verdict) {
	switch verdict.Kind {
	case domain.VerdictExecutionError:
		fmt.Fprintf(p.out, "%s: error\n%s\n", title, indent(verdict.Error))
	case domain.VerdictPlainOutput:
		fmt.Fprintf(p.out, "Output:\n%s\n", indent(verdict.Output))
	case domain.VerdictTestCases:
		fmt.Fprintf(p.out, "%s: %d/%d passed\n", title, verdict.Correct, verdict.TotalTests)
		for _, tc := range verdict.Cases {
			mark := "FAIL"
			if tc.Correct {
				mark = "PASS"
			}
			fmt.Fprintf(p.out, "  #%d %s input=%q expected=%q actual=%q\n", tc.Number, mark, tc.Input, tc.ExpectedOutput, tc.ActualOutput)
		}
	}
}

func (p *Presenter) ShowUploadedFile(index int, downloadURL, description string) {
	p.logger.Info("file_uploaded", "index", index, "url", downloadURL, "description", description)
}

func (p *Presenter) ClearFileDescriptions() {
	p.logger.Debug("file_descriptions_cleared")
}

func (p *Presenter) ShowMarkup(markup string, readOnly bool) {
	text := MarkupText(markup)
	p.mu.Lock()
	defer p.mu.Unlock()
	if readOnly {
		fmt.Fprintln(p.out, "--- submitted response ---")
	} else {
		fmt.Fprintln(p.out, "--- response ---")
	}
	if text != "" {
		fmt.Fprintln(p.out, text)
	}
}

// MarkupText flattens server markup into readable lines. Script and style
// content is dropped and whitespace runs collapse.
func MarkupText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var lines []string
	var current strings.Builder
	skip := 0
	flush := func() {
		if line := strings.Join(strings.Fields(current.String()), " "); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			flush()
			return strings.Join(lines, "\n")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if isBlock(tag) {
				flush()
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if isBlock(tag) {
				flush()
			}
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				flush()
			}
		case html.TextToken:
			if skip == 0 {
				current.Write(tokenizer.Text())
				current.WriteByte(' ')
			}
		}
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "br", "section", "header", "footer", "pre", "textarea", "label", "ol", "ul", "table":
		return true
	default:
		return false
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
