package ora

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

const (
	stateRunning = "running"
	stateFailure = "failure"
)

type executionResponse struct {
	State   string `json:"execution_state"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Output  struct {
		Public  *runOutput `json:"public"`
		Private *runOutput `json:"private"`
	} `json:"output"`
}

// runOutput is one grader run. error is null, a string or a list of
// strings; output is null, plain text for design problems, or test cases
// keyed by their number.
type runOutput struct {
	Error           json.RawMessage `json:"error"`
	IsDesignProblem bool            `json:"is_design_problem"`
	Correct         int             `json:"correct"`
	Incorrect       int             `json:"incorrect"`
	TotalTests      int             `json:"total_tests"`
	Output          json.RawMessage `json:"output"`
}

type testCase struct {
	Input          string `json:"test_input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Correct        bool   `json:"correct"`
}

func (r executionResponse) toSaveResult() (domain.SaveResult, error) {
	public, err := r.Output.Public.toExecutionResult()
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("decode public results: %w", err)
	}
	private, err := r.Output.Private.toExecutionResult()
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("decode private results: %w", err)
	}
	if r.State == stateFailure && public == nil {
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			msg = "Code execution failed."
		}
		public = &domain.ExecutionResult{Error: msg}
	}
	return domain.SaveResult{Public: public, Private: private, Message: r.Message}, nil
}

func (o *runOutput) toExecutionResult() (*domain.ExecutionResult, error) {
	if o == nil {
		return nil, nil
	}
	out := &domain.ExecutionResult{
		Error:           decodeErrorText(o.Error),
		IsDesignProblem: o.IsDesignProblem,
		Correct:         o.Correct,
		Incorrect:       o.Incorrect,
		TotalTests:      o.TotalTests,
	}

	raw := bytes.TrimSpace(o.Output)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &out.Output); err != nil {
			return nil, err
		}
	case raw[0] == '{':
		cases, err := decodeCases(raw)
		if err != nil {
			return nil, err
		}
		out.Cases = cases
	default:
		out.Output = string(raw)
	}
	return out, nil
}

func decodeCases(raw []byte) ([]domain.TestCaseResult, error) {
	var byNumber map[string]testCase
	if err := json.Unmarshal(raw, &byNumber); err != nil {
		return nil, err
	}
	cases := make([]domain.TestCaseResult, 0, len(byNumber))
	for key, tc := range byNumber {
		number, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("test case key %q is not a number", key)
		}
		cases = append(cases, domain.TestCaseResult{
			Number:         number,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			ActualOutput:   tc.ActualOutput,
			Correct:        tc.Correct,
		})
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Number < cases[j].Number })
	return cases, nil
}

func decodeErrorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "\n")
	}
	return string(raw)
}

// submitStatus decodes the submit handler's [ok, tag, text] triple. The
// tag is a student item id on success and an error code otherwise.
type submitStatus struct {
	OK   bool
	Tag  string
	Text string
}

func (s *submitStatus) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("submit response is not a list: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("submit response has %d elements, want 3", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.OK); err != nil {
		return fmt.Errorf("submit status: %w", err)
	}
	s.Tag = scalarText(parts[1])
	s.Text = scalarText(parts[2])
	return nil
}

func scalarText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
