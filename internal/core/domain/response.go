package domain

import "time"

type SubmissionState string

const (
	StateEditing    SubmissionState = "editing"
	StateSaving     SubmissionState = "saving"
	StateSubmitting SubmissionState = "submitting"
	StateSubmitted  SubmissionState = "submitted"
	StateError      SubmissionState = "error"
)

// ResponseSnapshot is the value captured at load and after every successful
// save. A nil field means the key is absent.
type ResponseSnapshot struct {
	Text     *string `json:"text,omitempty"`
	Language *string `json:"language,omitempty"`
}

func NewSnapshot(text, language string) ResponseSnapshot {
	return ResponseSnapshot{Text: &text, Language: &language}
}

// ResponsePayload is what save, autosave and submit send to the server.
type ResponsePayload struct {
	Text        string `json:"submission"`
	Language    string `json:"executor_id"`
	ProblemName string `json:"problem_name,omitempty"`
}

type ErrorScope string

const (
	ScopeSave   ErrorScope = "save"
	ScopeSubmit ErrorScope = "submit"
	ScopeUpload ErrorScope = "upload"
)

type ErrorContext struct {
	Scope   ErrorScope `json:"scope"`
	Message string     `json:"message,omitempty"`
}

type TestCaseResult struct {
	Number         int    `json:"number"`
	Input          string `json:"test_input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Correct        bool   `json:"correct"`
}

// ExecutionResult is one run (public sample cases or private staff cases)
// reported by the server after a save.
type ExecutionResult struct {
	Error           string           `json:"error,omitempty"`
	IsDesignProblem bool             `json:"is_design_problem,omitempty"`
	Correct         int              `json:"correct"`
	Incorrect       int              `json:"incorrect"`
	TotalTests      int              `json:"total_tests"`
	Cases           []TestCaseResult `json:"cases,omitempty"`
	Output          string           `json:"output,omitempty"`
}

type SaveResult struct {
	Public  *ExecutionResult `json:"public,omitempty"`
	Private *ExecutionResult `json:"private,omitempty"`
	Message string           `json:"message,omitempty"`
}

type VerdictKind string

const (
	VerdictNone           VerdictKind = "none"
	VerdictExecutionError VerdictKind = "execution_error"
	VerdictTestCases      VerdictKind = "test_cases"
	VerdictPlainOutput    VerdictKind = "plain_output"
)

// Verdict is the structured rendering request handed to the presenter.
type Verdict struct {
	Kind       VerdictKind      `json:"kind"`
	Error      string           `json:"error,omitempty"`
	Correct    int              `json:"correct"`
	TotalTests int              `json:"total_tests"`
	Cases      []TestCaseResult `json:"cases,omitempty"`
	Output     string           `json:"output,omitempty"`
	Private    *Verdict         `json:"private,omitempty"`
}

type SubmitOutcome string

const (
	OutcomeSubmitted      SubmitOutcome = "submitted"
	OutcomeDeclined       SubmitOutcome = "declined"
	OutcomeUploadDeclined SubmitOutcome = "upload_declined"
	OutcomeFailed         SubmitOutcome = "failed"
)

// SubmissionEvent is published when the workflow advances past the
// response step.
type SubmissionEvent struct {
	ProblemName string    `json:"problem_name"`
	Language    string    `json:"executor_id"`
	FileCount   int       `json:"file_count"`
	Duplicate   bool      `json:"duplicate"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Control string

const (
	ControlSave    Control = "save"
	ControlSubmit  Control = "submit"
	ControlPreview Control = "preview"
	ControlUpload  Control = "upload"
)

type PromptKind string

const (
	PromptUploadBeforeSubmit PromptKind = "upload_before_submit"
	PromptReplaceFiles       PromptKind = "replace_files"
	PromptFinalSubmit        PromptKind = "final_submit"
)

type Prompt struct {
	Kind    PromptKind
	Message string
}

// WorkspaceStatus is a read-only view of the workspace for collaborators.
type WorkspaceStatus struct {
	State            SubmissionState  `json:"state"`
	Text             string           `json:"text"`
	Language         string           `json:"language"`
	Dirty            bool             `json:"dirty"`
	Files            FileSet          `json:"files"`
	Upload           UploadState      `json:"upload"`
	UploadStage      UploadStage      `json:"upload_stage"`
	HasUploadedBatch bool             `json:"has_uploaded_batch"`
	AutosaveBlocked  bool             `json:"autosave_blocked"`
	SubmitHeld       bool             `json:"submit_held"`
	Controls         map[Control]bool `json:"controls"`
	Errors           []ErrorContext   `json:"errors,omitempty"`
	LastVerdict      *Verdict         `json:"last_verdict,omitempty"`
}
