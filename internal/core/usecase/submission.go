package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
)

const (
	msgSelectLanguage      = "Please select a language before saving or submitting."
	msgSaving              = "Saving your response..."
	msgSaved               = "This response has been saved."
	msgAutoSaved           = "Auto Save Successful"
	msgSaveFailed          = "This response could not be saved: "
	msgTextRequired        = "Please enter a response before saving."
	msgUploadBeforeSubmit  = "You have selected files that are not uploaded yet. Upload them and submit?"
	msgFinalSubmit         = "You're about to submit your response. You will not be able to change it afterwards. Continue?"
	msgSubmitted           = "Your response has been submitted."
	msgSubmitFailed        = "This response could not be submitted: "
	msgReselectFiles       = "Please reselect your files: "
	msgAlreadySubmitting   = "a submission is already in progress"
	msgUploadInProgress    = "files are still uploading"
	msgIncomplete          = "This response is not complete yet."
	msgSubmittingNoChanges = "the response is being submitted"
)

type saveMode int

const (
	saveManual saveMode = iota
	saveAuto
)

func (m saveMode) operation() string {
	if m == saveAuto {
		return "autosave"
	}
	return "save"
}

// SubmissionMachine owns the Editing/Saving/Submitting/Submitted/Error
// transitions of a workspace.
type SubmissionMachine struct {
	server    ports.ResponseServer
	sources   ports.FileSource
	gate      ports.ConfirmationGate
	presenter ports.Presenter
	notifier  ports.WorkflowNotifier
	uploads   *UploadOrchestrator
	observer  ports.Observer
	logger    *slog.Logger
	now       func() time.Time
}

func NewSubmissionMachine(
	server ports.ResponseServer,
	sources ports.FileSource,
	gate ports.ConfirmationGate,
	presenter ports.Presenter,
	notifier ports.WorkflowNotifier,
	uploads *UploadOrchestrator,
	observer ports.Observer,
	logger *slog.Logger,
) *SubmissionMachine {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionMachine{
		server:    server,
		sources:   sources,
		gate:      gate,
		presenter: presenter,
		notifier:  notifier,
		uploads:   uploads,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *SubmissionMachine) Save(ctx context.Context, ws *Workspace) error {
	return m.save(ctx, ws, saveManual)
}

func (m *SubmissionMachine) save(ctx context.Context, ws *Workspace, mode saveMode) error {
	op := mode.operation()

	ws.mu.Lock()
	if ws.finalizedLocked() {
		ws.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidState, op, errors.New(msgSubmittingNoChanges))
	}
	if !ws.languageSelectedLocked() {
		ws.setErrorLocked(domain.ScopeSave, msgSelectLanguage)
		m.presenter.SetStatus(domain.ScopeSave, msgSelectLanguage)
		ws.mu.Unlock()
		return domain.WrapError(domain.ErrNoLanguageSelected, op, errors.New(msgSelectLanguage))
	}
	if !CanSave(ws.policy, ws.text) {
		if mode == saveManual {
			ws.setErrorLocked(domain.ScopeSave, msgTextRequired)
			m.presenter.SetStatus(domain.ScopeSave, msgTextRequired)
		}
		ws.mu.Unlock()
		return domain.WrapError(domain.ErrValidation, op, errors.New(msgTextRequired))
	}
	ws.inFlightSaves++
	if mode == saveManual {
		ws.manualSaving = true
	}
	ws.state = domain.StateSaving
	payload := ws.payloadLocked()
	sent := ws.currentLocked()
	m.presenter.SetUnsavedWarning(ws.unsavedKey, false)
	m.presenter.SetStatus(domain.ScopeSave, msgSaving)
	ws.refreshControlsLocked(m.presenter)
	ws.mu.Unlock()

	start := m.now()
	var (
		result domain.SaveResult
		err    error
	)
	if mode == saveAuto {
		result, err = m.server.AutoSave(ctx, payload)
	} else {
		result, err = m.server.Save(ctx, payload)
	}
	m.observer.ObserveOperation(op, m.now().Sub(start), err)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.inFlightSaves--
	if mode == saveManual {
		ws.manualSaving = false
	}

	if err != nil {
		err = transportError(op, err)
		msg := domain.UserMessage(err)
		ws.saveErrored = true
		ws.setErrorLocked(domain.ScopeSave, msg)
		ws.settleSaveStateLocked(true)
		m.presenter.SetStatus(domain.ScopeSave, msgSaveFailed+msg)
		ws.refreshControlsLocked(m.presenter)
		m.logger.Warn("save_failed", "operation", op, "error", err)
		return err
	}

	// Last writer wins when a manual save and an autosave interleave.
	ws.saved = sent
	if mode == saveManual {
		ws.saveErrored = false
		ws.autosaveOff = true
	}
	ws.setErrorLocked(domain.ScopeSave, "")
	ws.settleSaveStateLocked(false)

	verdict := BuildVerdict(result)
	if verdict.Kind != domain.VerdictNone {
		ws.lastVerdict = &verdict
		m.presenter.RenderVerdict(verdict)
	}
	if mode == saveAuto {
		m.presenter.SetStatus(domain.ScopeSave, msgAutoSaved)
	} else {
		m.presenter.SetStatus(domain.ScopeSave, msgSaved)
	}
	if HasChanged(ws.currentLocked(), ws.saved) {
		m.presenter.SetUnsavedWarning(ws.unsavedKey, true)
	}
	ws.refreshControlsLocked(m.presenter)
	return nil
}

// Submit runs the final submission. Declining a confirmation is not an
// error and is reported through the returned outcome.
func (m *SubmissionMachine) Submit(ctx context.Context, ws *Workspace) (domain.SubmitOutcome, error) {
	const op = "submit"

	ws.mu.Lock()
	switch ws.state {
	case domain.StateSubmitted:
		ws.mu.Unlock()
		return domain.OutcomeSubmitted, nil
	case domain.StateSubmitting:
		ws.mu.Unlock()
		return domain.OutcomeFailed, domain.WrapError(domain.ErrInvalidState, op, errors.New(msgAlreadySubmitting))
	}
	if ws.uploading {
		ws.mu.Unlock()
		return domain.OutcomeFailed, domain.WrapError(domain.ErrInvalidState, op, errors.New(msgUploadInProgress))
	}
	if !ws.languageSelectedLocked() {
		ws.setErrorLocked(domain.ScopeSubmit, msgSelectLanguage)
		m.presenter.SetStatus(domain.ScopeSubmit, msgSelectLanguage)
		ws.mu.Unlock()
		return domain.OutcomeFailed, domain.WrapError(domain.ErrNoLanguageSelected, op, errors.New(msgSelectLanguage))
	}
	pending := ws.upload.Selected && !ws.upload.Uploaded
	if !CanSubmit(ws.policy, ws.text, ws.hasUploadedBatch || pending) {
		ws.setErrorLocked(domain.ScopeSubmit, msgIncomplete)
		m.presenter.SetStatus(domain.ScopeSubmit, msgIncomplete)
		ws.mu.Unlock()
		return domain.OutcomeFailed, domain.WrapError(domain.ErrValidation, op, errors.New(msgIncomplete))
	}
	ws.state = domain.StateSubmitting
	ws.submitHeld = false
	files := slices.Clone(ws.files)
	ws.refreshControlsLocked(m.presenter)
	ws.mu.Unlock()

	if pending {
		if err := m.verifyFiles(ctx, files); err != nil {
			m.discardSelection(ws)
			return domain.OutcomeFailed, m.abortSubmit(ws, msgReselectFiles, err)
		}
		ok, err := m.gate.Confirm(ctx, domain.Prompt{Kind: domain.PromptUploadBeforeSubmit, Message: msgUploadBeforeSubmit})
		if err != nil {
			return domain.OutcomeFailed, m.abortSubmit(ws, msgSubmitFailed, fmt.Errorf("confirm upload: %w", err))
		}
		if !ok {
			m.release(ws)
			return domain.OutcomeUploadDeclined, nil
		}
		uploaded, err := m.uploads.run(ctx, ws)
		if err != nil {
			return domain.OutcomeFailed, m.abortSubmit(ws, msgSubmitFailed, err)
		}
		if !uploaded {
			m.release(ws)
			return domain.OutcomeUploadDeclined, nil
		}
	}

	ok, err := m.gate.Confirm(ctx, domain.Prompt{Kind: domain.PromptFinalSubmit, Message: msgFinalSubmit})
	if err != nil {
		return domain.OutcomeFailed, m.abortSubmit(ws, msgSubmitFailed, fmt.Errorf("confirm submission: %w", err))
	}
	if !ok {
		m.hold(ws)
		return domain.OutcomeDeclined, nil
	}

	ws.mu.Lock()
	payload := ws.payloadLocked()
	fileCount := 0
	if ws.hasUploadedBatch {
		fileCount = len(ws.files)
	}
	ws.mu.Unlock()

	start := m.now()
	err = m.server.Submit(ctx, payload)
	duplicate := domain.IsKind(err, domain.ErrDuplicateSubmission)
	if duplicate {
		m.logger.Info("duplicate_submission_treated_as_success", "problem", payload.ProblemName)
		err = nil
	}
	m.observer.ObserveOperation(op, m.now().Sub(start), err)
	if err != nil {
		return domain.OutcomeFailed, m.abortSubmit(ws, msgSubmitFailed, transportError(op, err))
	}

	m.complete(ctx, ws, payload, domain.SubmissionEvent{
		ProblemName: payload.ProblemName,
		Language:    payload.Language,
		FileCount:   fileCount,
		Duplicate:   duplicate,
		SubmittedAt: m.now().UTC(),
	})
	return domain.OutcomeSubmitted, nil
}

func (m *SubmissionMachine) verifyFiles(ctx context.Context, files domain.FileSet) error {
	for i, f := range files {
		if err := m.sources.Verify(ctx, f); err != nil {
			if domain.IsKind(err, domain.ErrFileIntegrity) {
				return fmt.Errorf("verify file %d: %w", i, err)
			}
			return domain.WrapError(domain.ErrFileIntegrity, "verify file", fmt.Errorf("file %q: %w", f.Name, err))
		}
	}
	return nil
}

func (m *SubmissionMachine) discardSelection(ws *Workspace) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.files = nil
	ws.upload = domain.UploadState{}
	ws.stage = domain.StageIdle
}

// complete moves the workspace to Submitted. Failures while reloading the
// read-only view or advancing the workflow are logged only: the submission
// already exists.
func (m *SubmissionMachine) complete(ctx context.Context, ws *Workspace, payload domain.ResponsePayload, event domain.SubmissionEvent) {
	ws.mu.Lock()
	ws.state = domain.StateSubmitted
	ws.saved = domain.NewSnapshot(payload.Text, payload.Language)
	ws.setErrorLocked(domain.ScopeSubmit, "")
	m.presenter.SetUnsavedWarning(ws.unsavedKey, false)
	m.presenter.SetStatus(domain.ScopeSubmit, msgSubmitted)
	ws.refreshControlsLocked(m.presenter)
	ws.mu.Unlock()

	markup, err := m.server.RenderSubmission(ctx)
	if err != nil {
		m.logger.Warn("render_submitted_view_failed", "error", err)
	} else {
		m.presenter.ShowMarkup(markup, true)
	}
	if m.notifier != nil {
		if err := m.notifier.Advance(ctx, event); err != nil {
			m.logger.Warn("workflow_advance_failed", "error", err)
		}
	}
}

func (m *SubmissionMachine) abortSubmit(ws *Workspace, prefix string, err error) error {
	msg := domain.UserMessage(err)
	m.logger.Warn("submit_failed", "error", err)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.state = domain.StateError
	ws.setErrorLocked(domain.ScopeSubmit, msg)
	m.presenter.SetStatus(domain.ScopeSubmit, prefix+msg)
	ws.refreshControlsLocked(m.presenter)
	return err
}

func (m *SubmissionMachine) release(ws *Workspace) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.state = domain.StateEditing
	ws.refreshControlsLocked(m.presenter)
}

// hold leaves the submit control disabled after the final confirmation was
// declined; only a reload or an explicit resubmit clears it.
func (m *SubmissionMachine) hold(ws *Workspace) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.state = domain.StateEditing
	ws.submitHeld = true
	ws.refreshControlsLocked(m.presenter)
}

// BuildVerdict turns the server's structured save result into a rendering
// request. Private (staff) results are attached when present.
func BuildVerdict(result domain.SaveResult) domain.Verdict {
	if result.Public == nil {
		return domain.Verdict{Kind: domain.VerdictNone}
	}
	verdict := verdictFor(*result.Public)
	if result.Private != nil {
		private := verdictFor(*result.Private)
		verdict.Private = &private
	}
	return verdict
}

func verdictFor(r domain.ExecutionResult) domain.Verdict {
	switch {
	case strings.TrimSpace(r.Error) != "":
		return domain.Verdict{Kind: domain.VerdictExecutionError, Error: r.Error}
	case r.IsDesignProblem || (r.TotalTests == 0 && len(r.Cases) == 0):
		return domain.Verdict{Kind: domain.VerdictPlainOutput, Output: r.Output}
	default:
		return domain.Verdict{
			Kind:       domain.VerdictTestCases,
			Correct:    r.Correct,
			TotalTests: r.TotalTests,
			Cases:      r.Cases,
		}
	}
}
