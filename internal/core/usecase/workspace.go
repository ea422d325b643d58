package usecase

import (
	"slices"
	"strings"
	"sync"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
)

// Workspace is the aggregate owned by one response view. Every operation
// receives it by reference; fields are only touched with mu held and no
// network call is made while holding it.
type Workspace struct {
	mu sync.Mutex

	policy     domain.QuestionPolicy
	unsavedKey string

	text     string
	language string
	saved    domain.ResponseSnapshot

	state         domain.SubmissionState
	inFlightSaves int
	manualSaving  bool
	saveErrored   bool
	autosaveOff   bool
	submitHeld    bool

	files            domain.FileSet
	upload           domain.UploadState
	stage            domain.UploadStage
	uploading        bool
	hasUploadedBatch bool

	errors      map[domain.ErrorScope]string
	lastVerdict *domain.Verdict
	controls    map[domain.Control]bool
}

func NewWorkspace(policy domain.QuestionPolicy) *Workspace {
	return &Workspace{
		policy:     policy,
		unsavedKey: "ora-response:" + policy.ProblemName,
		saved:      domain.NewSnapshot("", ""),
		state:      domain.StateEditing,
		stage:      domain.StageIdle,
		errors:     make(map[domain.ErrorScope]string),
		controls:   make(map[domain.Control]bool),
	}
}

func (ws *Workspace) Policy() domain.QuestionPolicy {
	return ws.policy
}

// Current returns the live response as a snapshot.
func (ws *Workspace) Current() domain.ResponseSnapshot {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.currentLocked()
}

func (ws *Workspace) Saved() domain.ResponseSnapshot {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.saved
}

func (ws *Workspace) LastError(scope domain.ErrorScope) domain.ErrorContext {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return domain.ErrorContext{Scope: scope, Message: ws.errors[scope]}
}

func (ws *Workspace) Status() domain.WorkspaceStatus {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	controls := make(map[domain.Control]bool, len(ws.controls))
	for k, v := range ws.controls {
		controls[k] = v
	}
	var errs []domain.ErrorContext
	for _, scope := range []domain.ErrorScope{domain.ScopeSave, domain.ScopeSubmit, domain.ScopeUpload} {
		if msg := ws.errors[scope]; msg != "" {
			errs = append(errs, domain.ErrorContext{Scope: scope, Message: msg})
		}
	}
	return domain.WorkspaceStatus{
		State:            ws.state,
		Text:             ws.text,
		Language:         ws.language,
		Dirty:            HasChanged(ws.currentLocked(), ws.saved),
		Files:            slices.Clone(ws.files),
		Upload:           ws.upload,
		UploadStage:      ws.stage,
		HasUploadedBatch: ws.hasUploadedBatch,
		AutosaveBlocked:  ws.saveErrored,
		SubmitHeld:       ws.submitHeld,
		Controls:         controls,
		Errors:           errs,
		LastVerdict:      ws.lastVerdict,
	}
}

func (ws *Workspace) currentLocked() domain.ResponseSnapshot {
	return domain.NewSnapshot(ws.text, ws.language)
}

func (ws *Workspace) payloadLocked() domain.ResponsePayload {
	return domain.ResponsePayload{
		Text:        ws.text,
		Language:    ws.language,
		ProblemName: ws.policy.ProblemName,
	}
}

func (ws *Workspace) languageSelectedLocked() bool {
	return strings.TrimSpace(ws.language) != ""
}

func (ws *Workspace) finalizedLocked() bool {
	return ws.state == domain.StateSubmitting || ws.state == domain.StateSubmitted
}

func (ws *Workspace) setErrorLocked(scope domain.ErrorScope, message string) {
	if message == "" {
		delete(ws.errors, scope)
		return
	}
	ws.errors[scope] = message
}

// refreshControlsLocked re-derives every control's enablement and pushes
// the result to the presenter.
func (ws *Workspace) refreshControlsLocked(presenter ports.Presenter) {
	finalized := ws.finalizedLocked()
	next := map[domain.Control]bool{
		domain.ControlSave:    !finalized && !ws.manualSaving && CanSave(ws.policy, ws.text),
		domain.ControlSubmit:  !finalized && !ws.uploading && !ws.submitHeld && CanSubmit(ws.policy, ws.text, ws.hasUploadedBatch),
		domain.ControlPreview: ws.state != domain.StateSubmitted && strings.TrimSpace(ws.text) != "",
		domain.ControlUpload:  !finalized && !ws.uploading && ws.upload.Selected && ws.files.DescriptionsComplete(),
	}
	for _, control := range []domain.Control{domain.ControlSave, domain.ControlSubmit, domain.ControlPreview, domain.ControlUpload} {
		ws.controls[control] = next[control]
		presenter.SetControlEnabled(control, next[control])
	}
}

// settleSaveStateLocked leaves Saving once no save is in flight.
func (ws *Workspace) settleSaveStateLocked(failed bool) {
	if ws.state != domain.StateSaving || ws.inFlightSaves > 0 {
		return
	}
	if failed {
		ws.state = domain.StateError
		return
	}
	ws.state = domain.StateEditing
}
