package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
)

type EditorDeps struct {
	Server    ports.ResponseServer
	Transfer  ports.FileTransfer
	Files     ports.FileSource
	Gate      ports.ConfirmationGate
	Presenter ports.Presenter
	Notifier  ports.WorkflowNotifier
	Observer  ports.Observer
	Logger    *slog.Logger
}

// Editor binds one workspace to the save, upload, autosave and submission
// components and implements ports.ResponseEditor.
type Editor struct {
	ws        *Workspace
	server    ports.ResponseServer
	presenter ports.Presenter
	machine   *SubmissionMachine
	uploads   *UploadOrchestrator
	autosave  *AutosaveScheduler
	logger    *slog.Logger
}

func NewEditor(policy domain.QuestionPolicy, deps EditorDeps, autosaveInterval time.Duration) *Editor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ws := NewWorkspace(policy)
	uploads := NewUploadOrchestrator(deps.Server, deps.Transfer, deps.Files, deps.Gate, deps.Presenter, deps.Observer, logger)
	machine := NewSubmissionMachine(deps.Server, deps.Files, deps.Gate, deps.Presenter, deps.Notifier, uploads, deps.Observer, logger)
	return &Editor{
		ws:        ws,
		server:    deps.Server,
		presenter: deps.Presenter,
		machine:   machine,
		uploads:   uploads,
		autosave:  NewAutosaveScheduler(machine, ws, autosaveInterval, logger),
		logger:    logger,
	}
}

func (e *Editor) Workspace() *Workspace {
	return e.ws
}

func (e *Editor) Scheduler() *AutosaveScheduler {
	return e.autosave
}

// Load resets the workspace to the server's current response and renders
// the editable view. A file already stored at index 0 means a previously
// uploaded batch exists.
func (e *Editor) Load(ctx context.Context, text, language string) error {
	markup, renderErr := e.server.RenderSubmission(ctx)
	priorBatch := false
	if e.ws.policy.UploadType != domain.UploadTypeNone {
		url, err := e.server.DownloadURL(ctx, 0)
		if err != nil {
			e.logger.Warn("probe_uploaded_files_failed", "error", err)
		}
		priorBatch = err == nil && url != ""
	}

	ws := e.ws
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.text = text
	ws.language = language
	ws.saved = ws.currentLocked()
	ws.state = domain.StateEditing
	ws.saveErrored = false
	ws.autosaveOff = false
	ws.submitHeld = false
	ws.hasUploadedBatch = priorBatch
	ws.errors = make(map[domain.ErrorScope]string)
	e.presenter.SetUnsavedWarning(ws.unsavedKey, false)
	ws.refreshControlsLocked(e.presenter)

	if renderErr != nil {
		err := transportError("render submission", renderErr)
		ws.setErrorLocked(domain.ScopeSave, domain.UserMessage(err))
		e.presenter.SetStatus(domain.ScopeSave, domain.UserMessage(err))
		return err
	}
	e.presenter.ShowMarkup(markup, false)
	return nil
}

func (e *Editor) UpdateText(text string) {
	e.edit(func(ws *Workspace) { ws.text = text })
}

func (e *Editor) SelectLanguage(language string) {
	e.edit(func(ws *Workspace) { ws.language = language })
}

// edit applies a content change, resumes autosave and toggles the unsaved
// warning against the last saved snapshot.
func (e *Editor) edit(apply func(ws *Workspace)) {
	ws := e.ws
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.finalizedLocked() {
		return
	}
	apply(ws)
	ws.autosaveOff = false
	e.presenter.SetUnsavedWarning(ws.unsavedKey, HasChanged(ws.currentLocked(), ws.saved))
	ws.refreshControlsLocked(e.presenter)
}

func (e *Editor) SelectFiles(ctx context.Context, paths []string) error {
	return e.uploads.Select(ctx, e.ws, paths)
}

func (e *Editor) DescribeFile(index int, description string) error {
	return e.uploads.Describe(e.ws, index, description)
}

func (e *Editor) UploadFiles(ctx context.Context) error {
	_, err := e.uploads.Upload(ctx, e.ws)
	return err
}

func (e *Editor) Save(ctx context.Context) error {
	return e.machine.Save(ctx, e.ws)
}

func (e *Editor) AutoSave(ctx context.Context) (bool, error) {
	return e.autosave.Tick(ctx)
}

func (e *Editor) Submit(ctx context.Context) (domain.SubmitOutcome, error) {
	return e.machine.Submit(ctx, e.ws)
}

func (e *Editor) Status() domain.WorkspaceStatus {
	return e.ws.Status()
}
