package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
)

const (
	msgReplaceFiles  = "Uploading new files will remove the files you uploaded before. Continue?"
	msgFilesUploaded = "All files have been uploaded."
)

// errUploadDeclined marks a batch the user chose not to run.
var errUploadDeclined = errors.New("upload declined by user")

type uploadStep struct {
	stage domain.UploadStage
	run   func(ctx context.Context) error
}

// UploadOrchestrator drives one batch through validation, descriptions,
// removal of the prior batch, description persistence and the strictly
// sequential per-file upload.
type UploadOrchestrator struct {
	server    ports.ResponseServer
	transfer  ports.FileTransfer
	sources   ports.FileSource
	gate      ports.ConfirmationGate
	presenter ports.Presenter
	observer  ports.Observer
	logger    *slog.Logger
}

func NewUploadOrchestrator(
	server ports.ResponseServer,
	transfer ports.FileTransfer,
	sources ports.FileSource,
	gate ports.ConfirmationGate,
	presenter ports.Presenter,
	observer ports.Observer,
	logger *slog.Logger,
) *UploadOrchestrator {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadOrchestrator{
		server:    server,
		transfer:  transfer,
		sources:   sources,
		gate:      gate,
		presenter: presenter,
		observer:  observer,
		logger:    logger,
	}
}

// Select replaces the candidate set. A single violation discards the whole
// set and leaves the upload control disabled.
func (o *UploadOrchestrator) Select(ctx context.Context, ws *Workspace, paths []string) error {
	ws.mu.Lock()
	if ws.uploading || ws.finalizedLocked() {
		ws.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidState, "select files", errors.New("files cannot be changed right now"))
	}
	ws.stage = domain.StageValidating
	ws.mu.Unlock()

	files := make(domain.FileSet, 0, len(paths))
	for _, path := range paths {
		f, err := o.sources.Describe(ctx, path)
		if err != nil {
			if !domain.IsKind(err, domain.ErrValidation) {
				err = domain.WrapError(domain.ErrValidation, "describe file", err)
			}
			return o.rejectSelection(ws, err)
		}
		files = append(files, f)
	}
	if err := ValidateFileSet(ws.policy, files); err != nil {
		return o.rejectSelection(ws, err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.files = files
	ws.upload = domain.UploadState{Selected: true}
	ws.stage = domain.StageDescribingFiles
	ws.setErrorLocked(domain.ScopeUpload, "")
	o.presenter.SetStatus(domain.ScopeUpload, "")
	ws.refreshControlsLocked(o.presenter)
	return nil
}

func (o *UploadOrchestrator) rejectSelection(ws *Workspace, err error) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.files = nil
	ws.upload = domain.UploadState{}
	ws.stage = domain.StageIdle
	msg := domain.UserMessage(err)
	ws.setErrorLocked(domain.ScopeUpload, msg)
	o.presenter.SetStatus(domain.ScopeUpload, msg)
	ws.refreshControlsLocked(o.presenter)
	return err
}

// Describe records the description for one file and re-evaluates whether
// the upload control may be enabled.
func (o *UploadOrchestrator) Describe(ws *Workspace, index int, description string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.uploading || ws.finalizedLocked() {
		return domain.WrapError(domain.ErrInvalidState, "describe file", errors.New("descriptions cannot be changed right now"))
	}
	if index < 0 || index >= len(ws.files) {
		return domain.WrapError(domain.ErrValidation, "describe file", fmt.Errorf("no selected file at index %d", index))
	}
	ws.files[index].Description = description
	ws.refreshControlsLocked(o.presenter)
	return nil
}

// Upload runs the pipeline for the selected batch. It returns false without
// error when the user declines replacing a previously uploaded batch.
func (o *UploadOrchestrator) Upload(ctx context.Context, ws *Workspace) (bool, error) {
	ws.mu.Lock()
	if ws.finalizedLocked() {
		ws.mu.Unlock()
		return false, domain.WrapError(domain.ErrInvalidState, "upload files", errors.New("the response is being submitted"))
	}
	ws.mu.Unlock()
	return o.run(ctx, ws)
}

func (o *UploadOrchestrator) run(ctx context.Context, ws *Workspace) (bool, error) {
	const op = "upload files"

	ws.mu.Lock()
	switch {
	case ws.uploading:
		ws.mu.Unlock()
		return false, domain.WrapError(domain.ErrInvalidState, op, errors.New("an upload is already in progress"))
	case !ws.upload.Selected || len(ws.files) == 0:
		ws.mu.Unlock()
		return false, domain.WrapError(domain.ErrValidation, op, errors.New("no files selected"))
	case !ws.files.DescriptionsComplete():
		ws.mu.Unlock()
		return false, domain.WrapError(domain.ErrValidation, op, errors.New("please describe every file before uploading"))
	}
	ws.uploading = true
	files := slices.Clone(ws.files)
	prior := ws.hasUploadedBatch
	ws.refreshControlsLocked(o.presenter)
	ws.mu.Unlock()

	start := time.Now()
	steps := []uploadStep{
		{stage: domain.StageRemovingPriorFiles, run: func(ctx context.Context) error {
			return o.removePrior(ctx, ws, prior)
		}},
		{stage: domain.StagePersistingDescriptions, run: func(ctx context.Context) error {
			if err := o.server.SaveFileDescriptions(ctx, files.Descriptions()); err != nil {
				return fmt.Errorf("save file descriptions: %w", err)
			}
			o.presenter.ClearFileDescriptions()
			return nil
		}},
		{stage: domain.StageUploadingSequentially, run: func(ctx context.Context) error {
			for i, f := range files {
				if err := o.uploadOne(ctx, i, f); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	for _, step := range steps {
		ws.mu.Lock()
		ws.stage = step.stage
		ws.mu.Unlock()

		if err := step.run(ctx); err != nil {
			if errors.Is(err, errUploadDeclined) {
				o.finishDeclined(ws)
				return false, nil
			}
			o.observer.ObserveOperation("upload", time.Since(start), err)
			return false, o.fail(ws, step.stage, err)
		}
	}
	o.observer.ObserveOperation("upload", time.Since(start), nil)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.uploading = false
	ws.upload.Uploaded = true
	ws.hasUploadedBatch = true
	ws.stage = domain.StageDone
	ws.setErrorLocked(domain.ScopeUpload, "")
	o.presenter.SetStatus(domain.ScopeUpload, msgFilesUploaded)
	ws.refreshControlsLocked(o.presenter)
	return true, nil
}

func (o *UploadOrchestrator) removePrior(ctx context.Context, ws *Workspace, prior bool) error {
	if prior {
		ok, err := o.gate.Confirm(ctx, domain.Prompt{Kind: domain.PromptReplaceFiles, Message: msgReplaceFiles})
		if err != nil {
			return fmt.Errorf("confirm file replacement: %w", err)
		}
		if !ok {
			return errUploadDeclined
		}
	}
	if err := o.server.RemoveUploadedFiles(ctx); err != nil {
		return fmt.Errorf("remove previously uploaded files: %w", err)
	}
	ws.mu.Lock()
	ws.hasUploadedBatch = false
	ws.mu.Unlock()
	return nil
}

func (o *UploadOrchestrator) uploadOne(ctx context.Context, index int, f domain.FileDescriptor) error {
	url, err := o.server.UploadURL(ctx, f.MimeType, f.Name, index)
	if err != nil {
		return fmt.Errorf("request upload location for file %d: %w", index, err)
	}

	body, err := o.sources.Open(ctx, f)
	if err != nil {
		return fmt.Errorf("open file %d: %w", index, err)
	}
	err = o.transfer.Upload(ctx, url, f, body)
	_ = body.Close()
	if err != nil {
		return fmt.Errorf("transfer file %d: %w", index, err)
	}
	o.observer.ObserveUploadedBytes(f.SizeBytes)

	downloadURL, err := o.server.DownloadURL(ctx, index)
	if err != nil {
		return fmt.Errorf("request download location for file %d: %w", index, err)
	}
	o.presenter.ShowUploadedFile(index, downloadURL, f.Description)
	o.logger.Debug("file_uploaded", "index", index, "name", f.Name, "size_bytes", f.SizeBytes)
	return nil
}

func (o *UploadOrchestrator) finishDeclined(ws *Workspace) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.uploading = false
	ws.stage = domain.StageDescribingFiles
	ws.refreshControlsLocked(o.presenter)
}

func (o *UploadOrchestrator) fail(ws *Workspace, stage domain.UploadStage, err error) error {
	err = transportError("upload files", err)
	o.logger.Warn("upload_failed", "stage", string(stage), "error", err)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.uploading = false
	ws.stage = domain.StageFailed
	msg := domain.UserMessage(err)
	ws.setErrorLocked(domain.ScopeUpload, msg)
	o.presenter.SetStatus(domain.ScopeUpload, msg)
	ws.refreshControlsLocked(o.presenter)
	return err
}

// transportError tags err as a transport failure unless it already carries
// a semantic kind.
func transportError(operation string, err error) error {
	for _, kind := range []error{domain.ErrTransport, domain.ErrValidation, domain.ErrFileIntegrity, domain.ErrInvalidState} {
		if domain.IsKind(err, kind) {
			return fmt.Errorf("%s: %w", operation, err)
		}
	}
	return domain.WrapError(domain.ErrTransport, operation, err)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, time.Duration, error) {}
func (nopObserver) ObserveUploadedBytes(int64)                    {}
