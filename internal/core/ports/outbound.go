package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

// ResponseServer is the server-side collaborator holding the response,
// the uploaded files and the submission workflow.
type ResponseServer interface {
	RenderSubmission(ctx context.Context) (string, error)
	AutoSave(ctx context.Context, payload domain.ResponsePayload) (domain.SaveResult, error)
	Save(ctx context.Context, payload domain.ResponsePayload) (domain.SaveResult, error)
	// Submit returns an error wrapping domain.ErrDuplicateSubmission when a
	// submission already exists for the item.
	Submit(ctx context.Context, payload domain.ResponsePayload) error
	UploadURL(ctx context.Context, mimeType, filename string, index int) (string, error)
	DownloadURL(ctx context.Context, index int) (string, error)
	RemoveUploadedFiles(ctx context.Context) error
	SaveFileDescriptions(ctx context.Context, descriptions []string) error
}

// FileTransfer moves bytes to a one-time upload location.
type FileTransfer interface {
	Upload(ctx context.Context, url string, file domain.FileDescriptor, body io.Reader) error
}

// FileSource resolves user-selected files.
type FileSource interface {
	Describe(ctx context.Context, path string) (domain.FileDescriptor, error)
	Verify(ctx context.Context, file domain.FileDescriptor) error
	Open(ctx context.Context, file domain.FileDescriptor) (io.ReadCloser, error)
}

type ConfirmationGate interface {
	Confirm(ctx context.Context, prompt domain.Prompt) (bool, error)
}

// Presenter receives UI-facing signals. Implementations must not call back
// into the editor synchronously.
type Presenter interface {
	SetControlEnabled(control domain.Control, enabled bool)
	SetStatus(scope domain.ErrorScope, message string)
	SetUnsavedWarning(key string, visible bool)
	RenderVerdict(verdict domain.Verdict)
	ShowUploadedFile(index int, downloadURL, description string)
	ClearFileDescriptions()
	ShowMarkup(markup string, readOnly bool)
}

// WorkflowNotifier triggers the next workflow step after submission.
type WorkflowNotifier interface {
	Advance(ctx context.Context, event domain.SubmissionEvent) error
}

type Observer interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	ObserveUploadedBytes(n int64)
}
