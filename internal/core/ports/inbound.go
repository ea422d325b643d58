package ports

import (
	"context"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

// ResponseEditor is the inbound contract used by the local control surface
// and the autosave loop.
type ResponseEditor interface {
	Load(ctx context.Context, text, language string) error
	UpdateText(text string)
	SelectLanguage(language string)
	SelectFiles(ctx context.Context, paths []string) error
	DescribeFile(index int, description string) error
	UploadFiles(ctx context.Context) error
	Save(ctx context.Context) error
	AutoSave(ctx context.Context) (bool, error)
	Submit(ctx context.Context) (domain.SubmitOutcome, error)
	Status() domain.WorkspaceStatus
}
