package presigned

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

// Uploader PUTs file bytes to the one-time upload location handed out by
// the server. It implements ports.FileTransfer.
type Uploader struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Uploader{httpClient: &http.Client{Timeout: timeout}}
}

func NewWithClient(client *http.Client) *Uploader {
	return &Uploader{httpClient: client}
}

func (u *Uploader) Upload(ctx context.Context, url string, file domain.FileDescriptor, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("create upload request for %s: %w", file.Name, err)
	}
	if file.SizeBytes > 0 {
		req.ContentLength = file.SizeBytes
	}
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			return fmt.Errorf("upload %s status: %s", file.Name, resp.Status)
		}
		return fmt.Errorf("upload %s status: %s: %s", file.Name, resp.Status, msg)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
