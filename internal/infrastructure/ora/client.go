package ora

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/resilience"
)

const (
	handlerRender        = "render_submission"
	handlerAutoSave      = "auto_save_submission"
	handlerSave          = "save_submission"
	handlerFetchResults  = "fetch_code_execution_results"
	handlerSubmit        = "submit"
	handlerUploadURL     = "upload_url"
	handlerDownloadURL   = "download_url"
	handlerRemoveFiles   = "remove_all_uploaded_files"
	handlerDescriptions  = "save_files_descriptions"
	tagDuplicateResponse = "ENOMULTI"
)

// readHandlers are safe to repeat. Everything else changes server state,
// and an upload URL is valid for one transfer only.
var readHandlers = map[string]bool{
	handlerRender:       true,
	handlerFetchResults: true,
	handlerDownloadURL:  true,
}

func operation(handler string) resilience.Operation {
	if readHandlers[handler] {
		return resilience.Read(handler)
	}
	return resilience.Write(handler)
}

// Client talks to the assessment block's JSON handlers. It implements
// ports.ResponseServer.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	executor     *resilience.Executor
	csrfToken    string
	sessionID    string
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
}

// Options configures a Client. A zero RateLimit leaves outgoing requests
// unthrottled.
type Options struct {
	Timeout            time.Duration
	PollInterval       time.Duration
	PollTimeout        time.Duration
	RateLimit          float64
	RateBurst          int
	CSRFToken          string
	SessionID          string
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	pollInterval := options.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	pollTimeout := options.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}
	var limiter *rate.Limiter
	if options.RateLimit > 0 {
		burst := options.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RateLimit), burst)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		limiter:      limiter,
		executor:     options.ResilienceExecutor,
		csrfToken:    options.CSRFToken,
		sessionID:    options.SessionID,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

type handlerStatus struct {
	Success bool   `json:"success"`
	Message string `json:"msg"`
}

type urlResponse struct {
	handlerStatus
	URL string `json:"url"`
}

func (c *Client) RenderSubmission(ctx context.Context) (string, error) {
	var markup string
	err := c.execute(ctx, handlerRender, func(ctx context.Context) error {
		body, err := c.getText(ctx, handlerRender)
		markup = body
		return err
	})
	return markup, err
}

func (c *Client) AutoSave(ctx context.Context, payload domain.ResponsePayload) (domain.SaveResult, error) {
	var status handlerStatus
	err := c.execute(ctx, handlerAutoSave, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerAutoSave, payload, &status)
	})
	if err != nil {
		return domain.SaveResult{}, err
	}
	if !status.Success {
		return domain.SaveResult{}, rejected(handlerAutoSave, "", status.Message, "This response could not be saved.")
	}
	return domain.SaveResult{Message: status.Message}, nil
}

// Save stores the response and starts code execution, then polls the
// execution results until the run leaves the running state.
func (c *Client) Save(ctx context.Context, payload domain.ResponsePayload) (domain.SaveResult, error) {
	var status handlerStatus
	err := c.execute(ctx, handlerSave, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerSave, payload, &status)
	})
	if err != nil {
		return domain.SaveResult{}, err
	}
	if !status.Success {
		return domain.SaveResult{}, rejected(handlerSave, "", status.Message, "This response could not be saved.")
	}
	return c.awaitResults(ctx)
}

func (c *Client) awaitResults(ctx context.Context) (domain.SaveResult, error) {
	deadline := time.NewTimer(c.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return domain.SaveResult{}, ctx.Err()
		case <-deadline.C:
			return domain.SaveResult{}, domain.WrapError(domain.ErrTemporary, handlerFetchResults,
				fmt.Errorf("code execution did not finish within %s", c.pollTimeout))
		case <-ticker.C:
		}

		var results executionResponse
		err := c.execute(ctx, handlerFetchResults, func(ctx context.Context) error {
			return c.getJSON(ctx, handlerFetchResults, &results)
		})
		if err != nil {
			return domain.SaveResult{}, err
		}
		if results.State == stateRunning {
			c.logger.Debug("code_execution_running", "attempt", attempt)
			continue
		}
		return results.toSaveResult()
	}
}

func (c *Client) Submit(ctx context.Context, payload domain.ResponsePayload) error {
	var status submitStatus
	err := c.execute(ctx, handlerSubmit, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerSubmit, payload, &status)
	})
	if err != nil {
		return err
	}
	if status.OK {
		c.logger.Info("response_submitted", "student_item", status.Tag, "attempt", status.Text)
		return nil
	}
	cause := rejected(handlerSubmit, status.Tag, status.Text, "This response could not be submitted.")
	if status.Tag == tagDuplicateResponse {
		return domain.WrapError(domain.ErrDuplicateSubmission, handlerSubmit, cause)
	}
	return cause
}

func (c *Client) UploadURL(ctx context.Context, mimeType, filename string, index int) (string, error) {
	request := map[string]any{
		"contentType": mimeType,
		"filename":    filename,
		"filenum":     index,
	}
	var response urlResponse
	err := c.execute(ctx, handlerUploadURL, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerUploadURL, request, &response)
	})
	if err != nil {
		return "", err
	}
	if !response.Success || strings.TrimSpace(response.URL) == "" {
		return "", rejected(handlerUploadURL, "", response.Message, "Error retrieving upload URL.")
	}
	return response.URL, nil
}

// DownloadURL returns "" when nothing is stored at index.
func (c *Client) DownloadURL(ctx context.Context, index int) (string, error) {
	var response urlResponse
	err := c.execute(ctx, handlerDownloadURL, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerDownloadURL, map[string]any{"filenum": index}, &response)
	})
	if err != nil {
		return "", err
	}
	if !response.Success {
		return "", rejected(handlerDownloadURL, "", response.Message, "Error retrieving download URL.")
	}
	return strings.TrimSpace(response.URL), nil
}

func (c *Client) RemoveUploadedFiles(ctx context.Context) error {
	var response struct {
		handlerStatus
		Removed int `json:"removed_num"`
	}
	err := c.execute(ctx, handlerRemoveFiles, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerRemoveFiles, map[string]any{}, &response)
	})
	if err != nil {
		return err
	}
	if !response.Success {
		return rejected(handlerRemoveFiles, "", response.Message, "Uploaded files could not be removed.")
	}
	c.logger.Info("uploaded_files_removed", "count", response.Removed)
	return nil
}

func (c *Client) SaveFileDescriptions(ctx context.Context, descriptions []string) error {
	if descriptions == nil {
		descriptions = []string{}
	}
	var status handlerStatus
	err := c.execute(ctx, handlerDescriptions, func(ctx context.Context) error {
		return c.postJSON(ctx, handlerDescriptions, map[string]any{"descriptions": descriptions}, &status)
	})
	if err != nil {
		return err
	}
	if !status.Success {
		return rejected(handlerDescriptions, "", status.Message, "Files descriptions could not be saved.")
	}
	return nil
}

func (c *Client) execute(ctx context.Context, handler string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation(handler), call, classifyHandlerError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(handler, err)
}
