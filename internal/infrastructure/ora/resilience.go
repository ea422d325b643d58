package ora

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Handler    string
	StatusCode int
	Status     string
	Body       string
}

func newHTTPStatusError(handler string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Handler:    handler,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "handler status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s status: %s", e.Handler, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", e.Handler, e.Status, e.Body)
}

// HandlerError is a well-formed response in which the handler declined the
// request. Its text is what the learner sees.
type HandlerError struct {
	Handler string
	Tag     string
	Message string
}

func rejected(handler, tag, message, fallback string) *HandlerError {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return &HandlerError{Handler: handler, Tag: tag, Message: message}
}

func (e *HandlerError) Error() string {
	return e.Message
}

// classifyHandlerError separates outages worth another try from answers the
// server meant. Declined requests and client-side statuses never trip the
// breaker.
func classifyHandlerError(err error) resilience.Classification {
	var (
		handlerErr *HandlerError
		statusErr  *HTTPStatusError
		netErr     net.Error
	)
	switch {
	case err == nil:
		return resilience.Classification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Classification{}
	case resilience.IsCircuitOpen(err):
		return resilience.Classification{Transient: true, Trips: true}
	case errors.As(err, &handlerErr):
		return resilience.Classification{}
	case errors.As(err, &statusErr):
		outage := isRetryableHTTPStatus(statusErr.StatusCode)
		return resilience.Classification{Transient: outage, Trips: outage}
	case errors.As(err, &netErr):
		return resilience.Classification{Transient: true, Trips: true}
	default:
		return resilience.Classification{Trips: true}
	}
}

func wrapTemporaryIfNeeded(handler string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	class := classifyHandlerError(err)
	if class.Transient || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, handler, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
