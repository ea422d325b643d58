package httpadapter

import (
	"net/http"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation), domain.IsKind(err, domain.ErrNoLanguageSelected):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrFileIntegrity):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidState):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNoLanguageSelected):
		return "no_language_selected"
	case domain.IsKind(err, domain.ErrValidation):
		return "validation"
	case domain.IsKind(err, domain.ErrFileIntegrity):
		return "file_integrity"
	case domain.IsKind(err, domain.ErrInvalidState):
		return "invalid_state"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}
