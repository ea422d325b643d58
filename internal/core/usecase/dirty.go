package usecase

import "github.com/kirillkom/ora-response-client/internal/core/domain"

// HasChanged is true when a field present in current is absent from saved
// or holds a different value.
func HasChanged(current, saved domain.ResponseSnapshot) bool {
	return fieldChanged(current.Text, saved.Text) || fieldChanged(current.Language, saved.Language)
}

func fieldChanged(current, saved *string) bool {
	if current == nil {
		return false
	}
	return saved == nil || *saved != *current
}
