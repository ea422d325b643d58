package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/resilience"
)

var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrStaleConnection,
}

func classifyNATSError(err error) resilience.Classification {
	switch {
	case err == nil:
		return resilience.Classification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Classification{}
	case resilience.IsCircuitOpen(err):
		return resilience.Classification{Transient: true, Trips: true}
	}
	for _, transient := range transientNATSErrors {
		if errors.Is(err, transient) {
			return resilience.Classification{Transient: true, Trips: true}
		}
	}
	// An oversized event or a bad subject is our fault, not the broker's.
	return resilience.Classification{
		Trips: !errors.Is(err, nats.ErrMaxPayload) && !errors.Is(err, nats.ErrBadSubject),
	}
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	class := classifyNATSError(err)
	if class.Transient || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "advance workflow", err)
	}
	return err
}
