package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/resilience"
)

// Connection-level failures that a reconnect can cure.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrConnectionDraining,
}

// Failures caused by the event itself. Resending cannot help and the
// server is healthy, so they do not count against the breaker.
var rejectedPublishErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
	nats.ErrInvalidMsg,
}

func isAnyOf(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case resilience.IsCanceled(err), isAnyOf(err, rejectedPublishErrors):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err), isAnyOf(err, transientPublishErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// publishFailure labels err with the subject it was sent to. Oversized or
// misaddressed events become ErrInvalidInput, connection trouble becomes
// ErrTemporary.
func publishFailure(subject string, err error) error {
	if err == nil {
		return nil
	}
	op := "nats publish " + subject
	switch {
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case isAnyOf(err, rejectedPublishErrors):
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	case classifyNATSError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}
