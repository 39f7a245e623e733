package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

const statusBuffer = 8

func (b *Bus) statusSubject() string {
	return b.subject + ".status"
}

// Watch subscribes to backend status for documentID. The channel closes
// after ctx is done and the subscription has drained.
func (b *Bus) Watch(ctx context.Context, documentID string) (<-chan domain.BackendStatus, error) {
	out := make(chan domain.BackendStatus, statusBuffer)
	msgs := make(chan *nats.Msg, statusBuffer)

	sub, err := b.conn.ChanSubscribe(b.statusSubject(), msgs)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats flush: %w", err)
	}

	go func() {
		defer close(out)
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				b.logger.Warn("nats_unsubscribe_failed", "subject", b.statusSubject(), "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				status, ok := decodeStatus(msg.Data, documentID)
				if !ok {
					continue
				}
				select {
				case out <- status:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// decodeStatus keeps well-formed updates for documentID only.
func decodeStatus(data []byte, documentID string) (domain.BackendStatus, bool) {
	var status domain.BackendStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.BackendStatus{}, false
	}
	if status.DocumentID != documentID {
		return domain.BackendStatus{}, false
	}
	switch status.Status {
	case domain.BackendStatusReady, domain.BackendStatusFailed:
		return status, true
	default:
		return domain.BackendStatus{}, false
	}
}
