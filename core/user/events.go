package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eduva/eduva/core"
)

type EventType string

const (
	CredentialMigrated EventType = "credential_migrated"
	ProfileSynced      EventType = "profile_synced"
	VerificationFailed EventType = "verification_failed"
	SyncFailed         EventType = "sync_failed"
	PasswordChanged    EventType = "password_changed"
)

type Event struct {
	ID        uuid.UUID
	Type      EventType
	AccountID int
	Role      Role
	Reason    string
	At        time.Time // UTC
}

func NewEvent(typ EventType, accountID int, role Role, reason string) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		AccountID: accountID,
		Role:      role,
		Reason:    reason,
		At:        time.Now().UTC(),
	}
}

// EventSink consumes credential events. Emit must not block on slow backends.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// Sinks fans an event out to every sink.
type Sinks []EventSink

func (s Sinks) Emit(ctx context.Context, ev Event) {
	for _, sink := range s {
		sink.Emit(ctx, ev)
	}
}

type logSink struct {
	logger core.Logger
}

func NewLogSink(logger core.Logger) EventSink {
	return &logSink{logger: logger}
}

func (s *logSink) Emit(_ context.Context, ev Event) {
	msg := fmt.Sprintf("credential event %s: account %d (%s)", ev.Type, ev.AccountID, ev.Role)
	data := map[string]interface{}{
		"event_id":   ev.ID.String(),
		"event":      string(ev.Type),
		"account_id": ev.AccountID,
		"role":       string(ev.Role),
		"reason":     ev.Reason,
	}
	switch ev.Type {
	case SyncFailed:
		s.logger.Error(msg, data)
	case ProfileSynced, VerificationFailed:
		s.logger.Warn(msg, data)
	default:
		s.logger.Info(msg, data)
	}
}

// txEvents holds the events of writes made through a transaction until it commits.
type txEvents struct {
	Tx
	pending []Event
}

func (t *txEvents) flush(ctx context.Context, sink EventSink) {
	for _, ev := range t.pending {
		sink.Emit(ctx, ev)
	}
	t.pending = nil
}

// emitWrite emits an event describing a write made through st.
// Inside a Service transaction it waits for the commit.
func emitWrite(ctx context.Context, sink EventSink, st Store, ev Event) {
	if tx, ok := st.(*txEvents); ok {
		tx.pending = append(tx.pending, ev)
		return
	}
	sink.Emit(ctx, ev)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}
