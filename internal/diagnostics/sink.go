// Package diagnostics provides the sinks that receive the ledger's fire-and-forget
// diagnostic records: structured logs, published events, or both.
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/micropayments-ledger/internal/models/events"
)

// MissingValue is recorded for a trailing key that has no value.
const MissingValue = "!MISSING"

// Discard drops every record.
var Discard interfaces.DiagnosticSink = discard{}

type discard struct{}

func (discard) Log(context.Context, string, ...any) {}

// Fields turns alternating key/value pairs into logrus fields.
// Non-string keys are formatted with fmt.Sprint.
func Fields(keyvals ...any) logrus.Fields {
	fields := make(logrus.Fields, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if i+1 < len(keyvals) {
			fields[key] = keyvals[i+1]
		} else {
			fields[key] = MissingValue
		}
	}
	return fields
}

// LogSink writes each record as an info-level log line.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Log(_ context.Context, msg string, keyvals ...any) {
	s.log.WithFields(Fields(keyvals...)).Info(msg)
}

// EventSink publishes each record as an events.Diagnostic.
// Publish failures are logged and otherwise ignored.
type EventSink struct {
	pub interfaces.EventPublisher
	log *logrus.Entry
	now func() time.Time
}

func NewEventSink(pub interfaces.EventPublisher, log *logrus.Entry) *EventSink {
	return &EventSink{
		pub: pub,
		log: log,
		now: time.Now,
	}
}

func (s *EventSink) Log(ctx context.Context, msg string, keyvals ...any) {
	fields := Fields(keyvals...)
	event := events.Diagnostic{
		EventID:    uuid.NewString(),
		Message:    msg,
		Fields:     map[string]any(fields),
		OccurredAt: s.now().UTC(),
	}

	var key string
	if id, ok := fields["payment_id"]; ok {
		key = fmt.Sprint(id)
	}

	if err := s.pub.Publish(ctx, key, event); err != nil {
		s.log.WithError(err).WithField("event_id", event.EventID).Warn("diagnostic publish failed")
	}
}

// Multi fans a record out to every sink in order.
type Multi []interfaces.DiagnosticSink

func (m Multi) Log(ctx context.Context, msg string, keyvals ...any) {
	for _, s := range m {
		s.Log(ctx, msg, keyvals...)
	}
}

var (
	_ interfaces.DiagnosticSink = (*LogSink)(nil)
	_ interfaces.DiagnosticSink = (*EventSink)(nil)
	_ interfaces.DiagnosticSink = Multi(nil)
)
