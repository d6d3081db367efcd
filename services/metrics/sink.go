package metricsvc

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eduva/eduva/core/user"
)

// Sink counts credential events by type and role.
type Sink struct {
	events *prometheus.CounterVec
}

var _ user.EventSink = (*Sink)(nil)

// NewSink registers the credential counters with reg.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eduva",
			Subsystem: "credentials",
			Name:      "events_total",
			Help:      "Credential events (migrations, syncs, failed verifications, password changes).",
		},
		[]string{"type", "role"},
	)
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &Sink{events: events}, nil
}

func (s *Sink) Emit(_ context.Context, ev user.Event) {
	s.events.WithLabelValues(string(ev.Type), string(ev.Role)).Inc()
}
