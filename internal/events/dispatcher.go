package events

import (
	"context"
	"log/slog"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/metrics"
)

// Dispatcher is the single consumer of a Channel. It hands every event to
// each sink in registration order.
type Dispatcher struct {
	ch     *Channel
	sinks  []ports.EventSink
	logger *slog.Logger
}

func NewDispatcher(ch *Channel, logger *slog.Logger, sinks ...ports.EventSink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ch: ch, sinks: sinks, logger: logger}
}

// Run delivers events until the channel is closed and drained. ctx is passed
// through to sinks; cancelling it does not stop delivery.
func (d *Dispatcher) Run(ctx context.Context) {
	for ev := range d.ch.C() {
		metrics.EventQueueDepth.Set(float64(d.ch.Len()))
		metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
		d.dispatch(ctx, ev)
	}
	metrics.EventQueueDepth.Set(0)
}

func (d *Dispatcher) dispatch(ctx context.Context, ev domain.Event) {
	for _, sink := range d.sinks {
		if err := sink.Handle(ctx, ev); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
			d.logger.Warn("event sink failed",
				slog.String("sink", sink.Name()),
				slog.String("kind", string(ev.Kind)),
				slog.String("torrentId", string(ev.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// SinkFunc adapts a function to ports.EventSink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, ev domain.Event) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Handle(ctx context.Context, ev domain.Event) error {
	return s.Fn(ctx, ev)
}
