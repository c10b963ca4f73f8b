package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/drmente/intake-api/pkg/logging"
)

// Notifier delivers a human-readable message to operators.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string) error

func (f NotifierFunc) Notify(ctx context.Context, message string) error { return f(ctx, message) }

// Observer counts delivery outcomes per sink.
type Observer interface {
	ObserveNotification(sink string, delivered bool)
}

type namedNotifier struct {
	name string
	Notifier
}

// Named tags n so failures are attributed to a sink in logs and metrics.
func Named(name string, n Notifier) Notifier {
	return namedNotifier{name: name, Notifier: n}
}

func sinkName(n Notifier) string {
	if named, ok := n.(namedNotifier); ok {
		return named.name
	}
	return fmt.Sprintf("%T", n)
}

const defaultBestEffortTimeout = 5 * time.Second

// BestEffort delivers notifications without ever failing the caller: errors
// are logged, counted and dropped, and each delivery is bounded by a timeout.
type BestEffort struct {
	sinks    []Notifier
	logger   *logging.Logger
	observer Observer
	timeout  time.Duration
}

// NewBestEffort wraps the given sinks. Nil sinks are ignored.
func NewBestEffort(logger *logging.Logger, observer Observer, sinks ...Notifier) *BestEffort {
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &BestEffort{sinks: kept, logger: logger, observer: observer, timeout: defaultBestEffortTimeout}
}

// WithTimeout overrides the per-delivery timeout.
func (b *BestEffort) WithTimeout(d time.Duration) *BestEffort {
	if d > 0 {
		b.timeout = d
	}
	return b
}

// Send delivers message to every sink.
func (b *BestEffort) Send(ctx context.Context, message string) {
	if b == nil {
		return
	}
	for _, sink := range b.sinks {
		b.deliver(ctx, sink, message)
	}
}

func (b *BestEffort) deliver(ctx context.Context, sink Notifier, message string) {
	name := sinkName(sink)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notifier panicked", "sink", name, "panic", r)
			b.observe(name, false)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := sink.Notify(sendCtx, message); err != nil {
		b.logger.Warn("notification failed", "sink", name, "error", err)
		b.observe(name, false)
		return
	}
	b.observe(name, true)
}

func (b *BestEffort) observe(sink string, delivered bool) {
	if b.observer != nil {
		b.observer.ObserveNotification(sink, delivered)
	}
}
