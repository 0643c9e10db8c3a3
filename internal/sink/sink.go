// Package sink delivers completed frames to their destination. The core
// pipeline only sees the Sink interface; whether frames cross a mutually
// authenticated session to a gateway or land in a lab harness is
// configuration, not pipeline logic.
package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalsfoundry/tdl-bridge/internal/jword"
)

// Sink accepts completed frames. Deliver is the only pipeline stage allowed
// to block; it must honour ctx and either complete a frame or fail it
// cleanly, never leaving one half-sent.
type Sink interface {
	Deliver(ctx context.Context, topic string, f *jword.Frame) error
	Close() error
}

// TransportError reports a delivery that failed after the sink exhausted
// its bounded retries. The frame is not requeued.
type TransportError struct {
	Topic    string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: topic %s failed after %d attempts: %v", e.Topic, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Delivery is one frame handed to a SimSink.
type Delivery struct {
	Topic string
	Frame *jword.Frame
}

// SimSink hands frames to a lab/test harness in-process. The optional
// callback runs synchronously on the delivering goroutine.
type SimSink struct {
	mu         sync.Mutex
	deliveries []Delivery
	fn         func(Delivery)
}

// NewSimSink constructs a simulation sink. fn may be nil.
func NewSimSink(fn func(Delivery)) *SimSink {
	return &SimSink{fn: fn}
}

// Deliver implements Sink. It never fails.
func (s *SimSink) Deliver(_ context.Context, topic string, f *jword.Frame) error {
	d := Delivery{Topic: topic, Frame: f}
	s.mu.Lock()
	s.deliveries = append(s.deliveries, d)
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return nil
}

// Close implements Sink.
func (s *SimSink) Close() error { return nil }

// Deliveries returns a copy of everything delivered so far.
func (s *SimSink) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}
