// Package ingest supplies track reports to the bridge. A Source is the
// subscription side of the telemetry substrate; the runner demultiplexes
// its stream onto per-topic pipelines.
package ingest

import (
	"context"
	"sync"

	"github.com/signalsfoundry/tdl-bridge/model"
)

// Source emits track reports until the context is cancelled, at which point
// the returned channel is closed.
type Source interface {
	Reports(ctx context.Context) (<-chan model.TrackReport, error)
}

// Bus is an in-memory Source for lab runs and tests. Publish fans a report
// out to every active subscription.
type Bus struct {
	mu   sync.Mutex
	subs []chan model.TrackReport
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Reports implements Source.
func (b *Bus) Reports(ctx context.Context) (<-chan model.TrackReport, error) {
	ch := make(chan model.TrackReport, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Publish delivers one report to all subscribers. A subscriber that has
// fallen 64 reports behind loses this one; telemetry is a lossy stream.
func (b *Bus) Publish(rep model.TrackReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- rep:
		default:
		}
	}
}
