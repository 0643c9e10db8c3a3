// Package admission gates records per topic before they are encoded: a
// deny/allow membership check first, then a time-based token bucket. Dropped
// means dropped; nothing is queued for retry, which is the deliberate
// backpressure policy for narrow-bandwidth links.
package admission

import (
	"sync"
	"time"

	"github.com/signalsfoundry/tdl-bridge/timectrl"
)

// Result classifies one admission decision.
type Result int

const (
	Admitted Result = iota
	Denied
	RateLimited
)

// String returns the counter-friendly name of the result.
func (r Result) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case Denied:
		return "denied"
	case RateLimited:
		return "rate_limited"
	default:
		return "invalid"
	}
}

// State is the per-topic bucket state.
type State int

const (
	// Open means tokens are available.
	Open State = iota
	// Throttled means the bucket is empty; it reopens on the next refill.
	Throttled
)

// Policy is the per-topic rate limit. RatePerSec <= 0 disables rate
// limiting for the topic (membership checks still apply). Burst <= 0
// defaults to max(1, RatePerSec).
type Policy struct {
	RatePerSec float64
	Burst      float64
}

func (p Policy) effectiveBurst() float64 {
	if p.Burst > 0 {
		return p.Burst
	}
	if p.RatePerSec > 1 {
		return p.RatePerSec
	}
	return 1
}

// Recorder observes admission drops.
type Recorder interface {
	IncDenied(topic string)
	IncRateLimited(topic string)
}

// NopRecorder discards admission events.
type NopRecorder struct{}

// IncDenied implements Recorder.
func (NopRecorder) IncDenied(string) {}

// IncRateLimited implements Recorder.
func (NopRecorder) IncRateLimited(string) {}

// rateState holds the mutable per-topic counters behind a single-writer
// mutex. Lifecycle is process uptime; Reconfigure resets it.
type rateState struct {
	mu          sync.Mutex
	policy      Policy
	tokens      float64
	last        time.Time
	state       State
	denied      uint64
	rateLimited uint64
}

// Snapshot is a consistent copy of one topic's admission counters.
type Snapshot struct {
	State       State
	Tokens      float64
	Denied      uint64
	RateLimited uint64
}

// Controller applies allow/deny membership and per-topic token buckets.
// Safe for concurrent use across topics; within one topic the bucket mutex
// serializes updates.
type Controller struct {
	clock timectrl.Clock
	rec   Recorder

	allow map[string]struct{} // nil means every topic passes the allow check
	deny  map[string]struct{}

	defaultPolicy Policy

	mu     sync.Mutex
	topics map[string]*rateState
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock substitutes the refill time source.
func WithClock(c timectrl.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithRecorder wires drop counters to rec.
func WithRecorder(rec Recorder) Option {
	return func(ctrl *Controller) { ctrl.rec = rec }
}

// WithAllowList restricts admission to the listed topics. An empty list
// means no restriction.
func WithAllowList(topics []string) Option {
	return func(ctrl *Controller) {
		if len(topics) == 0 {
			return
		}
		ctrl.allow = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			ctrl.allow[t] = struct{}{}
		}
	}
}

// WithDenyList drops the listed topics unconditionally. Deny wins over
// allow.
func WithDenyList(topics []string) Option {
	return func(ctrl *Controller) {
		for _, t := range topics {
			ctrl.deny[t] = struct{}{}
		}
	}
}

// WithDefaultPolicy sets the policy applied to topics that were never
// explicitly configured.
func WithDefaultPolicy(p Policy) Option {
	return func(ctrl *Controller) { ctrl.defaultPolicy = p }
}

// NewController builds a Controller with the given options.
func NewController(opts ...Option) *Controller {
	ctrl := &Controller{
		clock:  timectrl.WallClock{},
		rec:    NopRecorder{},
		deny:   make(map[string]struct{}),
		topics: make(map[string]*rateState),
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

// Configure installs (or resets) the rate policy for a topic. Existing
// counters and tokens for the topic are discarded.
func (c *Controller) Configure(topic string, p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = &rateState{
		policy: p,
		tokens: p.effectiveBurst(),
		last:   c.clock.Now(),
	}
}

// Admit decides whether one arriving record on topic may proceed. Exactly
// one token is consumed on admission; drops only touch counters.
func (c *Controller) Admit(topic string) Result {
	if _, denied := c.deny[topic]; denied {
		c.countDenied(topic)
		return Denied
	}
	if c.allow != nil {
		if _, ok := c.allow[topic]; !ok {
			c.countDenied(topic)
			return Denied
		}
	}

	rs := c.stateFor(topic)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.policy.RatePerSec <= 0 {
		rs.state = Open
		return Admitted
	}

	now := c.clock.Now()
	if elapsed := now.Sub(rs.last); elapsed > 0 {
		rs.tokens += elapsed.Seconds() * rs.policy.RatePerSec
		if burst := rs.policy.effectiveBurst(); rs.tokens > burst {
			rs.tokens = burst
		}
	}
	rs.last = now

	if rs.tokens >= 1 {
		rs.tokens--
		rs.state = Open
		return Admitted
	}
	rs.state = Throttled
	rs.rateLimited++
	c.rec.IncRateLimited(topic)
	return RateLimited
}

// TopicSnapshot returns a copy of the topic's counters and bucket state.
func (c *Controller) TopicSnapshot(topic string) Snapshot {
	rs := c.stateFor(topic)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return Snapshot{
		State:       rs.state,
		Tokens:      rs.tokens,
		Denied:      rs.denied,
		RateLimited: rs.rateLimited,
	}
}

func (c *Controller) countDenied(topic string) {
	rs := c.stateFor(topic)
	rs.mu.Lock()
	rs.denied++
	rs.mu.Unlock()
	c.rec.IncDenied(topic)
}

func (c *Controller) stateFor(topic string) *rateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.topics[topic]
	if !ok {
		rs = &rateState{
			policy: c.defaultPolicy,
			tokens: c.defaultPolicy.effectiveBurst(),
			last:   c.clock.Now(),
		}
		c.topics[topic] = rs
	}
	return rs
}
