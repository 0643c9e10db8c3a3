package admission

import (
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/tdl-bridge/timectrl"
)

type dropRecorder struct {
	mu          sync.Mutex
	denied      map[string]int
	rateLimited map[string]int
}

func newDropRecorder() *dropRecorder {
	return &dropRecorder{denied: make(map[string]int), rateLimited: make(map[string]int)}
}

func (r *dropRecorder) IncDenied(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied[topic]++
}

func (r *dropRecorder) IncRateLimited(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimited[topic]++
}

func TestAdmitBurstThenRateLimit(t *testing.T) {
	clock := timectrl.NewManualClock(time.Unix(1_700_000_000, 0))
	rec := newDropRecorder()
	ctrl := NewController(WithClock(clock), WithRecorder(rec))
	ctrl.Configure("a", Policy{RatePerSec: 10, Burst: 5})

	// Five tokens of burst, then nothing until time moves.
	for i := 0; i < 5; i++ {
		if res := ctrl.Admit("a"); res != Admitted {
			t.Fatalf("arrival %d: result = %v, want admitted", i, res)
		}
	}
	for i := 0; i < 3; i++ {
		if res := ctrl.Admit("a"); res != RateLimited {
			t.Fatalf("over-budget arrival %d: result = %v, want rate_limited", i, res)
		}
	}

	snap := ctrl.TopicSnapshot("a")
	if snap.State != Throttled {
		t.Errorf("state = %v, want Throttled", snap.State)
	}
	if snap.RateLimited != 3 {
		t.Errorf("rate-limited counter = %d, want 3", snap.RateLimited)
	}
	if rec.rateLimited["a"] != 3 {
		t.Errorf("recorder count = %d, want 3", rec.rateLimited["a"])
	}
}

func TestAdmitRefillReopensThrottledTopic(t *testing.T) {
	clock := timectrl.NewManualClock(time.Unix(1_700_000_000, 0))
	ctrl := NewController(WithClock(clock))
	ctrl.Configure("a", Policy{RatePerSec: 10, Burst: 1})

	if res := ctrl.Admit("a"); res != Admitted {
		t.Fatalf("first arrival: %v", res)
	}
	if res := ctrl.Admit("a"); res != RateLimited {
		t.Fatalf("second arrival: %v, want rate_limited", res)
	}

	// 100ms at 10/s refills exactly one token.
	clock.Advance(100 * time.Millisecond)
	if res := ctrl.Admit("a"); res != Admitted {
		t.Fatalf("post-refill arrival: %v, want admitted", res)
	}
	if snap := ctrl.TopicSnapshot("a"); snap.State != Open {
		t.Errorf("state = %v, want Open after refill", snap.State)
	}
}

func TestAdmitRefillCapsAtBurst(t *testing.T) {
	clock := timectrl.NewManualClock(time.Unix(1_700_000_000, 0))
	ctrl := NewController(WithClock(clock))
	ctrl.Configure("a", Policy{RatePerSec: 100, Burst: 2})

	// A long idle period must not bank more than the burst.
	clock.Advance(time.Hour)
	admitted := 0
	for i := 0; i < 10; i++ {
		if ctrl.Admit("a") == Admitted {
			admitted++
		}
	}
	if admitted != 2 {
		t.Errorf("admitted %d after long idle, want burst of 2", admitted)
	}
}

func TestAdmitUnlimitedPolicy(t *testing.T) {
	ctrl := NewController(WithClock(timectrl.NewManualClock(time.Unix(0, 0))))
	ctrl.Configure("a", Policy{RatePerSec: 0})
	for i := 0; i < 1000; i++ {
		if res := ctrl.Admit("a"); res != Admitted {
			t.Fatalf("arrival %d: %v, want admitted under unlimited policy", i, res)
		}
	}
}

func TestAdmitDenyList(t *testing.T) {
	rec := newDropRecorder()
	ctrl := NewController(WithRecorder(rec), WithDenyList([]string{"blocked"}))
	ctrl.Configure("blocked", Policy{RatePerSec: 0})

	for i := 0; i < 4; i++ {
		if res := ctrl.Admit("blocked"); res != Denied {
			t.Fatalf("arrival %d: %v, want denied", i, res)
		}
	}
	if rec.denied["blocked"] != 4 {
		t.Errorf("denied counter = %d, want 4", rec.denied["blocked"])
	}
	if snap := ctrl.TopicSnapshot("blocked"); snap.Denied != 4 {
		t.Errorf("snapshot denied = %d, want 4", snap.Denied)
	}
}

func TestAdmitAllowListRestricts(t *testing.T) {
	ctrl := NewController(WithAllowList([]string{"permitted"}))
	if res := ctrl.Admit("permitted"); res != Admitted {
		t.Errorf("allow-listed topic: %v, want admitted", res)
	}
	if res := ctrl.Admit("other"); res != Denied {
		t.Errorf("unlisted topic: %v, want denied", res)
	}
}

func TestAdmitDenyWinsOverAllow(t *testing.T) {
	ctrl := NewController(
		WithAllowList([]string{"both"}),
		WithDenyList([]string{"both"}),
	)
	if res := ctrl.Admit("both"); res != Denied {
		t.Errorf("topic on both lists: %v, want denied", res)
	}
}

func TestConfigureResetsBucket(t *testing.T) {
	clock := timectrl.NewManualClock(time.Unix(1_700_000_000, 0))
	ctrl := NewController(WithClock(clock))
	ctrl.Configure("a", Policy{RatePerSec: 10, Burst: 1})

	ctrl.Admit("a")
	ctrl.Admit("a") // rate limited

	ctrl.Configure("a", Policy{RatePerSec: 10, Burst: 3})
	snap := ctrl.TopicSnapshot("a")
	if snap.RateLimited != 0 {
		t.Errorf("counters survived Configure: %+v", snap)
	}
	if snap.Tokens != 3 {
		t.Errorf("tokens = %v, want fresh burst of 3", snap.Tokens)
	}
}

func TestEffectiveBurstDefaults(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   float64
	}{
		{"explicit burst", Policy{RatePerSec: 10, Burst: 7}, 7},
		{"defaults to rate", Policy{RatePerSec: 10}, 10},
		{"low rate floors at one", Policy{RatePerSec: 0.5}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.effectiveBurst(); got != tc.want {
				t.Errorf("effectiveBurst() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAdmitConcurrentTopics(t *testing.T) {
	ctrl := NewController()
	for _, topic := range []string{"a", "b", "c", "d"} {
		ctrl.Configure(topic, Policy{RatePerSec: 0})
	}

	var wg sync.WaitGroup
	for _, topic := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ctrl.Admit(topic)
			}
		}(topic)
	}
	wg.Wait()
}
