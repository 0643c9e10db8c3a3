package timectrl

import (
	"testing"
	"time"
)

func TestManualClockAdvance(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewManualClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}
	c.Advance(time.Minute)
	if want := start.Add(time.Minute); !c.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", c.Now(), want)
	}
}

func TestManualClockAfterFiresAtDeadline(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	ch := c.After(10 * time.Second)

	c.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestManualClockAfterNonPositive(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero-duration timer did not fire immediately")
	}
}

func TestManualClockSetFiresAllDueTimers(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	a := c.After(time.Second)
	b := c.After(time.Hour)

	c.Set(time.Unix(0, 0).Add(2 * time.Hour))
	for name, ch := range map[string]<-chan time.Time{"short": a, "long": b} {
		select {
		case <-ch:
		default:
			t.Errorf("%s timer did not fire after Set past its deadline", name)
		}
	}
}

func TestWallClockAfter(t *testing.T) {
	var c WallClock
	select {
	case <-c.After(time.Millisecond):
	case <-time.After(5 * time.Second):
		t.Fatal("wall clock timer never fired")
	}
}
