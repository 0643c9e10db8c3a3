package logging

import (
	"context"
	"testing"
)

func TestTopicContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := TopicFromContext(ctx); got != "" {
		t.Errorf("empty context topic = %q, want empty", got)
	}

	ctx = ContextWithTopic(ctx, "drone/uav1/telemetry")
	if got := TopicFromContext(ctx); got != "drone/uav1/telemetry" {
		t.Errorf("topic = %q", got)
	}
}

func TestWithTopicLogger(t *testing.T) {
	ctx, log := WithTopicLogger(context.Background(), Noop(), "drone/uav1/telemetry")
	if log == nil {
		t.Fatal("nil logger")
	}
	if got := TopicFromContext(ctx); got != "drone/uav1/telemetry" {
		t.Errorf("context topic = %q", got)
	}
	// The returned logger must be usable without panicking.
	log.Info(ctx, "message", String("k", "v"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"bogus", "INFO"},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in).Level().String(); got != tc.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
