package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/tdl-bridge/internal/admission"
	"github.com/signalsfoundry/tdl-bridge/internal/jword"
	"github.com/signalsfoundry/tdl-bridge/internal/quant"
	"github.com/signalsfoundry/tdl-bridge/internal/simpack"
	"github.com/signalsfoundry/tdl-bridge/internal/sink"
	"github.com/signalsfoundry/tdl-bridge/model"
)

type fakeRecorder struct {
	mu        sync.Mutex
	delivered map[string]int
	failed    map[string]int
	samples   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{delivered: make(map[string]int), failed: make(map[string]int)}
}

func (r *fakeRecorder) IncDelivered(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered[topic]++
}

func (r *fakeRecorder) IncDeliveryFailure(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[topic]++
}

func (r *fakeRecorder) ObserveEncode(string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
}

func i64(v int64) *int64 { return &v }

func referenceReport(topic string) model.TrackReport {
	return model.TrackReport{
		Topic:        topic,
		TrackID:      i64(123456),
		TimeMS:       i64(1737086400123),
		LatE7:        452345678,
		LonE7:        26345678,
		AltDM:        10230,
		SpeedCMPS:    23045,
		CourseCDeg:   12345,
		ClimbCMPS:    -120,
		IdentityCode: 3,
		Quality:      4,
		Source:       512,
	}
}

func newTestPipeline(t *testing.T, snk sink.Sink, rec Recorder, adm *admission.Controller) *Pipeline {
	t.Helper()
	builder, err := jword.NewFrameBuilder(jword.ChecksumParity{})
	if err != nil {
		t.Fatal(err)
	}
	if adm == nil {
		adm = admission.NewController()
	}
	p, err := NewPipeline(PipelineConfig{
		Topic:     "drone/uav1/telemetry",
		Header:    0x0042,
		Quantizer: quant.New(nil),
		Packer:    simpack.Packer{},
		Builder:   builder,
		Admission: adm,
		Sink:      snk,
		Recorder:  rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPipelineEncodesAndDelivers(t *testing.T) {
	snk := sink.NewSimSink(nil)
	rec := newFakeRecorder()
	p := newTestPipeline(t, snk, rec, nil)

	p.Process(context.Background(), referenceReport(p.Topic()))

	deliveries := snk.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(deliveries))
	}
	d := deliveries[0]
	if d.Topic != "drone/uav1/telemetry" {
		t.Errorf("topic = %q", d.Topic)
	}
	if d.Frame.Header != 0x0042 {
		t.Errorf("header = %#x, want 0x42", uint16(d.Frame.Header))
	}
	for i, w := range d.Frame.Words {
		if w.Spare != 0 {
			t.Errorf("word %d spare = %d, want 0", i, w.Spare)
		}
	}

	// The frame must decode back to the quantized input.
	track, err := simpack.Packer{}.Unpack(d.Frame.Payloads())
	if err != nil {
		t.Fatal(err)
	}
	if track.TrackID != 123456 || track.TimeMS != 1737086400123 {
		t.Errorf("decoded track = %+v", track)
	}
	if track.LatE7 != 452345678 || track.LonE7 != 26345678 {
		t.Errorf("decoded position = (%d, %d)", track.LatE7, track.LonE7)
	}

	if rec.delivered[d.Topic] != 1 {
		t.Errorf("delivered counter = %d, want 1", rec.delivered[d.Topic])
	}
	if rec.samples != 1 {
		t.Errorf("encode samples = %d, want 1", rec.samples)
	}
}

func TestPipelineDropsMalformedReport(t *testing.T) {
	snk := sink.NewSimSink(nil)
	rec := newFakeRecorder()
	p := newTestPipeline(t, snk, rec, nil)

	rep := referenceReport(p.Topic())
	rep.TrackID = nil
	p.Process(context.Background(), rep)

	if n := len(snk.Deliveries()); n != 0 {
		t.Errorf("malformed report reached the sink: %d deliveries", n)
	}
	if rec.samples != 0 {
		t.Errorf("malformed report recorded an encode sample")
	}
}

func TestPipelineAdmissionBeforeEncode(t *testing.T) {
	snk := sink.NewSimSink(nil)
	rec := newFakeRecorder()
	adm := admission.NewController(admission.WithDenyList([]string{"drone/uav1/telemetry"}))
	p := newTestPipeline(t, snk, rec, adm)

	p.Process(context.Background(), referenceReport(p.Topic()))

	if n := len(snk.Deliveries()); n != 0 {
		t.Errorf("denied report reached the sink: %d deliveries", n)
	}
	if rec.samples != 0 {
		t.Error("denied report was encoded")
	}
}

type failingSink struct{ err error }

func (s failingSink) Deliver(context.Context, string, *jword.Frame) error { return s.err }
func (s failingSink) Close() error                                        { return nil }

func TestPipelineCountsDeliveryFailure(t *testing.T) {
	rec := newFakeRecorder()
	p := newTestPipeline(t, failingSink{err: context.DeadlineExceeded}, rec, nil)

	p.Process(context.Background(), referenceReport(p.Topic()))

	if rec.failed[p.Topic()] != 1 {
		t.Errorf("failure counter = %d, want 1", rec.failed[p.Topic()])
	}
	if rec.delivered[p.Topic()] != 0 {
		t.Errorf("delivered counter = %d, want 0", rec.delivered[p.Topic()])
	}
	// A failed delivery still encoded successfully.
	if rec.samples != 1 {
		t.Errorf("encode samples = %d, want 1", rec.samples)
	}
}

func TestPipelineRateLimitSheds(t *testing.T) {
	snk := sink.NewSimSink(nil)
	adm := admission.NewController()
	adm.Configure("drone/uav1/telemetry", admission.Policy{RatePerSec: 1, Burst: 3})
	p := newTestPipeline(t, snk, newFakeRecorder(), adm)

	for i := 0; i < 10; i++ {
		p.Process(context.Background(), referenceReport(p.Topic()))
	}
	if n := len(snk.Deliveries()); n != 3 {
		t.Errorf("delivered %d frames, want burst of 3", n)
	}
}

func BenchmarkPipelineEncode(b *testing.B) {
	builder, err := jword.NewFrameBuilder(jword.ChecksumParity{})
	if err != nil {
		b.Fatal(err)
	}
	p, err := NewPipeline(PipelineConfig{
		Topic:     "bench",
		Header:    1,
		Quantizer: quant.New(nil),
		Packer:    simpack.Packer{},
		Builder:   builder,
		Admission: admission.NewController(),
		Sink:      sink.NewSimSink(nil),
	})
	if err != nil {
		b.Fatal(err)
	}
	rep := referenceReport("bench")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Process(context.Background(), rep)
	}
}
