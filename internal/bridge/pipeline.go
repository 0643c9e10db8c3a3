// Package bridge wires the encode pipeline together: admission, quantizer,
// field packer, frame builder, and transport sink, one pipeline per
// subscribed topic.
package bridge

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/tdl-bridge/internal/admission"
	"github.com/signalsfoundry/tdl-bridge/internal/jword"
	"github.com/signalsfoundry/tdl-bridge/internal/logging"
	"github.com/signalsfoundry/tdl-bridge/internal/quant"
	"github.com/signalsfoundry/tdl-bridge/internal/sink"
	"github.com/signalsfoundry/tdl-bridge/model"
)

const tracerName = "github.com/signalsfoundry/tdl-bridge/internal/bridge"

const defaultDeliverTimeout = 10 * time.Second

// Recorder observes pipeline outcomes. The observability collector
// satisfies it; tests inject lightweight fakes.
type Recorder interface {
	IncDelivered(topic string)
	IncDeliveryFailure(topic string)
	ObserveEncode(topic string, d time.Duration)
}

// NopRecorder discards pipeline events.
type NopRecorder struct{}

// IncDelivered implements Recorder.
func (NopRecorder) IncDelivered(string) {}

// IncDeliveryFailure implements Recorder.
func (NopRecorder) IncDeliveryFailure(string) {}

// ObserveEncode implements Recorder.
func (NopRecorder) ObserveEncode(string, time.Duration) {}

// PipelineConfig assembles one topic's encode pipeline.
type PipelineConfig struct {
	Topic     string
	Header    jword.HeaderContext
	Quantizer *quant.Quantizer
	Packer    jword.FieldPacker
	Builder   *jword.FrameBuilder
	Admission *admission.Controller
	Sink      sink.Sink

	// DeliverTimeout bounds one sink delivery including session
	// establishment. Zero means the default.
	DeliverTimeout time.Duration

	Recorder Recorder
	Log      logging.Logger
}

// Pipeline processes one topic's records in arrival order: admit, quantize,
// pack, build, deliver. Everything before delivery is pure and
// non-blocking; per-record failures are counted and logged, never fatal.
type Pipeline struct {
	topic          string
	header         jword.HeaderContext
	quantizer      *quant.Quantizer
	packer         jword.FieldPacker
	builder        *jword.FrameBuilder
	adm            *admission.Controller
	sink           sink.Sink
	deliverTimeout time.Duration
	rec            Recorder
	log            logging.Logger
	tracer         trace.Tracer
}

// NewPipeline validates cfg and builds the pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	switch {
	case cfg.Topic == "":
		return nil, errors.New("pipeline: topic is empty")
	case !cfg.Header.Valid():
		return nil, errors.New("pipeline: header context out of range")
	case cfg.Quantizer == nil:
		return nil, errors.New("pipeline: quantizer is nil")
	case cfg.Packer == nil:
		return nil, errors.New("pipeline: packer is nil")
	case cfg.Builder == nil:
		return nil, errors.New("pipeline: builder is nil")
	case cfg.Admission == nil:
		return nil, errors.New("pipeline: admission controller is nil")
	case cfg.Sink == nil:
		return nil, errors.New("pipeline: sink is nil")
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = defaultDeliverTimeout
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if cfg.Log == nil {
		cfg.Log = logging.Noop()
	}
	return &Pipeline{
		topic:          cfg.Topic,
		header:         cfg.Header,
		quantizer:      cfg.Quantizer,
		packer:         cfg.Packer,
		builder:        cfg.Builder,
		adm:            cfg.Admission,
		sink:           cfg.Sink,
		deliverTimeout: cfg.DeliverTimeout,
		rec:            cfg.Recorder,
		log:            cfg.Log.With(logging.String("topic", cfg.Topic)),
		tracer:         otel.Tracer(tracerName),
	}, nil
}

// Topic returns the pipeline's topic.
func (p *Pipeline) Topic() string { return p.topic }

// Process handles one arriving record end to end. It only blocks in the
// sink delivery; every failure is local to this record.
func (p *Pipeline) Process(ctx context.Context, rep model.TrackReport) {
	if res := p.adm.Admit(p.topic); res != admission.Admitted {
		// Admission already counted the drop.
		return
	}

	ctx, span := p.tracer.Start(ctx, "bridge.encode",
		trace.WithAttributes(attribute.String("topic", p.topic)))
	defer span.End()

	frame, ok := p.encode(ctx, rep, span)
	if !ok {
		return
	}

	dctx, cancel := context.WithTimeout(ctx, p.deliverTimeout)
	defer cancel()
	if err := p.sink.Deliver(dctx, p.topic, frame); err != nil {
		p.rec.IncDeliveryFailure(p.topic)
		span.RecordError(err)
		p.log.Warn(ctx, "frame delivery failed", logging.Err(err))
		return
	}
	p.rec.IncDelivered(p.topic)
}

// encode runs the pure stages: quantize, pack, parity, build. The latency
// sample deliberately excludes sink I/O.
func (p *Pipeline) encode(ctx context.Context, rep model.TrackReport, span trace.Span) (*jword.Frame, bool) {
	start := time.Now()

	track, err := p.quantizer.Quantize(rep)
	if err != nil {
		span.RecordError(err)
		p.log.Warn(ctx, "dropping malformed report", logging.Err(err))
		return nil, false
	}
	span.SetAttributes(attribute.Int64("track_id", int64(track.TrackID)))

	payloads, err := p.packer.Pack(track)
	if err != nil {
		span.RecordError(err)
		var pe *jword.PackingError
		if errors.As(err, &pe) {
			p.log.Warn(ctx, "packer rejected clamped record",
				logging.String("field", pe.Field),
				logging.Any("value", pe.Value),
			)
		} else {
			p.log.Warn(ctx, "packing failed", logging.Err(err))
		}
		return nil, false
	}

	frame, err := p.builder.Build(p.header, payloads)
	if err != nil {
		span.RecordError(err)
		p.log.Warn(ctx, "frame assembly failed", logging.Err(err))
		return nil, false
	}

	p.rec.ObserveEncode(p.topic, time.Since(start))
	return frame, true
}
