package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/tdl-bridge/internal/admission"
	"github.com/signalsfoundry/tdl-bridge/internal/ingest"
	"github.com/signalsfoundry/tdl-bridge/internal/jword"
	"github.com/signalsfoundry/tdl-bridge/internal/logging"
	"github.com/signalsfoundry/tdl-bridge/internal/quant"
	"github.com/signalsfoundry/tdl-bridge/internal/sink"
	"github.com/signalsfoundry/tdl-bridge/model"
)

// topicBuffer is the per-topic dispatch depth. A pipeline that falls this
// far behind starts losing records, consistent with the no-queue policy.
const topicBuffer = 64

// TopicConfig declares one subscribed topic.
type TopicConfig struct {
	Topic  string
	Header jword.HeaderContext
	// Packer names an entry of the runner's packer registry.
	Packer string
	Policy admission.Policy
}

// RunnerConfig assembles the full bridge.
type RunnerConfig struct {
	Topics  []TopicConfig
	Packers map[string]jword.FieldPacker
	Parity  jword.ParityProvider
	// SpareBit is written into every word; leave zero unless the
	// terminal's convention differs.
	SpareBit uint8

	Source ingest.Source
	Sink   sink.Sink

	Admission *admission.Controller
	Clamps    quant.ClampRecorder
	Recorder  Recorder

	DeliverTimeout time.Duration
	Log            logging.Logger
}

// Runner owns one pipeline goroutine per subscribed topic. Topics run
// concurrently with no cross-topic ordering; within a topic, records are
// processed in arrival order on a single goroutine.
type Runner struct {
	source ingest.Source
	snk    sink.Sink
	log    logging.Logger

	mu     sync.Mutex
	topics map[string]*topicRunner
	wg     sync.WaitGroup
}

type topicRunner struct {
	pipeline *Pipeline
	ch       chan model.TrackReport
	cancel   context.CancelFunc
}

// NewRunner builds pipelines for every configured topic. A topic whose
// configuration is unusable (unknown packer, bad header) is logged and
// skipped so the remaining topics still start; a runner with zero viable
// topics is an error.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("runner: source is nil")
	}
	if cfg.Sink == nil {
		return nil, errors.New("runner: sink is nil")
	}
	if cfg.Parity == nil {
		cfg.Parity = jword.ChecksumParity{}
	}
	if cfg.Admission == nil {
		cfg.Admission = admission.NewController()
	}
	if cfg.Log == nil {
		cfg.Log = logging.Noop()
	}

	builder, err := jword.NewFrameBuilder(cfg.Parity, jword.WithSpareBit(cfg.SpareBit))
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	quantizer := quant.New(cfg.Clamps)

	r := &Runner{
		source: cfg.Source,
		snk:    cfg.Sink,
		log:    cfg.Log,
		topics: make(map[string]*topicRunner, len(cfg.Topics)),
	}

	ctx := context.Background()
	for _, tc := range cfg.Topics {
		packer, ok := cfg.Packers[tc.Packer]
		if !ok {
			cfg.Log.Error(ctx, "topic pipeline not started: unknown packer",
				logging.String("topic", tc.Topic),
				logging.String("packer", tc.Packer),
			)
			continue
		}
		cfg.Admission.Configure(tc.Topic, tc.Policy)
		pipeline, err := NewPipeline(PipelineConfig{
			Topic:          tc.Topic,
			Header:         tc.Header,
			Quantizer:      quantizer,
			Packer:         packer,
			Builder:        builder,
			Admission:      cfg.Admission,
			Sink:           cfg.Sink,
			DeliverTimeout: cfg.DeliverTimeout,
			Recorder:       cfg.Recorder,
			Log:            cfg.Log,
		})
		if err != nil {
			cfg.Log.Error(ctx, "topic pipeline not started",
				logging.String("topic", tc.Topic),
				logging.Err(err),
			)
			continue
		}
		r.topics[tc.Topic] = &topicRunner{
			pipeline: pipeline,
			ch:       make(chan model.TrackReport, topicBuffer),
		}
	}
	if len(r.topics) == 0 {
		return nil, errors.New("runner: no viable topic pipelines")
	}
	return r, nil
}

// Run subscribes to the source and dispatches reports until ctx is
// cancelled or the source closes, then drains the pipelines and returns.
func (r *Runner) Run(ctx context.Context) error {
	reports, err := r.source.Reports(ctx)
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}

	r.mu.Lock()
	for topic, tr := range r.topics {
		tctx, cancel := context.WithCancel(ctx)
		tr.cancel = cancel
		tctx, tlog := logging.WithTopicLogger(tctx, r.log, topic)
		r.wg.Add(1)
		go func(tr *topicRunner, tctx context.Context, tlog logging.Logger) {
			defer r.wg.Done()
			tlog.Info(tctx, "topic pipeline started")
			for {
				select {
				case rep, ok := <-tr.ch:
					if !ok {
						return
					}
					tr.pipeline.Process(tctx, rep)
				case <-tctx.Done():
					tlog.Info(context.Background(), "topic pipeline stopped")
					return
				}
			}
		}(tr, tctx, tlog)
	}
	r.mu.Unlock()

	for rep := range reports {
		r.dispatch(ctx, rep)
	}

	r.mu.Lock()
	for _, tr := range r.topics {
		close(tr.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}

func (r *Runner) dispatch(ctx context.Context, rep model.TrackReport) {
	r.mu.Lock()
	tr, ok := r.topics[rep.Topic]
	r.mu.Unlock()
	if !ok {
		r.log.Debug(ctx, "report for unsubscribed topic", logging.String("topic", rep.Topic))
		return
	}
	select {
	case tr.ch <- rep:
	default:
		r.log.Warn(ctx, "topic pipeline backlogged, dropping report",
			logging.String("topic", rep.Topic))
	}
}

// StopTopic tears down a single topic's pipeline, leaving the rest
// running. Its in-flight delivery completes or fails cleanly under the
// pipeline's delivery timeout.
func (r *Runner) StopTopic(topic string) {
	r.mu.Lock()
	tr, ok := r.topics[topic]
	if ok {
		delete(r.topics, topic)
	}
	r.mu.Unlock()
	if ok && tr.cancel != nil {
		tr.cancel()
	}
}

// Topics lists the currently running topics.
func (r *Runner) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		out = append(out, topic)
	}
	return out
}
