package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/tdl-bridge/internal/admission"
	"github.com/signalsfoundry/tdl-bridge/internal/bridge"
	"github.com/signalsfoundry/tdl-bridge/internal/config"
	"github.com/signalsfoundry/tdl-bridge/internal/ingest"
	"github.com/signalsfoundry/tdl-bridge/internal/jword"
	"github.com/signalsfoundry/tdl-bridge/internal/logging"
	"github.com/signalsfoundry/tdl-bridge/internal/observability"
	"github.com/signalsfoundry/tdl-bridge/internal/simpack"
	"github.com/signalsfoundry/tdl-bridge/internal/sink"
)

func main() {
	configPath := flag.String("config", "configs/bridge.json", "Path to the bridge JSON configuration")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	collector, err := observability.NewBridgeCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	snk, err := buildSink(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build transport sink", logging.Err(err))
		os.Exit(1)
	}

	adm := admission.NewController(
		admission.WithRecorder(collector),
		admission.WithAllowList(cfg.Allow),
		admission.WithDenyList(cfg.Deny),
	)

	listen := cfg.Ingest.UDPListen
	if listen == "" {
		listen = ":7430"
	}
	source := ingest.NewUDPSource(listen, log)

	topics := make([]bridge.TopicConfig, 0, len(cfg.Topics))
	for _, t := range cfg.Topics {
		topics = append(topics, bridge.TopicConfig{
			Topic:  t.Name,
			Header: t.Header,
			Packer: t.Packer,
			Policy: admission.Policy{RatePerSec: t.RatePerSec, Burst: t.Burst},
		})
	}

	runner, err := bridge.NewRunner(bridge.RunnerConfig{
		Topics: topics,
		Packers: map[string]jword.FieldPacker{
			"sim": simpack.Packer{},
		},
		Parity:         jword.ChecksumParity{},
		SpareBit:       cfg.SpareBit,
		Source:         source,
		Sink:           snk,
		Admission:      adm,
		Clamps:         collector,
		Recorder:       collector,
		DeliverTimeout: cfg.DeliverTimeout,
		Log:            log,
	})
	if err != nil {
		log.Error(ctx, "failed to build runner", logging.Err(err))
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info(ctx, "bridge starting",
		logging.String("ingest", listen),
		logging.String("transport", cfg.Transport.Mode),
		logging.Int("topics", len(cfg.Topics)),
	)
	if err := runner.Run(runCtx); err != nil {
		log.Error(ctx, "bridge exited", logging.Err(err))
	}

	log.Info(ctx, "shutting down")
	if err := snk.Close(); err != nil {
		log.Warn(ctx, "sink close failed", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func buildSink(cfg *config.Config, log logging.Logger) (sink.Sink, error) {
	switch cfg.Transport.Mode {
	case config.ModeSecure:
		tlsCfg, err := cfg.Transport.TLSConfig()
		if err != nil {
			return nil, err
		}
		return sink.NewSecureSink(sink.SecureConfig{
			Endpoint:    cfg.Transport.Endpoint,
			TLSConfig:   tlsCfg,
			PSK:         cfg.Transport.PSK,
			DialTimeout: cfg.Transport.DialTimeout,
			MaxTries:    cfg.Transport.MaxTries,
		}, log)
	default:
		return sink.NewSimSink(func(d sink.Delivery) {
			log.Debug(context.Background(), "frame delivered to harness",
				logging.String("topic", d.Topic),
				logging.String("word0", d.Frame.Words[0].Payload.String()),
			)
		}), nil
	}
}

func serveMetrics(addr string, collector *observability.BridgeCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
