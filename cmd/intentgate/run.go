package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/intentgate/intentgate-go/engine/mempoolwatch"
	"github.com/intentgate/intentgate-go/engine/simulation"
	"github.com/intentgate/intentgate-go/engine/statewatch"
	"github.com/intentgate/intentgate-go/engine/verification"
	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module"
	"github.com/intentgate/intentgate-go/module/component"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
	"github.com/intentgate/intentgate-go/module/metrics"
	"github.com/intentgate/intentgate-go/module/registry"
	"github.com/intentgate/intentgate-go/module/util"
)

// shutdownTimeout bounds how long run waits for components to drain on exit.
const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the intent verification gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		return run(cmd.Context(), log, cfg)
	},
}

// engineSinks forwards component outputs into the verification engine. The
// engine is assigned after construction and before any component starts, which
// breaks the construction cycle between the engine and its event sources.
type engineSinks struct {
	eng *verification.Engine
}

func (s *engineSinks) SubmitResult(result *intent.SimulatorResult) { s.eng.SubmitResult(result) }
func (s *engineSinks) OnThreatEvent(event *intent.ThreatEvent)     { s.eng.OnThreatEvent(event) }
func (s *engineSinks) OnStateChangeEvent(event *intent.StateChangeEvent) {
	s.eng.OnStateChangeEvent(event)
}

func run(parent context.Context, log zerolog.Logger, cfg *Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("could not dial execution client at %s: %w", cfg.RPCEndpoint, err)
	}
	defer rpcClient.Close()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	verificationMetrics := metrics.NewVerificationCollector(promRegistry)

	reg, err := registry.New(cfg.RetentionSize)
	if err != nil {
		return fmt.Errorf("could not create intent registry: %w", err)
	}

	sinks := &engineSinks{}
	distributor := verification.NewDistributor()
	monitor := statewatch.NewMonitor(
		log,
		statewatch.NewEthReader(ethclient.NewClient(rpcClient)),
		sinks,
		statewatch.WithPollInterval(cfg.PollInterval),
	)
	pool := simulation.NewPool(log)

	core, err := verification.NewCore(
		log, verificationMetrics, reg, monitor, pool, distributor,
		verification.WithMinSimulators(cfg.MinSimulators),
		verification.WithRiskThreshold(cfg.RiskThreshold),
		verification.WithVetoCeiling(cfg.VetoCeiling),
		verification.WithMaxVerificationWindow(cfg.MaxWindow),
		verification.WithGraceFraction(cfg.GraceFraction),
		verification.WithQueueCapacity(cfg.QueueCapacity),
	)
	if err != nil {
		return err
	}
	eng, err := verification.New(log, core)
	if err != nil {
		return err
	}
	sinks.eng = eng

	distributor.AddOnStateTransitionConsumer(monitor.OnStateTransition)
	distributor.AddOnReverificationConsumer(monitor.OnReverification)

	detector, err := mempoolwatch.NewDetector(
		log,
		mempoolwatch.NewRPCFeed(gethclient.New(rpcClient)),
		reg,
		sinks,
		mempoolwatch.DefaultConfig(),
	)
	if err != nil {
		return err
	}

	valueThreshold, ok := new(big.Int).SetString(cfg.ValueThreshold, 10)
	if cfg.ValueThreshold != "" && !ok {
		return fmt.Errorf("invalid value threshold %q", cfg.ValueThreshold)
	}
	scorer := simulation.NewHeuristicScorer(valueThreshold)

	components := []component.Component{eng, monitor, detector}
	for i := 0; i < cfg.Simulators; i++ {
		node := simulation.NewNode(log, fmt.Sprintf("sim-%d", i), scorer, sinks)
		if err := pool.Register(node); err != nil {
			return err
		}
		components = append(components, node)
	}

	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
	readiness := make([]module.ReadyDoneAware, len(components))
	for i, c := range components {
		c.Start(signalerCtx)
		readiness[i] = c
	}

	select {
	case <-util.AllReady(readiness...):
		log.Info().Int("simulators", cfg.Simulators).Msg("all components ready")
	case err := <-errChan:
		return fmt.Errorf("startup failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	var runErr error
	select {
	case err := <-errChan:
		log.Error().Err(err).Msg("irrecoverable component failure, shutting down")
		runErr = err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	pool.StopWait()

	select {
	case <-util.AllDone(readiness...):
		log.Info().Msg("all components stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timed out, exiting anyway")
	}
	return runErr
}
