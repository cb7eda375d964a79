package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/collector"
	"github.com/JeroniMan/solana-indexer/internal/parser"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/JeroniMan/solana-indexer/internal/validator"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the enabled stages as supervised tasks of one process.
// A stage that fails stops the others; a bounded collector that finishes
// leaves the downstream stages running.
type Orchestrator struct {
	rpc              rpc.IRPCClient
	storage          storage.IStorage
	collectorEnabled bool
	parserEnabled    bool
	validatorEnabled bool
	collectorOpts    []collector.CollectorOption
	parserOpts       []parser.ParserOption
	validatorOpts    []validator.ValidatorOption
	handleSignals    bool
	cancel           context.CancelFunc
}

type OrchestratorOption func(*Orchestrator)

func WithStages(collectorEnabled, parserEnabled, validatorEnabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.collectorEnabled = collectorEnabled
		o.parserEnabled = parserEnabled
		o.validatorEnabled = validatorEnabled
	}
}

func WithCollectorOptions(opts ...collector.CollectorOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.collectorOpts = append(o.collectorOpts, opts...)
	}
}

func WithParserOptions(opts ...parser.ParserOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.parserOpts = append(o.parserOpts, opts...)
	}
}

func WithValidatorOptions(opts ...validator.ValidatorOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.validatorOpts = append(o.validatorOpts, opts...)
	}
}

// WithoutSignalHandling leaves SIGINT and SIGTERM to the caller.
func WithoutSignalHandling() OrchestratorOption {
	return func(o *Orchestrator) {
		o.handleSignals = false
	}
}

func NewOrchestrator(rpcClient rpc.IRPCClient, store storage.IStorage, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		rpc:              rpcClient,
		storage:          store,
		collectorEnabled: config.Cfg.Collector.Enabled,
		parserEnabled:    config.Cfg.Parser.Enabled,
		validatorEnabled: config.Cfg.Validator.Enabled,
		handleSignals:    true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start blocks until every enabled stage has returned. Cancellation of ctx,
// or a signal, is a clean stop and yields nil.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.collectorEnabled && !o.parserEnabled && !o.validatorEnabled {
		return fmt.Errorf("no stage is enabled")
	}
	if o.collectorEnabled && o.rpc == nil {
		return fmt.Errorf("collector is enabled but no RPC client is configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	defer cancel()

	if o.handleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case sig := <-sigChan:
				log.Info().Msgf("Received signal %v, initiating graceful shutdown", sig)
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	if o.collectorEnabled {
		g.Go(func() error {
			if err := collector.NewCollector(o.rpc, o.storage, o.collectorOpts...).Run(gctx); err != nil {
				return fmt.Errorf("collector: %w", err)
			}
			return nil
		})
		// the tracker is only informative and stops with the other stages
		go NewChainTracker(o.rpc, o.storage.Checkpoints).Start(gctx)
	}

	if o.parserEnabled {
		g.Go(func() error {
			if err := parser.NewParser(o.storage, o.parserOpts...).Run(gctx); err != nil {
				return fmt.Errorf("parser: %w", err)
			}
			return nil
		})
	}

	if o.validatorEnabled {
		g.Go(func() error {
			if err := validator.NewValidator(o.storage, o.validatorOpts...).Run(gctx); err != nil {
				return fmt.Errorf("validator: %w", err)
			}
			return nil
		})
	}

	log.Info().
		Bool("collector", o.collectorEnabled).
		Bool("parser", o.parserEnabled).
		Bool("validator", o.validatorEnabled).
		Msg("Orchestrator started")

	err := g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("Orchestrator stopped with error")
		return err
	}
	log.Info().Msg("Orchestrator stopped")
	return nil
}

func (o *Orchestrator) Shutdown() {
	if o.cancel != nil {
		o.cancel()
	}
}
