package cmd

import (
	"context"
	"fmt"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/handlers"
	"github.com/JeroniMan/solana-indexer/internal/orchestrator"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	orchestratorCmd = &cobra.Command{
		Use:   "orchestrator",
		Short: "Run every enabled stage in one process",
		Long:  "Runs the collector, parser and validator stages that are enabled in the config as supervised tasks. A failing stage stops the others.",
		Run: func(cmd *cobra.Command, args []string) {
			RunOrchestrator(cmd, args)
		},
	}
)

func RunOrchestrator(cmd *cobra.Command, args []string) {
	exitOnError(runIndexer(false), "Orchestrator failed")
}

// RunOrchestratorWithApi serves the status API next to the stages, sharing
// one storage connection.
func RunOrchestratorWithApi(cmd *cobra.Command, args []string) {
	exitOnError(runIndexer(true), "Orchestrator failed")
}

func runIndexer(withApi bool) error {
	ctx, stop := signalContext()
	defer stop()
	startMetricsServer(ctx)

	s := mustConnectStorage()
	defer s.Close()

	if withApi {
		handlers.UseStorage(s)
		go func() {
			if err := serveApi(ctx); err != nil {
				log.Error().Err(err).Msg("API server error")
			}
		}()
	}
	return runOrchestrator(ctx, s)
}

func runOrchestrator(ctx context.Context, s storage.IStorage) error {
	log.Info().Msg("Starting indexer")

	var rpcClient rpc.IRPCClient
	if config.Cfg.Collector.Enabled {
		rpcClient = mustInitializeRPC()
		defer rpcClient.Close()
	}

	sinks, err := orchestrator.NewSinks(&config.Cfg)
	if err != nil {
		return fmt.Errorf("failed to create partition sinks: %w", err)
	}
	defer sinks.Close()

	o := orchestrator.NewOrchestrator(rpcClient, s,
		orchestrator.WithValidatorOptions(sinks.ValidatorOptions()...),
		orchestrator.WithoutSignalHandling(),
	)
	return o.Start(ctx)
}
