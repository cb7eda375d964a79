package cmd

import (
	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/collector"
	"github.com/JeroniMan/solana-indexer/internal/orchestrator"
	"github.com/JeroniMan/solana-indexer/internal/parser"
	"github.com/JeroniMan/solana-indexer/internal/validator"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	collectorCmd = &cobra.Command{
		Use:   "collector",
		Short: "Run the collector stage",
		Long:  "Fetches every slot of the configured range from the RPC node and writes raw batch files. With collector.endSlot unset it follows the chain head until stopped.",
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(runCollector(), "Collector failed")
		},
	}
	parserCmd = &cobra.Command{
		Use:   "parser",
		Short: "Run the parser stage",
		Long:  "Polls for raw batch files and converts each into one columnar file per entity. Undecodable batches are quarantined.",
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(runParser(), "Parser failed")
		},
	}
	validatorCmd = &cobra.Command{
		Use:   "validator",
		Short: "Run the validator stage",
		Long:  "Polls for columnar files and moves or splits each into epoch and block date partitions.",
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(runValidator(), "Validator failed")
		},
	}
)

func runCollector() error {
	ctx, stop := signalContext()
	defer stop()
	startMetricsServer(ctx)

	s := mustConnectStorage()
	defer s.Close()
	rpcClient := mustInitializeRPC()
	defer rpcClient.Close()

	go orchestrator.NewChainTracker(rpcClient, s.Checkpoints).Start(ctx)
	if err := collector.NewCollector(rpcClient, s).Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Collector stopped")
	return nil
}

func runParser() error {
	ctx, stop := signalContext()
	defer stop()
	startMetricsServer(ctx)

	s := mustConnectStorage()
	defer s.Close()

	return parser.NewParser(s).Run(ctx)
}

func runValidator() error {
	ctx, stop := signalContext()
	defer stop()
	startMetricsServer(ctx)

	s := mustConnectStorage()
	defer s.Close()

	sinks, err := orchestrator.NewSinks(&config.Cfg)
	if err != nil {
		return err
	}
	defer sinks.Close()

	return validator.NewValidator(s, sinks.ValidatorOptions()...).Run(ctx)
}
