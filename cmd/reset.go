package cmd

import (
	"fmt"

	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	resetConfirm bool

	resetCmd = &cobra.Command{
		Use:       "reset <stage>",
		Short:     "Delete every checkpoint of one stage",
		Long:      "Deletes the checkpoints of one stage (collector, collector_gaps, parser or validator) so that it starts over. Output files are left untouched. Requires --yes.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{common.StageCollector, common.StageCollectorGaps, common.StageParser, common.StageValidator},
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(runReset(args[0]), "Failed to reset checkpoints")
		},
	}
)

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "Confirm the reset")
}

func runReset(stage string) error {
	if !resetConfirm {
		return fmt.Errorf("refusing to reset %s checkpoints without --yes", stage)
	}
	ctx, stop := signalContext()
	defer stop()

	s := mustConnectStorage()
	defer s.Close()

	deleted, err := s.Checkpoints.DeleteCheckpoints(ctx, stage)
	if err != nil {
		return err
	}
	log.Warn().Str("stage", stage).Int("deleted", deleted).Msg("Checkpoints reset")
	fmt.Printf("deleted %d %s checkpoints\n", deleted, stage)
	return nil
}
