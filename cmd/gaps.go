package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/JeroniMan/solana-indexer/internal/collector"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/spf13/cobra"
)

var (
	gapsFrom uint64
	gapsTo   uint64

	gapsCmd = &cobra.Command{
		Use:   "gaps",
		Short: "Print the gap report",
		Long:  "Lists slots that failed after retries and slot ranges not covered by any raw batch file. --to 0 means up to the highest archived slot.",
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(runGaps(), "Failed to build gap report")
		},
	}
)

func init() {
	gapsCmd.Flags().Uint64Var(&gapsFrom, "from", 0, "First slot of the report")
	gapsCmd.Flags().Uint64Var(&gapsTo, "to", 0, "Last slot of the report")
}

func runGaps() error {
	if gapsTo != 0 && gapsTo < gapsFrom {
		return fmt.Errorf("--to %d is before --from %d", gapsTo, gapsFrom)
	}
	ctx, stop := signalContext()
	defer stop()

	s := mustConnectStorage()
	defer s.Close()

	report, err := collector.BuildGapReport(ctx, s, common.SlotRange{First: gapsFrom, Last: gapsTo})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d failed slots, %d slots missing from the raw archive\n", len(report.FailedSlots), report.MissingSlotCount())
	return nil
}
