package orchestrator

import (
	"context"
	"time"

	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/JeroniMan/solana-indexer/internal/metrics"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/rs/zerolog/log"
)

const DEFAULT_CHAIN_TRACKER_POLL_INTERVAL = 60000 // 1 minute

// ChainTracker reports the chain head and how far the collector trails it.
type ChainTracker struct {
	rpc               rpc.IRPCClient
	checkpoints       storage.ICheckpointStore
	triggerIntervalMs int
}

func NewChainTracker(rpc rpc.IRPCClient, checkpoints storage.ICheckpointStore) *ChainTracker {
	return &ChainTracker{
		rpc:               rpc,
		checkpoints:       checkpoints,
		triggerIntervalMs: DEFAULT_CHAIN_TRACKER_POLL_INTERVAL,
	}
}

func (ct *ChainTracker) Start(ctx context.Context) {
	interval := time.Duration(ct.triggerIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Msgf("Chain tracker running")
	ct.track(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Chain tracker shutting down")
			return
		case <-ticker.C:
			ct.track(ctx)
		}
	}
}

func (ct *ChainTracker) track(ctx context.Context) {
	head, err := ct.rpc.GetSlot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Error getting latest slot")
		}
		return
	}
	metrics.ChainHead.Set(float64(head))

	checkpoints, err := ct.checkpoints.ListCheckpoints(ctx, common.StageCollector)
	if err != nil {
		log.Error().Err(err).Msg("Error reading collector checkpoints")
		return
	}
	var highest uint64
	for _, cp := range checkpoints {
		if cp.Slot > highest {
			highest = cp.Slot
		}
	}
	if len(checkpoints) > 0 && head >= highest {
		metrics.CollectorLag.Set(float64(head - highest))
	}
}
