package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JeroniMan/solana-indexer/internal/metrics"
	"github.com/rs/zerolog/log"
)

type FetchStatus string

const (
	FetchSuccess            FetchStatus = "success"
	FetchSkippedNotFound    FetchStatus = "skipped_not_found"
	FetchFailedAfterRetries FetchStatus = "failed_after_retries"
)

// FetchResult is the tagged outcome of fetching one slot.
type FetchResult struct {
	Slot     uint64
	Status   FetchStatus
	Block    json.RawMessage
	Attempts int
	Code     int
	Err      error
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// FetchBlock fetches one slot, retrying transient errors with exponential
// backoff until the policy is exhausted. It never returns an error: every
// outcome is folded into the result.
func FetchBlock(ctx context.Context, client IRPCClient, slot uint64, policy RetryPolicy) FetchResult {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := policy.InitialBackoff

	for attempt := 1; ; attempt++ {
		block, err := client.GetBlock(ctx, slot)
		if err == nil {
			return FetchResult{Slot: slot, Status: FetchSuccess, Block: block, Attempts: attempt, Code: 200}
		}

		switch Classify(err) {
		case ErrorKindNotFound:
			return FetchResult{Slot: slot, Status: FetchSkippedNotFound, Attempts: attempt, Code: ErrorCode(err), Err: err}
		case ErrorKindPermanent:
			return FetchResult{Slot: slot, Status: FetchFailedAfterRetries, Attempts: attempt, Code: ErrorCode(err), Err: err}
		}

		if attempt >= maxAttempts {
			log.Warn().Err(err).Uint64("slot", slot).Int("attempts", attempt).Msg("Giving up on slot after retries")
			return FetchResult{Slot: slot, Status: FetchFailedAfterRetries, Attempts: attempt, Code: ErrorCode(err), Err: err}
		}

		log.Debug().Err(err).Uint64("slot", slot).Int("attempt", attempt).Dur("backoff", backoff).Msg("Retrying slot")
		metrics.CollectorRetries.Inc()

		select {
		case <-ctx.Done():
			return FetchResult{Slot: slot, Status: FetchFailedAfterRetries, Attempts: attempt, Code: ErrorCode(err), Err: ctx.Err()}
		case <-time.After(backoff):
		}

		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}
