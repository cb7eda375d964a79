package rpc

import (
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
)

const (
	DEFAULT_TIMEOUT_MS         = 30000
	DEFAULT_COMMITMENT         = "finalized"
	DEFAULT_MAX_ATTEMPTS       = 5
	DEFAULT_INITIAL_BACKOFF_MS = 1000
	DEFAULT_MAX_BACKOFF_MS     = 30000
)

func GetRetryPolicyConfig() RetryPolicy {
	maxAttempts := config.Cfg.RPC.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DEFAULT_MAX_ATTEMPTS
	}
	initialBackoff := config.Cfg.RPC.Retry.InitialBackoffMs
	if initialBackoff <= 0 {
		initialBackoff = DEFAULT_INITIAL_BACKOFF_MS
	}
	maxBackoff := config.Cfg.RPC.Retry.MaxBackoffMs
	if maxBackoff <= 0 {
		maxBackoff = DEFAULT_MAX_BACKOFF_MS
	}
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Duration(initialBackoff) * time.Millisecond,
		MaxBackoff:     time.Duration(maxBackoff) * time.Millisecond,
	}
}

func getTimeout() time.Duration {
	timeout := config.Cfg.RPC.TimeoutMs
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT_MS
	}
	return time.Duration(timeout) * time.Millisecond
}

func getCommitment() string {
	if config.Cfg.RPC.Commitment == "" {
		return DEFAULT_COMMITMENT
	}
	return config.Cfg.RPC.Commitment
}
