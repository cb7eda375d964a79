package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/metrics"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

// IRPCClient is the narrow view of a Solana node the pipeline needs.
// GetBlock returns an error wrapping ErrBlockNotFound for skipped slots.
type IRPCClient interface {
	GetBlock(ctx context.Context, slot uint64) (json.RawMessage, error)
	GetSlot(ctx context.Context) (uint64, error)
	GetURL() string
	Close()
}

type Client struct {
	RPCClient  *gethRpc.Client
	url        string
	commitment string
	timeout    time.Duration
}

func Initialize() (IRPCClient, error) {
	rpcUrl := config.Cfg.RPC.URL
	if rpcUrl == "" {
		return nil, fmt.Errorf("RPC_URL environment variable is not set")
	}
	log.Debug().Msg("Initializing RPC")

	rpc, err := NewClient(context.Background(), rpcUrl, getCommitment(), getTimeout())
	if err != nil {
		return nil, err
	}
	if err := rpc.checkSupportedMethods(); err != nil {
		rpc.Close()
		return nil, err
	}
	return IRPCClient(rpc), nil
}

func NewClient(ctx context.Context, url string, commitment string, timeout time.Duration) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}
	rpcClient, dialErr := gethRpc.DialOptions(ctx, url, gethRpc.WithHTTPClient(httpClient))
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial rpc %s: %w", url, dialErr)
	}
	return &Client{
		RPCClient:  rpcClient,
		url:        url,
		commitment: commitment,
		timeout:    timeout,
	}, nil
}

func (rpc *Client) GetURL() string {
	return rpc.url
}

func (rpc *Client) Close() {
	rpc.RPCClient.Close()
}

func (rpc *Client) checkSupportedMethods() error {
	ctx, cancel := context.WithTimeout(context.Background(), rpc.timeout)
	defer cancel()

	var health string
	if err := rpc.RPCClient.CallContext(ctx, &health, MethodGetHealth); err != nil {
		log.Warn().Err(err).Msg("getHealth failed, node may be behind")
	} else {
		log.Debug().Str("health", health).Msg("getHealth supported")
	}

	if _, err := rpc.GetSlot(ctx); err != nil {
		return fmt.Errorf("getSlot method not supported: %w", err)
	}
	log.Debug().Msg("getSlot method supported")
	return nil
}

func (rpc *Client) GetBlock(ctx context.Context, slot uint64) (json.RawMessage, error) {
	start := time.Now()
	var result json.RawMessage
	err := rpc.RPCClient.CallContext(ctx, &result, MethodGetBlock, GetBlockParams(slot, rpc.commitment)...)
	metrics.RPCRequestDuration.WithLabelValues(MethodGetBlock).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gethRpc.ErrNoResult) {
			return nil, fmt.Errorf("slot %d: %w", slot, ErrBlockNotFound)
		}
		metrics.RPCErrors.WithLabelValues(MethodGetBlock, string(Classify(err))).Inc()
		return nil, fmt.Errorf("getBlock %d: %w", slot, err)
	}
	if isNullResult(result) {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrBlockNotFound)
	}
	return result, nil
}

func (rpc *Client) GetSlot(ctx context.Context) (uint64, error) {
	start := time.Now()
	var slot uint64
	err := rpc.RPCClient.CallContext(ctx, &slot, MethodGetSlot, GetSlotParams(rpc.commitment)...)
	metrics.RPCRequestDuration.WithLabelValues(MethodGetSlot).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrors.WithLabelValues(MethodGetSlot, string(Classify(err))).Inc()
		return 0, fmt.Errorf("failed to get latest slot: %w", err)
	}
	return slot, nil
}

func isNullResult(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	return len(trimmed) == 0 || strings.EqualFold(string(trimmed), "null")
}
