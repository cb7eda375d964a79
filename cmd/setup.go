package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const DEFAULT_METRICS_ADDR = ":2112"

func mustConnectStorage() storage.IStorage {
	s, err := storage.NewStorageConnector(&config.Cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect storage")
	}
	return s
}

func mustInitializeRPC() rpc.IRPCClient {
	client, err := rpc.Initialize()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize RPC")
	}
	return client
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// startMetricsServer serves /metrics until ctx is done. It is a no-op when
// metrics are disabled.
func startMetricsServer(ctx context.Context) {
	if !config.Cfg.Metrics.Enabled {
		return
	}
	addr := config.Cfg.Metrics.Addr
	if addr == "" {
		addr = DEFAULT_METRICS_ADDR
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	log.Info().Str("addr", addr).Msg("Starting Metrics Server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

func exitOnError(err error, msg string) {
	if err != nil {
		log.Error().Err(err).Msg(msg)
		os.Exit(1)
	}
}
