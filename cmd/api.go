package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/handlers"
	"github.com/JeroniMan/solana-indexer/internal/middleware"

	// Import the generated Swagger docs
	"github.com/JeroniMan/solana-indexer/docs"
)

const DEFAULT_API_PORT = 3000

var (
	apiCmd = &cobra.Command{
		Use:   "api",
		Short: "Serve the read-only status API",
		Long:  "Serves checkpoints, the gap report and the stage backlog over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			RunApi(cmd, args)
		},
	}
)

func RunApi(cmd *cobra.Command, args []string) {
	ctx, stop := signalContext()
	defer stop()
	exitOnError(serveApi(ctx), "API server error")
}

// @title Solana Indexer Status
// @version v0.1.0
// @description Read-only status API for the Solana slot indexer pipeline
// @BasePath /
// @securityDefinitions.basic BasicAuth
func serveApi(ctx context.Context) error {
	docs.SwaggerInfo.Host = config.Cfg.API.Host

	if !config.Cfg.Log.Prettify {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			log.Error().Err(err).Msg("Failed to read Swagger documentation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provide Swagger documentation"})
			return
		}
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, doc)
	})

	handlers.RegisterRoutes(r)

	port := config.Cfg.API.Port
	if port == 0 {
		port = DEFAULT_API_PORT
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	log.Info().Int("port", port).Msg("Starting API server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
