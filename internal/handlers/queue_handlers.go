package handlers

import (
	"net/http"

	"github.com/JeroniMan/solana-indexer/api"
	"github.com/JeroniMan/solana-indexer/internal/parser"
	"github.com/JeroniMan/solana-indexer/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type QueueModel struct {
	RawFiles       int `json:"raw_files"`
	ProcessedFiles int `json:"processed_files"`
}

// @Summary Stage backlog
// @Description Number of files waiting for the parser and for the validator
// @Tags status
// @Produce json
// @Security BasicAuth
// @Success 200 {object} QueueModel
// @Failure 401 {object} api.Error
// @Failure 500 {object} api.Error
// @Router /queue [get]
func GetQueue(c *gin.Context) {
	s, err := getStorage()
	if err != nil {
		api.InternalErrorHandler(c)
		return
	}

	raw, err := parser.NewParser(s).Pending(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error listing parser backlog")
		api.InternalErrorHandler(c)
		return
	}
	processed, err := validator.NewValidator(s).Pending(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error listing validator backlog")
		api.InternalErrorHandler(c)
		return
	}

	c.JSON(http.StatusOK, QueueModel{RawFiles: len(raw), ProcessedFiles: len(processed)})
}
