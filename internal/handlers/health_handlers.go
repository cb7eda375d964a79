package handlers

import (
	"net/http"

	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type HealthModel struct {
	Status string `json:"status"`
}

// @Summary Health check
// @Description Reports whether the checkpoint store is reachable
// @Tags status
// @Produce json
// @Success 200 {object} HealthModel
// @Failure 503 {object} HealthModel
// @Router /health [get]
func GetHealth(c *gin.Context) {
	s, err := getStorage()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthModel{Status: "storage unavailable"})
		return
	}
	if _, err := s.Checkpoints.ReadCheckpoint(c.Request.Context(), common.StageCollector, "0"); err != nil {
		log.Error().Err(err).Msg("Health check failed to read checkpoint store")
		c.JSON(http.StatusServiceUnavailable, HealthModel{Status: "checkpoint store unavailable"})
		return
	}
	c.JSON(http.StatusOK, HealthModel{Status: "ok"})
}
