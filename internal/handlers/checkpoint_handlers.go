package handlers

import (
	"fmt"
	"net/http"

	"github.com/JeroniMan/solana-indexer/api"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var knownStages = common.NewSet(
	common.StageCollector,
	common.StageCollectorGaps,
	common.StageParser,
	common.StageValidator,
)

// @Summary List checkpoints of a stage
// @Description Returns the checkpoints of one stage ordered by worker id
// @Tags status
// @Produce json
// @Security BasicAuth
// @Param stage path string true "Stage (collector, collector_gaps, parser, validator)"
// @Param limit query int false "Number of items per page" default(100)
// @Param offset query int false "Number of items to skip"
// @Success 200 {object} api.QueryResponse{data=[]common.Checkpoint}
// @Failure 400 {object} api.Error
// @Failure 401 {object} api.Error
// @Failure 404 {object} api.Error
// @Failure 500 {object} api.Error
// @Router /checkpoints/{stage} [get]
func GetCheckpoints(c *gin.Context) {
	stage := c.Param("stage")
	if !knownStages.Contains(stage) {
		api.NotFoundErrorHandler(c, fmt.Errorf("unknown stage %q", stage))
		return
	}

	params, err := api.ParseQueryParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	s, err := getStorage()
	if err != nil {
		api.InternalErrorHandler(c)
		return
	}

	checkpoints, err := s.Checkpoints.ListCheckpoints(c.Request.Context(), stage)
	if err != nil {
		log.Error().Err(err).Str("stage", stage).Msg("Error listing checkpoints")
		api.InternalErrorHandler(c)
		return
	}

	c.JSON(http.StatusOK, api.QueryResponse{
		Meta: api.Meta{
			Stage:      stage,
			Limit:      params.Limit,
			Offset:     params.Offset,
			TotalItems: len(checkpoints),
		},
		Data: api.Page(checkpoints, params),
	})
}
