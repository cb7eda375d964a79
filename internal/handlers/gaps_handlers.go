package handlers

import (
	"fmt"
	"net/http"

	"github.com/JeroniMan/solana-indexer/api"
	"github.com/JeroniMan/solana-indexer/internal/collector"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

type gapParams struct {
	From uint64 `schema:"from"`
	To   uint64 `schema:"to"`
}

var gapDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// @Summary Gap report
// @Description Lists failed slots and slot ranges missing from the raw archive
// @Tags status
// @Produce json
// @Security BasicAuth
// @Param from query int false "First slot of the report range"
// @Param to query int false "Last slot of the report range (defaults to the highest archived slot)"
// @Success 200 {object} collector.GapReport
// @Failure 400 {object} api.Error
// @Failure 401 {object} api.Error
// @Failure 500 {object} api.Error
// @Router /gaps [get]
func GetGaps(c *gin.Context) {
	var params gapParams
	if err := gapDecoder.Decode(&params, c.Request.URL.Query()); err != nil {
		api.BadRequestErrorHandler(c, fmt.Errorf("invalid query parameters: %w", err))
		return
	}
	if params.To != 0 && params.To < params.From {
		api.BadRequestErrorHandler(c, fmt.Errorf("to %d is before from %d", params.To, params.From))
		return
	}

	s, err := getStorage()
	if err != nil {
		api.InternalErrorHandler(c)
		return
	}

	report, err := collector.BuildGapReport(c.Request.Context(), s, common.SlotRange{First: params.From, Last: params.To})
	if err != nil {
		log.Error().Err(err).Msg("Error building gap report")
		api.InternalErrorHandler(c)
		return
	}
	c.JSON(http.StatusOK, report)
}
