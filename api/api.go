package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_LIMIT = 100
	MAX_LIMIT     = 1000
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type QueryParams struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type Meta struct {
	Stage      string `json:"stage,omitempty"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	TotalItems int    `json:"total_items"`
}

type QueryResponse struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data,omitempty"`
}

func writeError(c *gin.Context, message string, code int) {
	c.JSON(code, Error{Code: code, Message: message})
}

var (
	BadRequestErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusBadRequest)
	}
	NotFoundErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusNotFound)
	}
	InternalErrorHandler = func(c *gin.Context) {
		writeError(c, "An unexpected error occurred.", http.StatusInternalServerError)
	}
	UnauthorizedErrorHandler = func(c *gin.Context, err error) {
		c.Header("WWW-Authenticate", `Basic realm="solana-indexer"`)
		writeError(c, err.Error(), http.StatusUnauthorized)
	}
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// ParseQueryParams decodes paging parameters. A missing limit becomes
// DEFAULT_LIMIT; limits above MAX_LIMIT are clamped.
func ParseQueryParams(r *http.Request) (QueryParams, error) {
	var params QueryParams
	if err := decoder.Decode(&params, r.URL.Query()); err != nil {
		log.Debug().Err(err).Msg("Error parsing query params")
		return QueryParams{}, fmt.Errorf("invalid query parameters: %w", err)
	}
	if params.Limit < 0 || params.Offset < 0 {
		return QueryParams{}, fmt.Errorf("limit and offset must not be negative")
	}
	if params.Limit == 0 {
		params.Limit = DEFAULT_LIMIT
	}
	if params.Limit > MAX_LIMIT {
		params.Limit = MAX_LIMIT
	}
	return params, nil
}

// Page returns the window of items selected by the params.
func Page[T any](items []T, params QueryParams) []T {
	if params.Offset >= len(items) {
		return []T{}
	}
	end := params.Offset + params.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[params.Offset:end]
}
