package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForStage_TagsStageAndKeepsComponent(t *testing.T) {
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	}()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf).With().Str("component", "default").Logger()

	logger := ForStage("parser")
	logger.Info().Msg("Raw batch parsed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "parser", line["stage"])
	assert.Equal(t, "default", line["component"])
	assert.Equal(t, "Raw batch parsed", line["message"])
}
