package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JeroniMan/solana-indexer/api"
	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/collector"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) (*gin.Engine, storage.IStorage) {
	gin.SetMode(gin.TestMode)
	checkpoints, err := storage.NewMemoryCheckpointStore(&config.MemoryConfig{MaxItems: 100})
	require.NoError(t, err)
	s := storage.IStorage{Objects: storage.NewMemoryObjectStore(), Checkpoints: checkpoints}
	UseStorage(s)

	router := gin.New()
	RegisterRoutes(router)
	return router, s
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func putRaw(t *testing.T, s storage.IStorage, id common.BatchID) {
	data, err := common.EncodeRawBatch(&common.RawBatch{BatchID: id})
	require.NoError(t, err)
	require.NoError(t, s.Objects.Put(context.Background(), common.RawBatchKey(id), data))
}

func TestGetHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetCheckpoints_Paged(t *testing.T) {
	router, s := setupTestRouter(t)
	for i, worker := range []string{"a", "b", "c"} {
		require.NoError(t, s.Checkpoints.WriteCheckpoint(context.Background(), common.Checkpoint{
			Stage:     common.StageParser,
			WorkerID:  worker,
			Slot:      uint64(100 + i),
			Status:    common.CheckpointStatusOK,
			UpdatedAt: time.Now(),
		}))
	}

	w := get(router, "/checkpoints/parser?limit=2&offset=1")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Meta api.Meta            `json:"meta"`
		Data []common.Checkpoint `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 3, response.Meta.TotalItems)
	assert.Equal(t, "parser", response.Meta.Stage)
	require.Len(t, response.Data, 2)
	assert.Equal(t, "b", response.Data[0].WorkerID)
	assert.Equal(t, "c", response.Data[1].WorkerID)
}

func TestGetCheckpoints_UnknownStage(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := get(router, "/checkpoints/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(router, "/checkpoints/parser?limit=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGaps(t *testing.T) {
	router, s := setupTestRouter(t)
	putRaw(t, s, common.BatchID{Shard: 0, Seq: 0, FirstSlot: 10, LastSlot: 19})
	putRaw(t, s, common.BatchID{Shard: 0, Seq: 1, FirstSlot: 30, LastSlot: 39})

	w := get(router, "/gaps?from=10")
	require.Equal(t, http.StatusOK, w.Code)

	var report collector.GapReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, common.SlotRange{First: 10, Last: 39}, report.Range)
	assert.Equal(t, []common.SlotRange{{First: 20, Last: 29}}, report.MissingRanges)
	assert.Equal(t, 2, report.RawFiles)

	w = get(router, "/gaps?from=50&to=40")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetQueue(t *testing.T) {
	router, s := setupTestRouter(t)
	putRaw(t, s, common.BatchID{Shard: 0, Seq: 0, FirstSlot: 10, LastSlot: 19})
	putRaw(t, s, common.BatchID{Shard: 1, Seq: 0, FirstSlot: 20, LastSlot: 29})
	require.NoError(t, s.Checkpoints.WriteCheckpoint(context.Background(), common.Checkpoint{
		Stage:     common.StageParser,
		WorkerID:  "slots_000_00000000_000000000010_000000000019.json.gz",
		Slot:      19,
		Status:    common.CheckpointStatusOK,
		UpdatedAt: time.Now(),
	}))

	w := get(router, "/queue")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"raw_files":1,"processed_files":0}`, w.Body.String())
}
