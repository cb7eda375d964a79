package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonrpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newSolanaServer answers getSlot with 500 and getBlock according to blocks:
// a nil entry yields a null result, a missing entry yields error -32007.
func newSolanaServer(t *testing.T, blocks map[uint64]json.RawMessage) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case MethodGetSlot:
			resp["result"] = 500
		case MethodGetBlock:
			var slot uint64
			require.NoError(t, json.Unmarshal(req.Params[0], &slot))
			block, ok := blocks[slot]
			switch {
			case !ok:
				resp["error"] = map[string]interface{}{"code": CodeSlotSkipped, "message": "Slot was skipped"}
			case block == nil:
				resp["result"] = nil
			default:
				resp["result"] = block
			}
		default:
			resp["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClient_GetBlockAndSlot(t *testing.T) {
	server := newSolanaServer(t, map[uint64]json.RawMessage{
		100: json.RawMessage(`{"blockhash":"abc","parentSlot":99}`),
		101: nil,
	})
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "finalized", 5*time.Second)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	head, err := client.GetSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), head)

	block, err := client.GetBlock(ctx, 100)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blockhash":"abc","parentSlot":99}`, string(block))

	_, err = client.GetBlock(ctx, 101)
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = client.GetBlock(ctx, 102)
	require.Error(t, err)
	assert.Equal(t, ErrorKindNotFound, Classify(err))
	assert.Equal(t, CodeSlotSkipped, ErrorCode(err))
}
