package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/klauspost/compress/gzip"
)

type SlotStatus string

const (
	SlotStatusOK      SlotStatus = "ok"
	SlotStatusSkipped SlotStatus = "skipped"
	SlotStatusError   SlotStatus = "error"
)

// RawBlock is the envelope stored for every slot of a raw batch. Block is
// only present when Status is ok.
type RawBlock struct {
	Slot        uint64          `json:"slot"`
	Status      SlotStatus      `json:"status"`
	Code        int             `json:"code"`
	Message     string          `json:"message,omitempty"`
	Attempts    int             `json:"attempts"`
	CollectedAt int64           `json:"collected_at"`
	Block       json.RawMessage `json:"block,omitempty"`
}

type RawBatch struct {
	BatchID
	CreatedAt int64      `json:"created_at"`
	Blocks    []RawBlock `json:"blocks"`
}

// Gaps returns the slots of the batch that failed after retries.
func (b *RawBatch) Gaps() []uint64 {
	var gaps []uint64
	for _, blk := range b.Blocks {
		if blk.Status == SlotStatusError {
			gaps = append(gaps, blk.Slot)
		}
	}
	return gaps
}

func EncodeRawBatch(batch *RawBatch) ([]byte, error) {
	sort.Slice(batch.Blocks, func(i, j int) bool {
		return batch.Blocks[i].Slot < batch.Blocks[j].Slot
	})

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(batch); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to encode raw batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress raw batch: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeRawBatch(data []byte) (*RawBatch, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()

	var batch RawBatch
	if err := json.NewDecoder(zr).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode raw batch: %w", err)
	}
	return &batch, nil
}
