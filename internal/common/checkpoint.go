package common

import (
	"encoding/json"
	"time"
)

const (
	StageCollector     = "collector"
	StageCollectorGaps = "collector_gaps"
	StageParser        = "parser"
	StageValidator     = "validator"
)

type CheckpointStatus string

const (
	CheckpointStatusOK            CheckpointStatus = "ok"
	CheckpointStatusQuarantined   CheckpointStatus = "quarantined"
	CheckpointStatusUnpartitioned CheckpointStatus = "unpartitioned"
	CheckpointStatusFailed        CheckpointStatus = "failed"
)

// Checkpoint is the durable marker of the last completed unit of one worker
// of one stage. Collector checkpoints carry a slot; parser and validator
// checkpoints are keyed by the consumed file.
type Checkpoint struct {
	Stage      string           `json:"stage"`
	WorkerID   string           `json:"worker_id"`
	Slot       uint64           `json:"slot,omitempty"`
	File       string           `json:"file,omitempty"`
	Status     CheckpointStatus `json:"status"`
	BatchCount uint64           `json:"batch_count,omitempty"`
	Message    string           `json:"message,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func CheckpointToString(c Checkpoint) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func StringToCheckpoint(s string) (Checkpoint, error) {
	var c Checkpoint
	err := json.Unmarshal([]byte(s), &c)
	return c, err
}
