package common

import (
	"fmt"
	"path"
	"time"
)

const blockDateLayout = "2006-01-02"

// PartitionKey is the (epoch, block_date[, block_hour]) triple of a row.
// Hour is -1 when hour bucketing is disabled.
type PartitionKey struct {
	Epoch     uint64
	BlockDate string
	BlockHour int
}

func NewPartitionKey(slot uint64, blockTime int64, slotsPerEpoch uint64, byHour bool) PartitionKey {
	t := time.Unix(blockTime, 0).UTC()
	key := PartitionKey{
		Epoch:     Epoch(slot, slotsPerEpoch),
		BlockDate: t.Format(blockDateLayout),
		BlockHour: -1,
	}
	if byHour {
		key.BlockHour = t.Hour()
	}
	return key
}

func ParseBlockDate(value string) (time.Time, error) {
	t, err := time.Parse(blockDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid block date %q: %w", value, err)
	}
	return t, nil
}

func (k PartitionKey) Dir(entity Entity) string {
	dir := fmt.Sprintf("%s/epoch=%d/block_date=%s", entity, k.Epoch, k.BlockDate)
	if k.BlockHour >= 0 {
		dir += fmt.Sprintf("/block_hour=%02d", k.BlockHour)
	}
	return dir
}

// FileKey names the partition output after the source file, so processing the
// same source again lands on the same object.
func (k PartitionKey) FileKey(entity Entity, sourceKey string) string {
	return k.Dir(entity) + "/" + path.Base(sourceKey)
}

func (k PartitionKey) Less(o PartitionKey) bool {
	if k.Epoch != o.Epoch {
		return k.Epoch < o.Epoch
	}
	if k.BlockDate != o.BlockDate {
		return k.BlockDate < o.BlockDate
	}
	return k.BlockHour < o.BlockHour
}

// PartitionFile describes one finalized output file.
type PartitionFile struct {
	Entity     Entity    `json:"entity"`
	Epoch      uint64    `json:"epoch"`
	BlockDate  string    `json:"block_date"`
	BlockHour  int       `json:"block_hour"`
	Key        string    `json:"key"`
	SourceKey  string    `json:"source_key"`
	RowCount   int       `json:"row_count"`
	MinSlot    uint64    `json:"min_slot"`
	MaxSlot    uint64    `json:"max_slot"`
	FinalizeAt time.Time `json:"finalized_at"`
}
