package common

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
)

const (
	RawPrefix           = "raw/"
	ProcessedPrefix     = "processed/"
	UnpartitionedPrefix = "unpartitioned/"
	QuarantinePrefix    = "quarantine/"

	rawExtension      = ".json.gz"
	columnarExtension = ".parquet"
)

var ErrInvalidFileName = errors.New("invalid file name")

var (
	rawFilenameRegex      = regexp.MustCompile(`slots_(\d+)_(\d+)_(\d+)_(\d+)\.json\.gz$`)
	columnarFilenameRegex = regexp.MustCompile(`(blocks|transactions|rewards)_(\d+)_(\d+)_(\d+)_(\d+)\.parquet$`)
)

// BatchID identifies one collector batch. Every file derived from the batch
// carries it in its name so provenance survives each stage.
type BatchID struct {
	Shard     int    `json:"shard"`
	Seq       uint64 `json:"seq"`
	FirstSlot uint64 `json:"first_slot"`
	LastSlot  uint64 `json:"last_slot"`
}

// String is zero padded so that lexical order equals (shard, seq) order.
func (b BatchID) String() string {
	return fmt.Sprintf("%03d_%08d_%012d_%012d", b.Shard, b.Seq, b.FirstSlot, b.LastSlot)
}

func (b BatchID) Range() SlotRange {
	return SlotRange{First: b.FirstSlot, Last: b.LastSlot}
}

func (b BatchID) Less(o BatchID) bool {
	if b.Shard != o.Shard {
		return b.Shard < o.Shard
	}
	if b.Seq != o.Seq {
		return b.Seq < o.Seq
	}
	return b.FirstSlot < o.FirstSlot
}

func RawBatchKey(id BatchID) string {
	return RawPrefix + "slots_" + id.String() + rawExtension
}

func ColumnarKey(entity Entity, id BatchID) string {
	return ProcessedPrefix + string(entity) + "_" + id.String() + columnarExtension
}

func QuarantineKey(rawKey string) string {
	return QuarantinePrefix + path.Base(rawKey) + ".json"
}

func UnpartitionedKey(entity Entity, sourceKey string) string {
	return UnpartitionedPrefix + string(entity) + "/" + path.Base(sourceKey)
}

func ParseRawBatchKey(key string) (BatchID, error) {
	matches := rawFilenameRegex.FindStringSubmatch(path.Base(key))
	if len(matches) != 5 {
		return BatchID{}, fmt.Errorf("%w: %s", ErrInvalidFileName, key)
	}
	return batchIDFromMatches(key, matches[1:])
}

func ParseColumnarKey(key string) (Entity, BatchID, error) {
	matches := columnarFilenameRegex.FindStringSubmatch(path.Base(key))
	if len(matches) != 6 {
		return "", BatchID{}, fmt.Errorf("%w: %s", ErrInvalidFileName, key)
	}
	id, err := batchIDFromMatches(key, matches[2:])
	if err != nil {
		return "", BatchID{}, err
	}
	return Entity(matches[1]), id, nil
}

func batchIDFromMatches(key string, parts []string) (BatchID, error) {
	values := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return BatchID{}, fmt.Errorf("%w: %s: %v", ErrInvalidFileName, key, err)
		}
		values[i] = v
	}
	id := BatchID{Shard: int(values[0]), Seq: values[1], FirstSlot: values[2], LastSlot: values[3]}
	if id.LastSlot < id.FirstSlot {
		return BatchID{}, fmt.Errorf("%w: %s: last slot before first slot", ErrInvalidFileName, key)
	}
	return id, nil
}
