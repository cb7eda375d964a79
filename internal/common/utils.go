package common

import "sort"

func SliceToChunks[T any](values []T, chunkSize int) [][]T {
	if chunkSize >= len(values) || chunkSize <= 0 {
		return [][]T{values}
	}
	var chunks [][]T
	for i := 0; i < len(values); i += chunkSize {
		end := i + chunkSize
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}

func SortSlotRanges(ranges []SlotRange) {
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].First == ranges[j].First {
			return ranges[i].Last < ranges[j].Last
		}
		return ranges[i].First < ranges[j].First
	})
}

func Ptr[T any](v T) *T {
	return &v
}
