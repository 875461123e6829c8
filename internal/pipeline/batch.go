package pipeline

import "academy-notifications/internal/push"

const (
	// SendBatchSize is the gateway fan-out limit for delivery.
	SendBatchSize = push.MaxMulticastTokens
	// ValidationBatchSize bounds each dry-run call of the token sweep.
	ValidationBatchSize = 100
)

// Chunk splits items into consecutive batches of at most size elements,
// preserving order. Empty input yields no batches; a non-positive size
// yields a single batch.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return [][]T{}
	}
	if size <= 0 {
		return [][]T{items}
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end:end])
	}
	return batches
}
