package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_Completeness(t *testing.T) {
	for n := 0; n <= 23; n++ {
		for _, b := range []int{1, 2, 5, 7, 10, 100} {
			items := make([]int, n)
			for i := range items {
				items[i] = i
			}

			batches := Chunk(items, b)

			wantBatches := (n + b - 1) / b
			assert.Len(t, batches, wantBatches, "n=%d b=%d", n, b)

			var flat []int
			for i, batch := range batches {
				assert.NotEmpty(t, batch)
				if i < len(batches)-1 {
					assert.Len(t, batch, b)
				} else {
					assert.LessOrEqual(t, len(batch), b)
				}
				flat = append(flat, batch...)
			}
			if n == 0 {
				assert.Empty(t, flat)
			} else {
				assert.Equal(t, items, flat)
			}
		}
	}
}

func TestChunk_EdgeCases(t *testing.T) {
	assert.Equal(t, [][]string{}, Chunk([]string(nil), 500))
	assert.Equal(t, [][]string{{"a", "b"}}, Chunk([]string{"a", "b"}, 0))
	assert.Equal(t, [][]string{{"a"}, {"b"}}, Chunk([]string{"a", "b"}, 1))
}

func TestChunk_BatchesDoNotAlias(t *testing.T) {
	items := []int{1, 2, 3, 4}
	batches := Chunk(items, 2)
	batches[0] = append(batches[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
}

func TestBatchSizes(t *testing.T) {
	assert.Equal(t, 500, SendBatchSize)
	assert.Equal(t, 100, ValidationBatchSize)
}
