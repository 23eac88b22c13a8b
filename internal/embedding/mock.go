package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Dimensions matches the narrative_chunks.embedding column.
const Dimensions = 1536

// MockClient returns deterministic unit vectors derived from the text.
type MockClient struct {
	Err error
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, Dimensions)
	var norm float64
	for i := range v {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		x := float64(seed%2000)/1000 - 1
		v[i] = float32(x)
		norm += x * x
	}
	if norm == 0 {
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}
