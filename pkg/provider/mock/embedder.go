package mock

import (
	"context"
	"crypto/md5"
)

// DefaultDimensions is the vector length used when none is configured.
const DefaultDimensions = 384

// HashEmbedder derives embeddings from the MD5 digest of the text.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of length dims.
// A non-positive dims selects DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Name returns "mock".
func (e *HashEmbedder) Name() string { return "mock" }

// Dimensions returns the configured vector length.
func (e *HashEmbedder) Dimensions() int { return e.dims }

// Embed returns the hash-derived vector for text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return HashVector(text, e.dims), nil
}

// HashVector computes the digest-derived vector of length dims.
//
// Each pair of digest bytes yields v = (b[i]+b[i+1])/255 and contributes
// the triple [v, -v, v/2]. The resulting 24 seed values are repeated until
// dims entries exist; dims below 24 truncates the seed.
func HashVector(text string, dims int) []float32 {
	sum := md5.Sum([]byte(text))

	seed := make([]float32, 0, 24)
	for i := 0; i+1 < len(sum); i += 2 {
		v := (float32(sum[i]) + float32(sum[i+1])) / 255
		seed = append(seed, v, -v, v*0.5)
	}

	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = seed[i%len(seed)]
	}
	return vec
}
