package embedding

import (
	"context"
	"hash/fnv"
	"image"
	"math"
)

// MockEmbedder is a deterministic embedder for tests and model-less startup.
// It returns a fixed-dimension vector derived from a pixel hash so that the
// same image always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 576
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on a hash of the image pixels.
func (e *MockEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	h := hashImage(img)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h)*float64(i+1))*0.1 + 0.01)
	}
	// Normalize to unit length for cosine similarity
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb, nil
}

// hashImage hashes a coarse sample of the image pixels. Sampling a fixed
// 32x32 grid keeps the hash independent of image dimensions in a way that
// still distinguishes visually different images.
func hashImage(img image.Image) uint32 {
	h := fnv.New32a()
	b := img.Bounds()
	w, ht := b.Dx(), b.Dy()
	if w == 0 || ht == 0 {
		return h.Sum32()
	}
	const grid = 32
	buf := make([]byte, 3)
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			x := b.Min.X + gx*w/grid
			y := b.Min.Y + gy*ht/grid
			r, g, bl, _ := img.At(x, y).RGBA()
			buf[0] = byte(r >> 8)
			buf[1] = byte(g >> 8)
			buf[2] = byte(bl >> 8)
			_, _ = h.Write(buf)
		}
	}
	return h.Sum32()
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
