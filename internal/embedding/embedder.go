// Package embedding provides image feature extraction via ONNX Runtime.
package embedding

import (
	"context"
	"image"
)

// Embedder extracts a fixed-dimension feature vector from a decoded image.
// Implementations must always return exactly Dimensions() values.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
	Dimensions() int
	Close() error
}
