package embedding

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Model input/output tensor names for the exported feature extractor.
const (
	onnxInputName  = "input"
	onnxOutputName = "output"
)

var ortInitOnce sync.Once

// ONNXEmbedder runs an ONNX image feature extractor (e.g. MobileNetV3-Small
// with its classifier head removed) and returns a Dimensions()-length vector
// per image. The ONNX Runtime session is not safe for concurrent Run calls,
// so Embed serializes on an internal mutex.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	dimensions int
	resizeSize int
	cropSize   int
	mu         sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. libraryPath optionally points
// to the onnxruntime shared library; empty uses the platform default. Returns
// an error if the runtime or model cannot be loaded, so callers can fall back
// to the mock embedder.
func NewONNXEmbedder(modelPath, libraryPath string, dimensions, resizeSize, cropSize int) (*ONNXEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var initErr error
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", initErr)
	}

	inputShape := ort.NewShape(1, 3, int64(cropSize), int64(cropSize))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputShape := ort.NewShape(1, int64(dimensions))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXEmbedder{
		session:    session,
		input:      input,
		output:     output,
		dimensions: dimensions,
		resizeSize: resizeSize,
		cropSize:   cropSize,
	}, nil
}

// Embed preprocesses img and runs the model, returning the raw (unnormalized)
// feature vector.
func (e *ONNXEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := preprocess(img, e.resizeSize, e.cropSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	copy(e.input.GetData(), data)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	out := make([]float32, e.dimensions)
	copy(out, e.output.GetData())
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		_ = e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return nil
}
