package face

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/presensia/facegate/pkg/logging"
)

// DefaultCropPadding is the number of pixels added on each side of a face
// bounding box before cropping.
const DefaultCropPadding = 20

// Model is the opaque embedding network. Infer consumes a row-major
// [1,InputSize,InputSize,3] float tensor with channel values in [0,1] and
// produces a flat [1,EmbeddingDim] vector.
type Model interface {
	Load() error
	Infer(input []float32) ([]float32, error)
	Close() error
}

// Extractor turns a detected face region into an embedding. The model is
// loaded lazily on first use; concurrent callers share a single load, and
// a failed load is retried on the next call.
type Extractor struct {
	model   Model
	padding int

	mu     sync.Mutex
	loaded bool
}

// NewExtractor creates an Extractor around the given model. A negative
// padding falls back to DefaultCropPadding.
func NewExtractor(model Model, padding int) *Extractor {
	if padding < 0 {
		padding = DefaultCropPadding
	}
	return &Extractor{model: model, padding: padding}
}

// ensureLoaded loads the model exactly once. The mutex is held for the
// whole load so concurrent extractions wait for the in-flight load instead
// of starting their own.
func (e *Extractor) ensureLoaded() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	if err := e.model.Load(); err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	e.loaded = true
	logging.Component("extractor").Info("embedding model loaded")
	return nil
}

// Close releases the underlying model.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return e.model.Close()
}

// ExtractFile decodes the image at path and extracts an embedding for the
// given face bounding box. Decode failures are reported as ErrDecode.
func (e *Extractor) ExtractFile(path string, box image.Rectangle) (Embedding, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return e.Extract(img, box)
}

// Extract crops the padded face region, resizes it to the model input
// shape, normalizes it, and runs the model.
func (e *Extractor) Extract(img image.Image, box image.Rectangle) (Embedding, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	region := e.cropRegion(img.Bounds(), box)
	if region.Empty() {
		return nil, fmt.Errorf("face region %v is outside the image bounds %v", box, img.Bounds())
	}
	cropped := imaging.Crop(img, region)
	resized := imaging.Resize(cropped, InputSize, InputSize, imaging.Linear)

	output, err := e.model.Infer(toTensor(resized))
	if err != nil {
		return nil, fmt.Errorf("embedding inference failed: %w", err)
	}
	if len(output) != EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrBadOutput, len(output), EmbeddingDim)
	}

	embedding := make(Embedding, EmbeddingDim)
	copy(embedding, output)
	return embedding, nil
}

// cropRegion expands the bounding box by the configured padding and clamps
// it to the image bounds.
func (e *Extractor) cropRegion(bounds, box image.Rectangle) image.Rectangle {
	return image.Rect(
		max(bounds.Min.X, box.Min.X-e.padding),
		max(bounds.Min.Y, box.Min.Y-e.padding),
		min(bounds.Max.X, box.Max.X+e.padding),
		min(bounds.Max.Y, box.Max.Y+e.padding),
	)
}

// toTensor flattens the resized face into a [1,InputSize,InputSize,3]
// row-major tensor with each channel divided by 255.
func toTensor(img *image.NRGBA) []float32 {
	tensor := make([]float32, InputSize*InputSize*3)
	i := 0
	for y := 0; y < InputSize; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+InputSize*4]
		for x := 0; x < InputSize; x++ {
			tensor[i] = float32(row[x*4]) / 255.0
			tensor[i+1] = float32(row[x*4+1]) / 255.0
			tensor[i+2] = float32(row[x*4+2]) / 255.0
			i += 3
		}
	}
	return tensor
}
