// Package face provides the face embedding pipeline: the embedding type,
// numeric comparison of embeddings, and extraction of embeddings from
// detected face regions via an opaque embedding model.
package face

import (
	"errors"
	"image"
)

// EmbeddingDim is the length of every embedding vector produced by the
// pipeline.
const EmbeddingDim = 192

// InputSize is the side length of the square model input.
const InputSize = 112

// Embedding is a fixed-length feature vector summarizing a face.
// It is immutable once produced.
type Embedding []float32

// Detection is the result of an external face detector for one face:
// a pixel-coordinate bounding box plus head rotation angles in degrees.
// Pitch is positive looking down, yaw positive turning right, both as
// reported by the sensor (mirroring is handled by the enrollment gate).
type Detection struct {
	Box        image.Rectangle
	Pitch      float64
	Yaw        float64
	Confidence float64
}

// ErrDecode is returned when the source image cannot be decoded.
var ErrDecode = errors.New("image decode failed")

// ErrModelUnavailable is returned when the embedding model could not be
// loaded. The next extraction attempt retries the load.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// ErrBadOutput is returned when the model produces a vector of an
// unexpected shape.
var ErrBadOutput = errors.New("unexpected embedding model output")
