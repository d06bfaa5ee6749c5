// Package detect wraps the OpenCV YuNet face detector and derives head
// pose angles from its facial landmarks. It satisfies the capture loop's
// Detector contract.
package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/presensia/facegate/pkg/face"
	"github.com/presensia/facegate/pkg/logging"
)

// Config holds YuNet detector settings.
type Config struct {
	ModelPath      string
	InputWidth     int
	InputHeight    int
	ScoreThreshold float32
}

// DefaultConfig returns the standard detector settings.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:      modelPath,
		InputWidth:     320,
		InputHeight:    320,
		ScoreThreshold: 0.7,
	}
}

// YuNetDetector detects faces with gocv's FaceDetectorYN. Inference is
// serialized; the underlying detector is not safe for concurrent use.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	cfg      Config
	mu       sync.Mutex
}

// NewYuNet creates a YuNet detector from an ONNX model file.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("detector model not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		cfg.ScoreThreshold,
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	logging.Component("detect").Infof("loaded face detector: %s", cfg.ModelPath)
	return &YuNetDetector{detector: detector, cfg: cfg}, nil
}

// Detect finds faces in the image file at path and returns their bounding
// boxes with estimated head pose angles.
func (d *YuNetDetector) Detect(path string) ([]face.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("failed to decode %s", path)
	}

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(img, &faces)

	// YuNet rows have 15 columns: box x, y, w, h; five landmark x,y
	// pairs (right eye, left eye, nose tip, right and left mouth
	// corner); and the face score.
	detections := make([]face.Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))

		landmarks := make([]Point, 5)
		for l := 0; l < 5; l++ {
			landmarks[l] = Point{
				X: float64(faces.GetFloatAt(r, 4+l*2)),
				Y: float64(faces.GetFloatAt(r, 5+l*2)),
			}
		}

		pitch, yaw := EstimatePose(landmarks)
		detections = append(detections, face.Detection{
			Box:        image.Rect(x, y, x+w, y+h),
			Pitch:      pitch,
			Yaw:        yaw,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return detections, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
