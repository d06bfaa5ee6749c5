// Package camera provides camera access and frame capture. Frames are
// pulled one at a time and written to temporary JPEG files for the capture
// pipeline, which removes them after processing.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/presensia/facegate/pkg/logging"
)

// ErrCameraNotFound is returned when the camera device cannot be opened.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when capturing from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// Webcam captures still frames from a video device. It implements the
// capture loop's FrameSource contract.
type Webcam struct {
	device string
	width  int
	height int

	mu  sync.Mutex
	cap *gocv.VideoCapture
}

// NewWebcam creates a Webcam for the given device path and resolution.
// The device is not opened until Open is called.
func NewWebcam(device string, width, height int) *Webcam {
	return &Webcam{device: device, width: width, height: height}
}

// Open acquires the camera device.
func (w *Webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap != nil {
		return nil
	}

	cap, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return fmt.Errorf("%w: %s (%v)", ErrCameraNotFound, w.device, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(w.width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(w.height))

	w.cap = cap
	logging.Component("camera").Infof("opened %s at %dx%d", w.device, w.width, w.height)
	return nil
}

// Capture reads one frame and writes it to a temporary JPEG file, whose
// path is returned. The caller removes the file after processing.
func (w *Webcam) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return "", ErrCameraNotOpen
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := w.cap.Read(&img); !ok || img.Empty() {
		return "", ErrNoFrame
	}

	file, err := os.CreateTemp("", "facegate-frame-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create frame file: %w", err)
	}
	path := file.Name()
	file.Close()

	if ok := gocv.IMWrite(path, img); !ok {
		os.Remove(path)
		return "", fmt.Errorf("failed to encode frame to %s", path)
	}
	return path, nil
}

// Close releases the camera device. Open may be called again afterwards.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.cap = nil
	logging.Component("camera").Debugf("released %s", w.device)
	return err
}
