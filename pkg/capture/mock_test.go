package capture

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"github.com/presensia/facegate/pkg/face"
)

// mockSource writes a fresh frame file per capture. A nil frame simulates
// a source with nothing to deliver.
type mockSource struct {
	dir   string
	frame image.Image

	OpenFunc    func() error
	CaptureFunc func(ctx context.Context) (string, error)
	CloseFunc   func() error

	CaptureCalls int32
	OpenCalls    int32
	CloseCalls   int32

	lastPath string
}

func (m *mockSource) Open() error {
	atomic.AddInt32(&m.OpenCalls, 1)
	if m.OpenFunc != nil {
		return m.OpenFunc()
	}
	return nil
}

func (m *mockSource) Capture(ctx context.Context) (string, error) {
	atomic.AddInt32(&m.CaptureCalls, 1)
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx)
	}
	path := filepath.Join(m.dir, "frame.png")
	if err := imaging.Save(m.frame, path); err != nil {
		return "", err
	}
	m.lastPath = path
	return path, nil
}

func (m *mockSource) Close() error {
	atomic.AddInt32(&m.CloseCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

type mockDetector struct {
	DetectFunc  func(path string) ([]face.Detection, error)
	DetectCalls int32
}

func (m *mockDetector) Detect(path string) ([]face.Detection, error) {
	atomic.AddInt32(&m.DetectCalls, 1)
	if m.DetectFunc != nil {
		return m.DetectFunc(path)
	}
	return nil, nil
}

// stubModel returns a fixed embedding for every inference.
type stubModel struct {
	output []float32
}

func (m *stubModel) Load() error { return nil }

func (m *stubModel) Infer([]float32) ([]float32, error) {
	out := make([]float32, len(m.output))
	copy(out, m.output)
	return out, nil
}

func (m *stubModel) Close() error { return nil }

// sharpFrame is a checkerboard that passes both quality checks.
func sharpFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(100)
			if (x+y)%2 == 1 {
				v = 150
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// darkFrame fails the brightness gate.
func darkFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{A: 255})
		}
	}
	return img
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
