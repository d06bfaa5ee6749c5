package quality

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func uniformImage(w, h int, gray uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return img
}

// checkerboard alternates two gray levels pixel by pixel, giving a strong
// Laplacian response at a mid-range brightness.
func checkerboard(w, h int, a, b uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := a
			if (x+y)%2 == 1 {
				v = b
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestAssess(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	tests := []struct {
		name      string
		img       image.Image
		wantIssue Issue
	}{
		{
			name:      "all black is too dark",
			img:       uniformImage(64, 64, 0),
			wantIssue: IssueTooDark,
		},
		{
			name:      "all white is too bright",
			img:       uniformImage(64, 64, 255),
			wantIssue: IssueTooBright,
		},
		{
			name:      "uniform mid-gray has no edges",
			img:       uniformImage(64, 64, 128),
			wantIssue: IssueBlurry,
		},
		{
			name:      "checkerboard is sharp",
			img:       checkerboard(64, 64, 100, 150),
			wantIssue: IssueNone,
		},
		{
			name:      "near-dark boundary stays dark",
			img:       uniformImage(64, 64, 49),
			wantIssue: IssueTooDark,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := assessor.Assess(tt.img)
			if result.Issue != tt.wantIssue {
				t.Errorf("Assess() issue = %s, want %s (brightness=%.1f sharpness=%.1f)",
					result.Issue, tt.wantIssue, result.Brightness, result.Sharpness)
			}
		})
	}
}

func TestAssessBrightnessSkipsSharpness(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	dark := assessor.Assess(uniformImage(32, 32, 10))
	if dark.Issue != IssueTooDark {
		t.Fatalf("issue = %s, want too_dark", dark.Issue)
	}
	if dark.Sharpness != 0 {
		t.Errorf("sharpness = %v, want 0 when brightness check fails", dark.Sharpness)
	}
	if dark.Brightness <= 0 || dark.Brightness >= 50 {
		t.Errorf("brightness = %v, want value in (0,50)", dark.Brightness)
	}
}

func TestAssessUniformGrayValues(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	result := assessor.Assess(uniformImage(32, 32, 128))
	if result.Sharpness != 0 {
		t.Errorf("sharpness of uniform image = %v, want 0", result.Sharpness)
	}
	if result.Brightness < 127 || result.Brightness > 129 {
		t.Errorf("brightness = %v, want about 128", result.Brightness)
	}
}

func TestAssessTinyImage(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	// A 2x2 image has no Laplacian interior; it must fail safe, not panic.
	result := assessor.Assess(uniformImage(2, 2, 128))
	if result.Issue != IssueBlurry {
		t.Errorf("issue = %s, want blurry for image with no interior", result.Issue)
	}
}

func TestAssessFile(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())
	dir := t.TempDir()

	path := filepath.Join(dir, "sharp.png")
	if err := imaging.Save(checkerboard(64, 64, 100, 150), path); err != nil {
		t.Fatal(err)
	}
	if result := assessor.AssessFile(path); result.Issue != IssueNone {
		t.Errorf("issue = %s, want none", result.Issue)
	}
}

func TestAssessFileFailSafe(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.jpg")},
		{name: "undecodable file", path: filepath.Join(dir, "garbage.jpg")},
	}
	if err := os.WriteFile(tests[1].path, []byte("not a jpeg"), 0600); err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := assessor.AssessFile(tt.path)
			if result.Issue != IssueBlurry {
				t.Errorf("issue = %s, want blurry", result.Issue)
			}
			if result.Brightness != 0 || result.Sharpness != 0 {
				t.Errorf("scores = (%v, %v), want (0, 0)", result.Brightness, result.Sharpness)
			}
			if result.OK() {
				t.Error("fail-safe result must never pass the gate")
			}
		})
	}
}
