// Package quality implements the per-frame image quality gate.
// A frame must be bright enough, not overexposed, and sharp enough before
// it is allowed into enrollment or recognition.
package quality

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/presensia/facegate/pkg/logging"
)

// Issue classifies why a frame failed the quality gate.
type Issue string

const (
	IssueNone      Issue = "none"
	IssueTooDark   Issue = "too_dark"
	IssueTooBright Issue = "too_bright"
	IssueBlurry    Issue = "blurry"
)

// Thresholds holds the quality gate limits.
type Thresholds struct {
	MinBrightness float64 // mean luminance below this is too dark
	MaxBrightness float64 // mean luminance above this is too bright
	MinSharpness  float64 // Laplacian variance below this is blurry
}

// DefaultThresholds returns the standard gate limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinBrightness: 50,
		MaxBrightness: 200,
		MinSharpness:  100,
	}
}

// Result is the outcome of a quality assessment. Issue is IssueNone only
// when every threshold is satisfied. Sharpness is 0 when the brightness
// check already failed.
type Result struct {
	Issue      Issue   `json:"issue"`
	Brightness float64 `json:"brightness"`
	Sharpness  float64 `json:"sharpness"`
}

// OK reports whether the frame passed the gate.
func (r Result) OK() bool { return r.Issue == IssueNone }

// Assessor evaluates frames against a fixed set of thresholds.
type Assessor struct {
	thresholds Thresholds
}

// NewAssessor creates an Assessor with the given thresholds.
func NewAssessor(t Thresholds) *Assessor {
	return &Assessor{thresholds: t}
}

// failSafe is returned whenever a frame cannot be evaluated. It never
// passes the gate.
func failSafe() Result {
	return Result{Issue: IssueBlurry, Brightness: 0, Sharpness: 0}
}

// AssessFile decodes the image at path and assesses it. Decode errors are
// absorbed and reported as a failing result; the caller always receives a
// concrete Result.
func (a *Assessor) AssessFile(path string) Result {
	img, err := imaging.Open(path)
	if err != nil {
		logging.Component("quality").WithError(err).Debugf("failed to decode %s", path)
		return failSafe()
	}
	return a.Assess(img)
}

// Assess computes mean perceived luminance and, when brightness is within
// range, the Laplacian variance of the grayscale image. Checks run in
// order: too dark, too bright, blurry.
func (a *Assessor) Assess(img image.Image) Result {
	gray, width, height := grayscale(img)
	if len(gray) == 0 {
		return failSafe()
	}

	var sum float64
	for _, v := range gray {
		sum += v
	}
	brightness := sum / float64(len(gray))

	if brightness < a.thresholds.MinBrightness {
		return Result{Issue: IssueTooDark, Brightness: brightness}
	}
	if brightness > a.thresholds.MaxBrightness {
		return Result{Issue: IssueTooBright, Brightness: brightness}
	}

	sharpness := laplacianVariance(gray, width, height)
	result := Result{Issue: IssueNone, Brightness: brightness, Sharpness: sharpness}
	if sharpness < a.thresholds.MinSharpness {
		result.Issue = IssueBlurry
	}
	return result
}

// grayscale converts the image to a row-major luminance buffer using the
// Rec. 601 weights 0.299R + 0.587G + 0.114B, in the range [0,255].
func grayscale(img image.Image) ([]float64, int, int) {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}

	gray := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		for x := 0; x < width; x++ {
			r := float64(row[x*4])
			g := float64(row[x*4+1])
			b := float64(row[x*4+2])
			gray[y*width+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	return gray, width, height
}

// laplacianVariance applies the 4-neighbour Laplacian kernel over interior
// pixels and returns the population variance of the response. The response
// map is one pixel smaller on each border, so images narrower than 3x3
// have no interior and score 0.
func laplacianVariance(gray []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}

	n := (width - 2) * (height - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := gray[y*width+x]
			v := 4*c - gray[(y-1)*width+x] - gray[(y+1)*width+x] -
				gray[y*width+x-1] - gray[y*width+x+1]
			responses = append(responses, v)
			sum += v
		}
	}

	mean := sum / float64(n)
	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}
