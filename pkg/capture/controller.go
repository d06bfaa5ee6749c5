package capture

import (
	"context"
	"os"
	"time"

	"github.com/presensia/facegate/pkg/enroll"
	"github.com/presensia/facegate/pkg/face"
	"github.com/presensia/facegate/pkg/logging"
	"github.com/presensia/facegate/pkg/quality"
	"github.com/presensia/facegate/pkg/store"
)

// DefaultInterval is the cadence of the capture loop.
const DefaultInterval = 500 * time.Millisecond

// FrameSource delivers one decodable still image per request, written to a
// temporary file the caller removes after processing.
type FrameSource interface {
	Open() error
	Capture(ctx context.Context) (string, error)
	Close() error
}

// Detector finds faces in an image file. It is an external collaborator;
// implementations live outside this package.
type Detector interface {
	Detect(path string) ([]face.Detection, error)
}

// Match is the result of one recognition tick.
type Match struct {
	Name       string
	Similarity float64
	Known      bool
}

// Config holds capture loop settings.
type Config struct {
	Interval            time.Duration
	SimilarityThreshold float64
}

// DefaultCaptureConfig returns the standard loop settings.
func DefaultCaptureConfig() Config {
	return Config{
		Interval:            DefaultInterval,
		SimilarityThreshold: face.DefaultSimilarityThreshold,
	}
}

// Controller owns the periodic capture loop for one session, in either
// enrollment or recognition mode.
type Controller struct {
	cfg       Config
	state     *State
	source    FrameSource
	detector  Detector
	assessor  *quality.Assessor
	extractor *face.Extractor

	// Enrollment mode.
	session   *enroll.Session
	onOutcome func(enroll.Outcome)

	// Recognition mode.
	faces   *store.Store
	onMatch func(Match)
}

// NewEnrollmentController creates a controller that feeds captured frames
// into an enrollment session. onOutcome may be nil.
func NewEnrollmentController(cfg Config, state *State, source FrameSource, detector Detector,
	assessor *quality.Assessor, extractor *face.Extractor,
	session *enroll.Session, onOutcome func(enroll.Outcome)) *Controller {
	return newController(cfg, state, source, detector, assessor, extractor, session, onOutcome, nil, nil)
}

// NewRecognitionController creates a controller that matches captured
// frames against the registered identities. onMatch may be nil.
func NewRecognitionController(cfg Config, state *State, source FrameSource, detector Detector,
	assessor *quality.Assessor, extractor *face.Extractor,
	faces *store.Store, onMatch func(Match)) *Controller {
	return newController(cfg, state, source, detector, assessor, extractor, nil, nil, faces, onMatch)
}

func newController(cfg Config, state *State, source FrameSource, detector Detector,
	assessor *quality.Assessor, extractor *face.Extractor,
	session *enroll.Session, onOutcome func(enroll.Outcome),
	faces *store.Store, onMatch func(Match)) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = face.DefaultSimilarityThreshold
	}
	if state == nil {
		state = NewState()
	}
	return &Controller{
		cfg:       cfg,
		state:     state,
		source:    source,
		detector:  detector,
		assessor:  assessor,
		extractor: extractor,
		session:   session,
		onOutcome: onOutcome,
		faces:     faces,
		onMatch:   onMatch,
	}
}

// State returns the controller's session state.
func (c *Controller) State() *State { return c.state }

// Run executes the capture loop until the context is cancelled or the
// state is stopped. Per-tick errors never terminate the loop.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.state.Stopped() {
				return
			}
			c.Tick(ctx)
		}
	}
}

// EnterBackground stops frame acquisition and releases the camera.
func (c *Controller) EnterBackground() {
	c.state.SetBackground(true)
	if err := c.source.Close(); err != nil {
		logging.Component("capture").WithError(err).Warn("failed to release frame source")
	}
}

// EnterForeground reacquires the camera from scratch and resumes ticking.
func (c *Controller) EnterForeground() error {
	if err := c.source.Open(); err != nil {
		return err
	}
	c.state.SetBackground(false)
	return nil
}

// Tick processes one frame. Busy, stopped, and backgrounded states drop
// the tick entirely. The captured temp file is removed on every exit path.
func (c *Controller) Tick(ctx context.Context) {
	if !c.state.beginProcessing() {
		logging.Component("capture").Debug("tick dropped, pipeline busy or inactive")
		return
	}
	defer c.state.endProcessing()

	path, err := c.source.Capture(ctx)
	if path != "" {
		defer os.Remove(path)
	}
	if err != nil {
		c.state.resetTransient()
		logging.Component("capture").WithError(err).Debug("frame capture failed")
		return
	}

	detections, err := c.detector.Detect(path)
	if err != nil || len(detections) == 0 {
		c.state.resetTransient()
		if err != nil {
			logging.Component("capture").WithError(err).Debug("face detection failed")
		}
		return
	}

	det := detections[0]
	q := c.assessor.AssessFile(path)

	if c.state.Stopped() {
		return
	}

	if c.session != nil {
		c.enrollTick(path, det, q)
	} else {
		c.recognizeTick(path, det, q)
	}
}

// enrollTick feeds one frame into the enrollment session. The embedding is
// only extracted once the quality gate passed; the session still sees
// rejected frames so it can produce feedback.
func (c *Controller) enrollTick(path string, det face.Detection, q quality.Result) {
	var emb face.Embedding
	if q.OK() {
		var err error
		emb, err = c.extractor.ExtractFile(path, det.Box)
		if err != nil {
			c.state.resetTransient()
			logging.Component("capture").WithError(err).Debug("embedding extraction failed")
			return
		}
	}

	if c.state.Stopped() {
		return
	}

	outcome := c.session.Capture(det, q, emb)
	c.state.setFaces([]face.Detection{det}, outcome.Accepted)
	if c.onOutcome != nil {
		c.onOutcome(outcome)
	}
}

// recognizeTick matches one frame against every registered identity and
// reports the best match.
func (c *Controller) recognizeTick(path string, det face.Detection, q quality.Result) {
	if !q.OK() {
		c.state.setFaces([]face.Detection{det}, false)
		return
	}

	emb, err := c.extractor.ExtractFile(path, det.Box)
	if err != nil {
		c.state.resetTransient()
		logging.Component("capture").WithError(err).Debug("embedding extraction failed")
		return
	}

	identities, err := c.faces.List()
	if err != nil {
		c.state.resetTransient()
		logging.Component("capture").WithError(err).Warn("failed to list identities")
		return
	}

	match := Match{}
	for _, id := range identities {
		if sim := face.BestSimilarity(emb, id.Embeddings); sim > match.Similarity {
			match.Name = id.Name
			match.Similarity = sim
		}
	}
	match.Known = match.Similarity >= c.cfg.SimilarityThreshold

	if c.state.Stopped() {
		return
	}

	c.state.setFaces([]face.Detection{det}, match.Known)
	if c.onMatch != nil {
		c.onMatch(match)
	}
}
