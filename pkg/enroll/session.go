package enroll

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/presensia/facegate/pkg/face"
	"github.com/presensia/facegate/pkg/logging"
	"github.com/presensia/facegate/pkg/quality"
)

const (
	// RequiredFramesPerPosition is the capture count at which a position
	// is complete and the session auto-advances.
	RequiredFramesPerPosition = 3

	// MinFramesPerPosition is the capture count below which a position
	// may not be skipped.
	MinFramesPerPosition = 2
)

// ErrFinalized is returned when a finalized session is used again.
var ErrFinalized = errors.New("enrollment session already finalized")

// ErrSequenceComplete is returned when advancing past the last position.
var ErrSequenceComplete = errors.New("all positions captured")

// InsufficientError is returned by Finalize when too few frames were
// captured. The session stays open so capturing can resume.
type InsufficientError struct {
	Captured int
	Required int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient frames captured: %d of %d required", e.Captured, e.Required)
}

// Config holds per-session enrollment settings.
type Config struct {
	RequiredFramesPerPosition int
	MinFramesPerPosition      int

	// Mirrored flips pitch and yaw signs before the pose check. Front
	// sensors show a mirrored preview, so the user's physical motion is
	// reversed relative to the reported angles.
	Mirrored bool
}

// DefaultConfig returns the standard enrollment settings for a front
// camera.
func DefaultConfig() Config {
	return Config{
		RequiredFramesPerPosition: RequiredFramesPerPosition,
		MinFramesPerPosition:      MinFramesPerPosition,
		Mirrored:                  true,
	}
}

// Outcome describes what a Capture call did with one frame.
type Outcome struct {
	Accepted bool
	Advanced bool
	Position Position
	Captured int
	Feedback string
}

// Saver persists a finalized enrollment. *store.Store satisfies it.
type Saver interface {
	Save(name string, embeddings []face.Embedding) error
}

// Session is one enrollment run for one person. Buckets are append-only
// per position and only ever grow until Finalize.
type Session struct {
	id    string
	name  string
	cfg   Config
	saver Saver

	mu        sync.Mutex
	current   int // index into Order; NumPositions when the sequence is done
	buckets   [NumPositions][]face.Embedding
	finalized bool
}

// NewSession starts an enrollment session for name.
func NewSession(name string, saver Saver, cfg Config) *Session {
	if cfg.RequiredFramesPerPosition <= 0 {
		cfg.RequiredFramesPerPosition = RequiredFramesPerPosition
	}
	if cfg.MinFramesPerPosition <= 0 {
		cfg.MinFramesPerPosition = MinFramesPerPosition
	}

	s := &Session{
		id:    uuid.NewString(),
		name:  name,
		cfg:   cfg,
		saver: saver,
	}
	logging.WithFields(logging.Fields{
		"session": s.id,
		"name":    name,
	}).Info("enrollment session started")
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the identity being enrolled.
func (s *Session) Name() string { return s.name }

// Position returns the position currently being captured. When the
// sequence is complete it returns the last position.
func (s *Session) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= NumPositions {
		return Order[NumPositions-1]
	}
	return Order[s.current]
}

// Captured returns the number of accepted frames for a position.
func (s *Session) Captured(p Position) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets[p])
}

// TotalCaptured returns the number of accepted frames across all
// positions.
func (s *Session) TotalCaptured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

// SequenceComplete reports whether every position has been visited.
func (s *Session) SequenceComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current >= NumPositions
}

// Finalized reports whether the session saved successfully.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

func (s *Session) totalLocked() int {
	total := 0
	for i := range s.buckets {
		total += len(s.buckets[i])
	}
	return total
}

// Capture offers one detected frame to the session. The frame is accepted
// into the current position's bucket only when the head pose falls inside
// the position window and the quality gate passed; otherwise it is
// discarded with user-facing feedback. Reaching the required count
// advances to the next position automatically.
func (s *Session) Capture(det face.Detection, q quality.Result, emb face.Embedding) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return Outcome{Feedback: "Enrollment already completed"}
	}
	if s.current >= NumPositions {
		return Outcome{Position: Order[NumPositions-1], Feedback: "All positions captured, ready to finish"}
	}

	pos := Order[s.current]
	outcome := Outcome{Position: pos, Captured: len(s.buckets[pos])}

	if len(s.buckets[pos]) >= s.cfg.RequiredFramesPerPosition {
		outcome.Feedback = "Position complete"
		return outcome
	}

	pitch, yaw := det.Pitch, det.Yaw
	if s.cfg.Mirrored {
		pitch, yaw = -pitch, -yaw
	}
	if !pos.PoseMatches(pitch, yaw) {
		outcome.Feedback = pos.Instruction()
		return outcome
	}

	if !q.OK() {
		outcome.Feedback = qualityFeedback(q.Issue)
		return outcome
	}

	s.buckets[pos] = append(s.buckets[pos], emb)
	outcome.Accepted = true
	outcome.Captured = len(s.buckets[pos])
	outcome.Feedback = fmt.Sprintf("Captured %d of %d", outcome.Captured, s.cfg.RequiredFramesPerPosition)

	if outcome.Captured >= s.cfg.RequiredFramesPerPosition {
		s.current++
		outcome.Advanced = true
		if s.current < NumPositions {
			outcome.Feedback = Order[s.current].Instruction()
		} else {
			outcome.Feedback = "All positions captured, ready to finish"
		}
	}

	logging.WithFields(logging.Fields{
		"session":  s.id,
		"position": pos.String(),
		"captured": len(s.buckets[pos]),
		"accepted": outcome.Accepted,
	}).Debug("enrollment frame processed")
	return outcome
}

// Skip advances to the next position manually. It is rejected while the
// current position has fewer than the minimum captures.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return ErrFinalized
	}
	if s.current >= NumPositions {
		return ErrSequenceComplete
	}

	pos := Order[s.current]
	if len(s.buckets[pos]) < s.cfg.MinFramesPerPosition {
		return fmt.Errorf("position %s has %d frame(s), need at least %d to skip",
			pos, len(s.buckets[pos]), s.cfg.MinFramesPerPosition)
	}

	s.current++
	return nil
}

// Finalize concatenates all position buckets and saves the identity,
// replacing any prior identity of the same name. With fewer than
// NumPositions*MinFramesPerPosition total frames it returns an
// InsufficientError and leaves the session open for more capturing.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return ErrFinalized
	}

	required := NumPositions * s.cfg.MinFramesPerPosition
	total := s.totalLocked()
	if total < required {
		return &InsufficientError{Captured: total, Required: required}
	}

	embeddings := make([]face.Embedding, 0, total)
	for _, pos := range Order {
		embeddings = append(embeddings, s.buckets[pos]...)
	}

	if err := s.saver.Save(s.name, embeddings); err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}

	s.finalized = true
	logging.WithFields(logging.Fields{
		"session": s.id,
		"name":    s.name,
		"frames":  total,
	}).Info("enrollment finalized")
	return nil
}

func qualityFeedback(issue quality.Issue) string {
	switch issue {
	case quality.IssueTooDark:
		return "Image too dark, find better lighting"
	case quality.IssueTooBright:
		return "Image too bright, reduce lighting"
	case quality.IssueBlurry:
		return "Image blurry, hold the device steady"
	}
	return "Image rejected"
}
