// Package capture drives the periodic frame pipeline: pull a frame, run
// detection, gate on quality, extract an embedding, and hand the result to
// the enrollment session or the recognition matcher. One pipeline runs at
// a time; busy ticks are dropped, not queued.
package capture

import (
	"sync"

	"github.com/presensia/facegate/pkg/face"
)

// State is the mutable session state shared between the loop and its
// owner. Keeping it an explicit object makes the controller testable
// without a UI or camera attached.
type State struct {
	mu sync.Mutex

	processing   bool
	inBackground bool
	stopped      bool

	// Transient per-frame results, cleared whenever a tick fails.
	detectedFaces []face.Detection
	poseCorrect   bool
}

// NewState returns a fresh session state.
func NewState() *State {
	return &State{}
}

// beginProcessing acquires the reentrancy guard. It returns false when a
// previous frame is still being processed, in which case the caller must
// drop the tick entirely.
func (s *State) beginProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing || s.stopped || s.inBackground {
		return false
	}
	s.processing = true
	return true
}

func (s *State) endProcessing() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

// Stop marks the session stopped. In-flight work may complete but its
// results are discarded.
func (s *State) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Stopped reports whether the session has been stopped.
func (s *State) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// SetBackground records whether the host application is backgrounded.
func (s *State) SetBackground(background bool) {
	s.mu.Lock()
	s.inBackground = background
	s.mu.Unlock()
}

// InBackground reports whether the host application is backgrounded.
func (s *State) InBackground() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inBackground
}

// setFaces records the faces found in the latest frame.
func (s *State) setFaces(faces []face.Detection, poseCorrect bool) {
	s.mu.Lock()
	s.detectedFaces = faces
	s.poseCorrect = poseCorrect
	s.mu.Unlock()
}

// resetTransient clears the per-frame results after a failed tick.
func (s *State) resetTransient() {
	s.mu.Lock()
	s.detectedFaces = nil
	s.poseCorrect = false
	s.mu.Unlock()
}

// DetectedFaces returns the faces found in the latest processed frame.
func (s *State) DetectedFaces() []face.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	faces := make([]face.Detection, len(s.detectedFaces))
	copy(faces, s.detectedFaces)
	return faces
}

// PoseCorrect reports whether the latest frame matched the expected pose.
func (s *State) PoseCorrect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poseCorrect
}
