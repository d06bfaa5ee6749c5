package face

import "sync/atomic"

// MockModel is a scriptable Model for extractor tests.
type MockModel struct {
	LoadFunc  func() error
	InferFunc func(input []float32) ([]float32, error)
	CloseFunc func() error

	LoadCalls  int32
	InferCalls int32
}

func (m *MockModel) Load() error {
	atomic.AddInt32(&m.LoadCalls, 1)
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return nil
}

func (m *MockModel) Infer(input []float32) ([]float32, error) {
	atomic.AddInt32(&m.InferCalls, 1)
	if m.InferFunc != nil {
		return m.InferFunc(input)
	}
	return make([]float32, EmbeddingDim), nil
}

func (m *MockModel) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
