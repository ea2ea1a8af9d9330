package source

import "context"

// Mock is a mock Adapter for testing.
type Mock struct {
	SourceID    string
	ProposeFunc func(ctx context.Context, req Request) (*Response, error)
}

// ID implements Adapter.
func (m *Mock) ID() string {
	if m.SourceID == "" {
		return "mock"
	}
	return m.SourceID
}

// Propose implements Adapter.
func (m *Mock) Propose(ctx context.Context, req Request) (*Response, error) {
	if m.ProposeFunc != nil {
		return m.ProposeFunc(ctx, req)
	}
	return &Response{Content: "mock proposal for " + req.RequestID}, nil
}

// Fixed returns a mock source that always proposes the given content with
// the given confidence.
func Fixed(id, content string, confidence float64) *Mock {
	return &Mock{
		SourceID: id,
		ProposeFunc: func(ctx context.Context, req Request) (*Response, error) {
			c := confidence
			return &Response{Content: content, Confidence: &c}, nil
		},
	}
}
