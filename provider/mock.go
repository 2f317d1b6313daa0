package provider

import (
	"context"
	"sync"
)

// MockProvider returns canned replies, for local runs and tests. Replies are
// served in order; after they run out Reply is returned.
type MockProvider struct {
	Reply   string
	Replies []string
	Err     error

	mu      sync.Mutex
	prompts []string
}

func (m *MockProvider) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) > 0 {
		r := m.Replies[0]
		m.Replies = m.Replies[1:]
		return r, nil
	}
	return m.Reply, nil
}

// Prompts returns every prompt received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
