package llm

import (
	"context"
	"sync"
)

// MockClient scripts model responses for tests. Responses are consumed
// in order; once exhausted, the last entry repeats. A nil error with an
// empty response list yields ErrNoContent.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Calls     []Request
	next      int
}

// ModelID identifies the mock for audit records.
func (m *MockClient) ModelID() string { return "mock" }

// Complete returns the next scripted response.
func (m *MockClient) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	i := m.next
	m.next++

	if i < len(m.Errs) && m.Errs[i] != nil {
		return "", m.Errs[i]
	}
	if len(m.Responses) == 0 {
		return "", ErrNoContent
	}
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}
