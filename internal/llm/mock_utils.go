package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests in this and dependent packages.
type MockProvider struct {
	ProviderName string
	Response     string
	Err          error
	// GenerateFunc overrides Response and Err when set.
	GenerateFunc func(ctx context.Context, system, user string, opts Options) (string, error)

	mu    sync.Mutex
	Calls []MockCall
}

type MockCall struct {
	System string
	User   string
	Opts   Options
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Generate(ctx context.Context, system, user string, opts Options) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{System: system, User: user, Opts: opts})
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, user, opts)
	}
	return m.Response, m.Err
}

// CallCount is safe to read while generations are in flight.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
