package model

import (
	"context"
	"sync"
)

// Mock is a test ChatModel with configurable scripted responses, error
// injection, and call-history tracking. Workflow and executor tests use
// it to exercise the model-failover loop without hitting a real
// provider.
type Mock struct {
	// Responses are returned in order; once exhausted, the last response
	// repeats.
	Responses []ChatOut

	// Err, if set, is returned instead of a response.
	Err error

	Calls []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockCall records one invocation of Chat.
type MockCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements ChatModel.
func (m *Mock) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Messages: messages, Tools: tools})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears call history, for reuse across subtests.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount reports how many times Chat has been invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// FailingMock always fails with Err, for exercising a failover chain
// where every candidate is unhealthy.
type FailingMock struct{ Err error }

func (m *FailingMock) Chat(ctx context.Context, _ []Message, _ []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	return ChatOut{}, m.Err
}
