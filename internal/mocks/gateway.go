package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/todo-api/internal/domain"
)

// Push records one PushTo call.
type Push struct {
	ConnectionID string
	Payload      []byte
}

// MockGateway is a scripted notification gateway. Connections without an
// entry in Results receive domain.Delivered().
type MockGateway struct {
	// Results maps a connection id to the result PushTo reports for it.
	Results map[string]domain.PushResult

	// PushToFn overrides Results when set.
	PushToFn func(ctx context.Context, connectionID string, payload []byte) domain.PushResult

	mu     sync.Mutex
	pushes []Push
}

// PushTo implements pipeline.Gateway.
func (m *MockGateway) PushTo(ctx context.Context, connectionID string, payload []byte) domain.PushResult {
	m.mu.Lock()
	m.pushes = append(m.pushes, Push{ConnectionID: connectionID, Payload: append([]byte(nil), payload...)})
	m.mu.Unlock()

	if m.PushToFn != nil {
		return m.PushToFn(ctx, connectionID, payload)
	}
	if result, ok := m.Results[connectionID]; ok {
		return result
	}
	return domain.Delivered()
}

// Pushes returns every recorded push.
func (m *MockGateway) Pushes() []Push {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Push(nil), m.pushes...)
}

// PushesTo returns the payloads pushed to one connection, in order.
func (m *MockGateway) PushesTo(connectionID string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var payloads [][]byte
	for _, p := range m.pushes {
		if p.ConnectionID == connectionID {
			payloads = append(payloads, p.Payload)
		}
	}
	return payloads
}
