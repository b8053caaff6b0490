package wire

import (
	"context"
	"sync"
)

// MockClient is an in-memory wire client for tests and local development.
// Sends succeed unless SendErrs scripts failures; events are injected with
// Emit.
type MockClient struct {
	mu         sync.Mutex
	eventFn    EventHandler
	resupplyFn ResupplyHandler

	connectCalls int
	logoutCalls  int
	repairCalls  []string
	sent         []SentMessage

	// SendErrs is consumed one error per Send call; nil entries mean success.
	SendErrs   []error
	ConnectErr error
}

type SentMessage struct {
	MessageID string
	Address   string
	Body      string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	return m.ConnectErr
}

func (m *MockClient) Disconnect() {}

func (m *MockClient) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	return nil
}

func (m *MockClient) Send(ctx context.Context, messageID, address, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if len(m.SendErrs) > 0 {
		err = m.SendErrs[0]
		m.SendErrs = m.SendErrs[1:]
	}
	if err != nil {
		return err
	}
	m.sent = append(m.sent, SentMessage{MessageID: messageID, Address: address, Body: body})
	return nil
}

func (m *MockClient) RepairSession(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairCalls = append(m.repairCalls, address)
	return nil
}

func (m *MockClient) SetEventHandler(h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventFn = h
}

func (m *MockClient) SetResupplyHandler(h ResupplyHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resupplyFn = h
}

// Emit pushes an event as if it came from the network.
func (m *MockClient) Emit(ev Event) {
	m.mu.Lock()
	fn := m.eventFn
	m.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// Resupply invokes the registered resupply handler.
func (m *MockClient) Resupply(messageID, address string) (string, bool) {
	m.mu.Lock()
	fn := m.resupplyFn
	m.mu.Unlock()
	if fn == nil {
		return "", false
	}
	return fn(messageID, address)
}

func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockClient) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *MockClient) LogoutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutCalls
}

func (m *MockClient) RepairCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.repairCalls))
	copy(out, m.repairCalls)
	return out
}
