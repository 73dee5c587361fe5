// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/probe"
)

// -- Probe Mock --

// MockProbe mocks probe.Probe. Subscribe and Bind keep the registered callbacks so
// tests can drive lifecycle events and bridge messages.
type MockProbe struct {
	mock.Mock

	mutex       sync.Mutex
	subscribers []func(probe.Event)
	bindings    map[string]probe.BindingHandler
}

var _ probe.Probe = (*MockProbe)(nil)

func NewMockProbe() *MockProbe {
	return &MockProbe{bindings: make(map[string]probe.BindingHandler)}
}

func (m *MockProbe) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockProbe) Evaluate(ctx context.Context, fn string) ([]byte, error) {
	args := m.Called(ctx, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockProbe) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Subscribe records fn without going through the mock expectations.
func (m *MockProbe) Subscribe(fn func(probe.Event)) func() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	idx := len(m.subscribers)
	m.subscribers = append(m.subscribers, fn)
	return func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		m.subscribers[idx] = nil
	}
}

// Emit delivers ev synchronously to every live subscriber.
func (m *MockProbe) Emit(ev probe.Event) {
	m.mutex.Lock()
	subs := append(([]func(probe.Event))(nil), m.subscribers...)
	m.mutex.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

// Subscribers counts the live subscriptions.
func (m *MockProbe) Subscribers() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for _, fn := range m.subscribers {
		if fn != nil {
			n++
		}
	}
	return n
}

func (m *MockProbe) Bind(ctx context.Context, name string, h probe.BindingHandler) error {
	args := m.Called(ctx, name, h)
	if args.Error(0) == nil {
		m.mutex.Lock()
		m.bindings[name] = h
		m.mutex.Unlock()
	}
	return args.Error(0)
}

// Post invokes the handler bound under name, reporting whether one exists.
func (m *MockProbe) Post(name, payload string) bool {
	m.mutex.Lock()
	h, ok := m.bindings[name]
	m.mutex.Unlock()
	if ok {
		h(payload)
	}
	return ok
}

func (m *MockProbe) GoBack(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProbe) GoForward(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProbe) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProbe) History(ctx context.Context) (bool, bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *MockProbe) Close() error {
	return m.Called().Error(0)
}

// -- Store Mock --

// MockStore mocks the engine's profile and selection store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadProfile(ctx context.Context) (schemas.UserProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return schemas.UserProfile{}, args.Error(1)
	}
	return args.Get(0).(schemas.UserProfile), args.Error(1)
}

func (m *MockStore) SaveSelections(ctx context.Context, url string, regions []schemas.FormRegion) error {
	return m.Called(ctx, url, regions).Error(0)
}

func (m *MockStore) LoadSelections(ctx context.Context, url string) ([]schemas.FormRegion, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.FormRegion), args.Error(1)
}
