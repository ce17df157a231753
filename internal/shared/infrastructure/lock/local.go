package lock

import (
	"context"
	"sync"
)

// LocalManager guards keys within one process.
type LocalManager struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Manager = (*LocalManager)(nil)

// NewLocalManager creates an in-process lock manager.
func NewLocalManager() *LocalManager {
	return &LocalManager{held: make(map[string]struct{})}
}

func (m *LocalManager) TryAcquire(_ context.Context, key string) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return nil, ErrHeld
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
