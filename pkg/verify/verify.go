// Package verify holds the oracles that decide automatic task submissions.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnsupportedProvider = errors.New("verify: unsupported provider")
	ErrNotConnected        = errors.New("verify: account not connected")
)

// Request describes one submission to check.
type Request struct {
	UserID   uint
	TaskID   uint
	Provider string
	Target   string
	Evidence string
}

type Result struct {
	Approved bool   `json:"approved"`
	Details  string `json:"details"`
}

// Oracle answers whether a submission meets its task's condition.
// Implementations must honour ctx cancellation.
type Oracle interface {
	Verify(ctx context.Context, req Request) (*Result, error)
}

// Mux routes requests to the oracle registered for req.Provider.
type Mux struct {
	mu      sync.RWMutex
	oracles map[string]Oracle
}

func NewMux() *Mux {
	return &Mux{oracles: make(map[string]Oracle)}
}

func (m *Mux) Register(provider string, o Oracle) {
	m.mu.Lock()
	m.oracles[provider] = o
	m.mu.Unlock()
}

func (m *Mux) Verify(ctx context.Context, req Request) (*Result, error) {
	m.mu.RLock()
	o, ok := m.oracles[req.Provider]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, req.Provider)
	}
	return o.Verify(ctx, req)
}
