package server

import "sync"

// PauseRegistry is an in-memory pause switchboard satisfying the engine's
// PauseView. Toggled through the admin API.
type PauseRegistry struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseRegistry constructs an empty registry with every module running.
func NewPauseRegistry() *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]bool)}
}

// IsPaused reports whether the named module is paused.
func (p *PauseRegistry) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// SetPaused flips the pause switch for the named module.
func (p *PauseRegistry) SetPaused(module string, paused bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = paused
}
