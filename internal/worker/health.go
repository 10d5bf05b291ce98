package worker

import (
	"sync"
	"time"
)

const (
	StatusHealthy = "healthy"
	StatusFailed  = "failed"
)

// Health is the tracked state of one worker. Failure details stay in the
// logs; the tracker exposes only the status.
type Health struct {
	Status    string    `json:"status"`
	LastCheck time.Time `json:"last_check"`
}

// HealthTracker records per-worker health. Safe for concurrent use.
type HealthTracker struct {
	mu      sync.RWMutex
	workers map[string]Health
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		workers: make(map[string]Health),
	}
}

func (h *HealthTracker) MarkHealthy(name string) {
	h.set(name, StatusHealthy)
}

func (h *HealthTracker) MarkFailed(name string) {
	h.set(name, StatusFailed)
}

func (h *HealthTracker) set(name, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.workers[name] = Health{
		Status:    status,
		LastCheck: time.Now(),
	}
}

// IsHealthy reports whether no tracked worker has failed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthyLocked()
}

func (h *HealthTracker) healthyLocked() bool {
	for _, w := range h.workers {
		if w.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// Status returns the overall summary plus per-worker detail, shaped for a
// health endpoint response.
func (h *HealthTracker) Status() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	workers := make(map[string]Health, len(h.workers))
	for name, w := range h.workers {
		workers[name] = w
	}

	status := StatusHealthy
	if !h.healthyLocked() {
		status = StatusFailed
	}

	return map[string]interface{}{
		"status":    status,
		"workers":   workers,
		"timestamp": time.Now(),
	}
}
