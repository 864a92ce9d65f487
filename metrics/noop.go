package metrics

import (
	"sync"
	"time"
)

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

// MemoryRecorder counts events in memory. Useful in tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{counts: make(map[string]int)}
}

func (m *MemoryRecorder) IncCounter(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name+"/"+labels["outcome"]]++
}

func (m *MemoryRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

// Count returns how often name was recorded with outcome.
func (m *MemoryRecorder) Count(name, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name+"/"+outcome]
}
