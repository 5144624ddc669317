package services

import (
	"sync"
	"time"
)

// PerformanceTimer records named stage durations for one request.
type PerformanceTimer struct {
	mu     sync.Mutex
	start  time.Time
	stages map[string]time.Duration
	now    func() time.Time
}

// NewPerformanceTimer starts a timer.
func NewPerformanceTimer() *PerformanceTimer {
	return &PerformanceTimer{
		start:  time.Now(),
		stages: make(map[string]time.Duration),
		now:    time.Now,
	}
}

// Measure runs fn and adds its duration to the named stage.
func (t *PerformanceTimer) Measure(name string, fn func() error) error {
	begin := t.now()
	err := fn()
	elapsed := t.now().Sub(begin)

	t.mu.Lock()
	t.stages[name] += elapsed
	t.mu.Unlock()
	return err
}

// Record adds a duration measured elsewhere to the named stage.
func (t *PerformanceTimer) Record(name string, d time.Duration) {
	t.mu.Lock()
	t.stages[name] += d
	t.mu.Unlock()
}

// Get returns the stage duration in milliseconds, zero if never measured.
func (t *PerformanceTimer) Get(name string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages[name].Milliseconds()
}

// Total returns the time since the timer started in milliseconds.
func (t *PerformanceTimer) Total() int64 {
	return t.now().Sub(t.start).Milliseconds()
}
