package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docrag/internal/logger"
)

// Job is a named task run at a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration

	// Run returns the number of items it processed.
	Run func(ctx context.Context) (int, error)
}

// JobResult records one execution of a job.
type JobResult struct {
	Job            string
	StartedAt      time.Time
	EndedAt        time.Time
	ItemsProcessed int
	Err            error
}

type jobState struct {
	job     Job
	nextRun time.Time
	running bool
}

// Scheduler runs background jobs. A job never overlaps with itself: a run
// that comes due while the previous one is still going is skipped.
type Scheduler struct {
	tick     time.Duration
	onResult func(JobResult)

	mu      sync.Mutex
	jobs    []*jobState
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler that checks for due jobs every tick.
func NewScheduler(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{tick: tick}
}

// OnResult registers a callback invoked after every job run.
func (s *Scheduler) OnResult(fn func(JobResult)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// Add registers a job whose first run is after firstDelay.
func (s *Scheduler) Add(job Job, firstDelay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &jobState{job: job, nextRun: time.Now().Add(firstDelay)})
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.jobs {
		if st.running || now.Before(st.nextRun) {
			continue
		}
		st.running = true
		s.wg.Add(1)
		go s.execute(ctx, st)
	}
}

func (s *Scheduler) execute(ctx context.Context, st *jobState) {
	defer s.wg.Done()

	result := JobResult{Job: st.job.Name, StartedAt: time.Now()}
	result.ItemsProcessed, result.Err = st.job.Run(ctx)
	result.EndedAt = time.Now()

	if result.Err != nil {
		logger.Event("error", "job.failed", "job", st.job.Name, "error", logger.Mask(result.Err.Error()))
	} else {
		logger.Event("info", "job.done", "job", st.job.Name, "items", result.ItemsProcessed,
			"elapsed_ms", result.EndedAt.Sub(result.StartedAt).Milliseconds())
	}

	s.mu.Lock()
	st.running = false
	st.nextRun = result.EndedAt.Add(st.job.Interval)
	cb := s.onResult
	s.mu.Unlock()

	if cb != nil {
		cb(result)
	}
}
