package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rentals/backend/internal/infrastructure/logger"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Job names of the ledger sweeps
const (
	JobLateFees    = "late-fees"
	JobAutoRefunds = "auto-refunds"
	JobOverdue     = "overdue"
)

// RunFunc performs one sweep and reports how many records it changed
type RunFunc func(ctx context.Context) (int, error)

// Job is a periodic sweep
type Job struct {
	Name     string
	Interval time.Duration
	Run      RunFunc
}

// JobLock grants a named lease to one holder at a time, across instances
// when backed by redis
type JobLock interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// RunResult describes a finished run
type RunResult struct {
	Job        string        `json:"job"`
	Processed  int           `json:"processed"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// JobState is the observable state of a registered job
type JobState struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Running  bool          `json:"running"`
	LastRun  *RunResult    `json:"last_run,omitempty"`
}

// Config holds scheduler configuration
type Config struct {
	Enabled    bool
	JobTimeout time.Duration
}

type jobEntry struct {
	job     Job
	running bool
	lastRun *RunResult
}

// Scheduler runs registered jobs on their intervals. A job never runs twice
// at once: an in-process flag guards this instance and the JobLock guards
// the others.
type Scheduler struct {
	config  Config
	lock    JobLock
	metrics *telemetry.SettlementMetrics
	logger  *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*jobEntry
	order     []string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// New creates a scheduler. lock may be nil for single-instance use.
func New(cfg Config, lock JobLock, metrics *telemetry.SettlementMetrics, log *zap.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		config:  cfg,
		lock:    lock,
		metrics: metrics,
		logger:  log.Named("scheduler"),
		jobs:    map[string]*jobEntry{},
	}
}

// Register adds a job. Jobs must be registered before Start. A zero
// interval registers a job that only runs on Trigger.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval < 0 {
		return fmt.Errorf("%w: job %q needs a name, a run function and a non-negative interval", ErrInvalidConfig, job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: job %q registered twice", ErrInvalidConfig, job.Name)
	}
	s.jobs[job.Name] = &jobEntry{job: job}
	s.order = append(s.order, job.Name)
	return nil
}

// Start launches one ticker loop per job. It is a no-op when disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled, jobs run only on manual trigger")
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, name := range s.order {
		entry := s.jobs[name]
		if entry.job.Interval == 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, entry.job)
	}
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.order)), zap.Duration("job_timeout", s.config.JobTimeout))
	return nil
}

// Stop cancels the loops and waits for in-flight runs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.run(ctx, job.Name); err != nil && !errors.Is(err, ErrJobAlreadyRunning) {
				s.logger.Error("Scheduled job failed", zap.String("job", job.Name), zap.Error(err))
			}
		}
	}
}

// Trigger runs name now and waits for it. It returns ErrJobAlreadyRunning
// instead of queueing behind an active run.
func (s *Scheduler) Trigger(ctx context.Context, name string) (*RunResult, error) {
	return s.run(ctx, name)
}

// Jobs returns the state of every registered job in registration order
func (s *Scheduler) Jobs() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]JobState, 0, len(s.order))
	for _, name := range s.order {
		e := s.jobs[name]
		state := JobState{Name: name, Interval: e.job.Interval, Running: e.running}
		if e.lastRun != nil {
			last := *e.lastRun
			state.LastRun = &last
		}
		states = append(states, state)
	}
	return states
}

func (s *Scheduler) run(ctx context.Context, name string) (*RunResult, error) {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return nil, ErrJobNotFound
	}
	if entry.running {
		s.mu.Unlock()
		return nil, ErrJobAlreadyRunning
	}
	entry.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		entry.running = false
		s.mu.Unlock()
	}()

	if s.lock != nil {
		release, acquired, err := s.lock.TryLock(ctx, name, s.config.JobTimeout)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrJobAlreadyRunning
		}
		defer func() {
			// the run context may be cancelled by now
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.logger.Warn("Failed to release job lock", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	result := s.execute(ctx, entry.job)

	s.mu.Lock()
	entry.lastRun = result
	s.mu.Unlock()

	if result.Error != "" {
		return result, fmt.Errorf("job %s: %s", name, result.Error)
	}
	return result, nil
}

func (s *Scheduler) execute(ctx context.Context, job Job) *RunResult {
	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	runCtx, log := logger.WithJob(runCtx, s.logger, job.Name)
	runCtx, span := telemetry.StartServiceSpan(runCtx, "scheduler", "run", telemetry.WithAttribute(telemetry.SpanAttrJob, job.Name))
	defer span.End()

	result := &RunResult{Job: job.Name, StartedAt: time.Now().UTC()}
	var err error
	telemetry.WithProfilingLabels(runCtx, map[string]string{"job": job.Name}, func(c context.Context) {
		result.Processed, err = job.Run(c)
	})
	result.FinishedAt = time.Now().UTC()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	s.metrics.RecordJobRun(runCtx, job.Name, result.Duration, err)

	if err != nil {
		telemetry.RecordError(span, err)
		result.Error = err.Error()
		log.Error("Job run failed", zap.Int("processed", result.Processed), zap.Duration("duration", result.Duration), zap.Error(err))
		return result
	}
	telemetry.SetAttributes(span, "processed", result.Processed)
	log.Info("Job run finished", zap.Int("processed", result.Processed), zap.Duration("duration", result.Duration))
	return result
}
