package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a periodic maintenance task.
type Job func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"nextRun"`
	LastRun time.Time `json:"lastRun"`
}

// Scheduler runs named jobs on cron schedules. Descriptors such as
// "@daily" and "@every 1h" are accepted alongside five-field specs.
type Scheduler struct {
	cron       *cron.Cron
	jobTimeout time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a scheduler. Each run gets jobTimeout to finish.
func New(jobTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobTimeout: jobTimeout,
		logger:     logger,
		jobs:       make(map[string]cron.EntryID),
	}
}

// AddJob registers job under name. Registering a name twice replaces the
// earlier schedule.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, job); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.mu.Unlock()

	s.logger.Info("scheduled job added", "job", name, "schedule", schedule)
	return nil
}

// RemoveJob unregisters a job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("scheduled job removed", "job", name)
	}
}

// RunNow executes job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug("running job", "job", name)
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Info("job completed", "job", name, "duration", time.Since(start))
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// ListJobs returns the registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{
			Name:    name,
			NextRun: entry.Next,
			LastRun: entry.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
