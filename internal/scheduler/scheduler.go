// Package scheduler runs the factor pipeline on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/service"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("pipeline run already in progress")

// PipelineRunner executes one pipeline run
type PipelineRunner interface {
	Run(ctx context.Context, mode string) (*service.PipelineResult, error)
}

// RunStatus describes the outcome of the last finished run
type RunStatus struct {
	Mode       string        `json:"mode"`
	RunID      string        `json:"run_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// Scheduler manages scheduled pipeline runs. At most one run is active at a time.
type Scheduler struct {
	cron            *cron.Cron
	runner          PipelineRunner
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	running         atomic.Bool
	last            *RunStatus
	runTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(runner PipelineRunner, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		runner:          runner,
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		runTimeout:      4 * time.Hour,
		gracefulTimeout: 30 * time.Second,
	}
}

// SchedulePipeline runs mode on the cron expression
func (s *Scheduler) SchedulePipeline(cronExpression, mode string) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		if _, err := s.RunNow(ctx, mode); errors.Is(err, ErrRunInProgress) {
			s.logger.WithField("mode", mode).Warn("Skipping scheduled run, previous run still active")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"cron": cronExpression,
		"mode": mode,
	}).Info("Scheduled pipeline job")

	return entryID, nil
}

// RunNow executes mode immediately unless a run is already active
func (s *Scheduler) RunNow(ctx context.Context, mode string) (*service.PipelineResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	status := &RunStatus{Mode: mode, StartedAt: time.Now().UTC()}
	result, err := s.runner.Run(ctx, mode)
	status.FinishedAt = time.Now().UTC()
	status.Duration = status.FinishedAt.Sub(status.StartedAt)
	status.Err = err
	if result != nil {
		status.RunID = result.RunID.String()
	}

	s.mu.Lock()
	s.last = status
	s.mu.Unlock()

	entry := s.logger.WithFields(logrus.Fields{
		"mode":     mode,
		"run_id":   status.RunID,
		"duration": status.Duration.String(),
	})
	if err != nil {
		entry.WithError(err).Error("Pipeline run failed")
	} else {
		entry.Info("Pipeline run completed")
	}
	return result, err
}

// InProgress reports whether a run is active
func (s *Scheduler) InProgress() bool {
	return s.running.Load()
}

// LastRun returns the status of the last finished run
func (s *Scheduler) LastRun() (RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunStatus{}, false
	}
	return *s.last, true
}

// LastRunOutcome reports whether any run has finished and the error of the last one
func (s *Scheduler) LastRunOutcome() (bool, error) {
	status, ok := s.LastRun()
	return ok, status.Err
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for an active run to finish, up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("timed out waiting for active run after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(jobID cron.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}

	s.cron.Remove(jobID)
	for i, id := range s.jobIDs {
		if id == jobID {
			s.jobIDs = append(s.jobIDs[:i], s.jobIDs[i+1:]...)
			break
		}
	}
	s.logger.WithField("job_id", jobID).Info("Removed job")

	return nil
}
