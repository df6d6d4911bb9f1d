package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/database"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// Scheduled job names
const (
	JobExpireCoupons    = "expire_coupons"
	JobCompleteBookings = "complete_bookings"
)

const jobTimeout = 5 * time.Minute

// JobRun is the outcome of the last run of a job
type JobRun struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Affected  int64     `json:"affected"`
	Error     string    `json:"error,omitempty"`
}

// CronService manages scheduled background jobs
type CronService struct {
	cron    *cron.Cron
	db      database.DB
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]cron.EntryID
	lastRun map[string]JobRun
}

// NewCronService creates a new CronService
func NewCronService(db database.DB) *CronService {
	return &CronService{
		cron:    cron.New(cron.WithSeconds()),
		db:      db,
		now:     time.Now,
		entries: make(map[string]cron.EntryID),
		lastRun: make(map[string]JobRun),
	}
}

// Start schedules every job and starts the scheduler
func (s *CronService) Start() error {
	logrus.Info("Starting cron service...")

	// second minute hour day month weekday
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{JobExpireCoupons, "0 0 1 * * *", func() { s.runJob(JobExpireCoupons, s.expireCoupons) }},
		{JobCompleteBookings, "0 0 2 * * *", func() { s.runJob(JobCompleteBookings, s.completeBookings) }},
	}

	for _, job := range jobs {
		id, err := s.cron.AddFunc(job.spec, job.run)
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.mu.Lock()
		s.entries[job.name] = id
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{"job": job.name, "schedule": job.spec}).Info("Scheduled cron job")
	}

	s.cron.Start()
	logrus.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	logrus.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("Cron service stopped")
}

// RunNow runs a job immediately
func (s *CronService) RunNow(name string) (JobRun, error) {
	switch name {
	case JobExpireCoupons:
		return s.runJob(name, s.expireCoupons), nil
	case JobCompleteBookings:
		return s.runJob(name, s.completeBookings), nil
	}
	return JobRun{}, fmt.Errorf("unknown job %q", name)
}

func (s *CronService) runJob(name string, fn func(ctx context.Context) (int64, error)) JobRun {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := s.now()
	affected, err := fn(ctx)
	run := JobRun{
		StartedAt: start,
		Duration:  time.Since(start).String(),
		Affected:  affected,
	}

	entry := logrus.WithFields(logrus.Fields{"job": name, "affected": affected, "duration": run.Duration})
	if err != nil {
		run.Error = err.Error()
		entry.WithError(err).Error("Cron job failed")
	} else {
		entry.Info("Cron job finished")
	}

	s.mu.Lock()
	s.lastRun[name] = run
	s.mu.Unlock()
	return run
}

func (s *CronService) expireCoupons(ctx context.Context) (int64, error) {
	return database.NewCouponRepository(s.db).DeactivateExpired(ctx, s.now())
}

func (s *CronService) completeBookings(ctx context.Context) (int64, error) {
	today := booking.DateRange{Start: s.now()}.FirstDay()
	return database.NewBookingRepository(s.db).CompleteFinished(ctx, today)
}

// GetJobStatus returns the schedule and last run of every job
func (s *CronService) GetJobStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]map[string]interface{}, 0, len(s.entries))
	for _, name := range []string{JobExpireCoupons, JobCompleteBookings} {
		job := map[string]interface{}{"name": name}
		if id, ok := s.entries[name]; ok {
			entry := s.cron.Entry(id)
			job["nextRun"] = entry.Next
			job["prevRun"] = entry.Prev
		}
		if run, ok := s.lastRun[name]; ok {
			job["lastRun"] = run
		}
		jobs = append(jobs, job)
	}

	return map[string]interface{}{
		"running":  len(s.entries) > 0,
		"jobCount": len(s.entries),
		"jobs":     jobs,
	}
}
