package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"tracklet/internal/config"
	"tracklet/internal/pkg/geoip"
)

type scheduledJob struct {
	name     string
	interval time.Duration
	run      func() error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	retentionJob *RetentionJob
	geoLiteJob   *GeoLiteReloadJob

	jobs    []scheduledJob
	tickers []*time.Ticker
	wg      sync.WaitGroup
}

// NewScheduler wires the retention job and, when geolite is non-nil, the GeoLite reload job.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config, geolite *geoip.GeoLiteResolver) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		enabled:      true,
		retentionJob: NewRetentionJob(dbManager, logger, cfg.VisitRetentionDays),
	}

	if s.retentionJob.Enabled() {
		s.jobs = append(s.jobs, scheduledJob{
			name:     "visit_retention",
			interval: time.Duration(cfg.JobIntervalSeconds) * time.Second,
			run: func() error {
				_, err := s.retentionJob.Run()
				return err
			},
		})
	}

	if geolite != nil {
		s.geoLiteJob = NewGeoLiteReloadJob(geolite, logger)
		s.jobs = append(s.jobs, scheduledJob{
			name:     "geolite_reload",
			interval: time.Duration(cfg.GeoDBCheckIntervalMn) * time.Minute,
			run: func() error {
				_, err := s.geoLiteJob.Run()
				return err
			},
		})
	}

	return s
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.isRunning = true
	for _, job := range s.jobs {
		s.startJob(job)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) startJob(job scheduledJob) {
	if job.interval <= 0 {
		s.logger.Warn("Skipping job with non-positive interval", slog.String("job", job.name))
		return
	}

	s.logger.Info("Starting job", slog.String("job", job.name), slog.Duration("interval", job.interval))
	ticker := time.NewTicker(job.interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.executeJobSafely(job.name, job.run)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(job.name, job.run)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", job.name))
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	for _, ticker := range s.tickers {
		ticker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// JobNames lists the jobs this scheduler will run.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		names = append(names, job.name)
	}
	return names
}
