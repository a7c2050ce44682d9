package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SchedulerConfig holds the cron expressions of the refresh jobs. An
// empty expression disables that job.
type SchedulerConfig struct {
	TeamsRefresh    string
	ScheduleRefresh string
	OddsRefresh     string
	CacheWarm       string
	JobTimeout      time.Duration
}

// DefaultSchedulerConfig refreshes team lists and warms caches before
// the morning traffic, games hourly and odds every quarter hour.
var DefaultSchedulerConfig = SchedulerConfig{
	TeamsRefresh:    "0 6 * * *",
	ScheduleRefresh: "0 * * * *",
	OddsRefresh:     "*/15 * * * *",
	CacheWarm:       "30 5 * * *",
	JobTimeout:      5 * time.Minute,
}

// JobInfo is the externally visible state of one scheduled job.
type JobInfo struct {
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	Enabled    bool          `json:"enabled"`
	Status     string        `json:"status"`
	LastRun    time.Time     `json:"last_run,omitempty"`
	NextRun    time.Time     `json:"next_run,omitempty"`
	RunCount   int64         `json:"run_count"`
	ErrorCount int64         `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"last_duration"`
}

type scheduledJob struct {
	info    JobInfo
	entryID cron.EntryID
	run     func(context.Context) error
}

// RefreshScheduler keeps the caches of all instantiated sport services
// warm on a cron cadence. Every job walks the registry sequentially so
// a refresh never bursts against shared upstreams.
type RefreshScheduler struct {
	factory *ServiceFactory
	cron    *cron.Cron
	cfg     SchedulerConfig
	logger  *logrus.Entry

	mu        sync.Mutex
	isRunning bool
	jobs      map[string]*scheduledJob
}

// NewRefreshScheduler creates a scheduler over the given factory.
func NewRefreshScheduler(factory *ServiceFactory, cfg SchedulerConfig, logger *logrus.Logger) *RefreshScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultSchedulerConfig.JobTimeout
	}
	return &RefreshScheduler{
		factory: factory,
		cron:    cron.New(),
		cfg:     cfg,
		logger:  logger.WithField("component", "scheduler"),
		jobs:    make(map[string]*scheduledJob),
	}
}

// Start registers the configured jobs and starts the cron loop.
func (s *RefreshScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) error
	}{
		{"teams_refresh", s.cfg.TeamsRefresh, s.refreshTeams},
		{"schedule_refresh", s.cfg.ScheduleRefresh, s.refreshGames},
		{"odds_refresh", s.cfg.OddsRefresh, s.refreshOdds},
		{"cache_warm", s.cfg.CacheWarm, s.warmCaches},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		name := job.name
		entryID, err := s.cron.AddFunc(job.schedule, func() { s.runJob(name) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.jobs[job.name] = &scheduledJob{
			info:    JobInfo{Name: job.name, Schedule: job.schedule, Enabled: true, Status: "idle"},
			entryID: entryID,
			run:     job.run,
		}
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobs)).Info("Refresh scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Refresh scheduler stopped")
}

// runJob executes one job with panic recovery and state bookkeeping. A
// panicking refresh must never take down the cron loop.
func (s *RefreshScheduler) runJob(name string) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	if !job.info.Enabled {
		s.mu.Unlock()
		s.logger.WithField("job", name).Debug("Skipping disabled job")
		return
	}
	if job.info.Status == "running" {
		s.mu.Unlock()
		s.logger.WithField("job", name).Warn("Previous run still in progress, skipping")
		return
	}
	job.info.Status = "running"
	job.info.LastRun = time.Now().UTC()
	run := job.run
	s.mu.Unlock()

	started := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()
		err = run(ctx)
	}()
	took := time.Since(started)

	s.mu.Lock()
	job.info.RunCount++
	job.info.Duration = took
	job.info.NextRun = s.cron.Entry(job.entryID).Next
	if err != nil {
		job.info.Status = "failed"
		job.info.ErrorCount++
		job.info.LastError = err.Error()
		refreshJobRuns.WithLabelValues(name, "error").Inc()
		s.logger.WithField("job", name).WithError(err).Error("Refresh job failed")
	} else {
		job.info.Status = "ok"
		job.info.LastError = ""
		refreshJobRuns.WithLabelValues(name, "ok").Inc()
		s.logger.WithFields(logrus.Fields{"job": name, "took": took.String()}).Info("Refresh job completed")
	}
	s.mu.Unlock()
}

// TriggerJob runs a job immediately in the background, out of cadence.
func (s *RefreshScheduler) TriggerJob(name string) error {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	go s.runJob(name)
	return nil
}

// EnableJob re-enables a disabled job.
func (s *RefreshScheduler) EnableJob(name string) error { return s.setEnabled(name, true) }

// DisableJob keeps a job registered but skips its runs.
func (s *RefreshScheduler) DisableJob(name string) error { return s.setEnabled(name, false) }

func (s *RefreshScheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	job.info.Enabled = enabled
	s.logger.WithFields(logrus.Fields{"job": name, "enabled": enabled}).Info("Job toggled")
	return nil
}

// Jobs returns a snapshot of all jobs sorted by name.
func (s *RefreshScheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		info := job.info
		if s.isRunning && info.NextRun.IsZero() {
			info.NextRun = s.cron.Entry(job.entryID).Next
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (s *RefreshScheduler) refreshTeams(ctx context.Context) error {
	return s.eachService(ctx, func(svc SportService) error {
		_, _, err := svc.Teams(ctx)
		return err
	})
}

func (s *RefreshScheduler) refreshGames(ctx context.Context) error {
	today := time.Now().UTC()
	return s.eachService(ctx, func(svc SportService) error {
		_, _, err := svc.GamesByDate(ctx, today)
		return err
	})
}

func (s *RefreshScheduler) refreshOdds(ctx context.Context) error {
	today := time.Now().UTC()
	return s.eachService(ctx, func(svc SportService) error {
		_, _, err := svc.OddsByDate(ctx, today)
		return err
	})
}

// warmCaches primes the entries the morning dashboard hits first.
func (s *RefreshScheduler) warmCaches(ctx context.Context) error {
	today := time.Now().UTC()
	return s.eachService(ctx, func(svc SportService) error {
		if _, _, err := svc.Teams(ctx); err != nil {
			return err
		}
		_, _, err := svc.GamesByDate(ctx, today)
		return err
	})
}

// eachService visits every instantiated service sequentially with the
// registry's aggregate delay between calls. The first hard error stops
// the walk; degraded fetches surface as empty results, not errors.
func (s *RefreshScheduler) eachService(ctx context.Context, visit func(SportService) error) error {
	for i, svc := range s.factory.Services() {
		if i > 0 {
			if !sleepCtx(ctx, s.factory.AggregateDelay()) {
				return ctx.Err()
			}
		}
		if err := visit(svc); err != nil {
			return fmt.Errorf("%s:%s: %w", svc.Sport(), svc.League(), err)
		}
	}
	return nil
}
