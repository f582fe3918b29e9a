package ingestion

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/repository"
)

const archiveTimeout = 30 * time.Second

// Orchestrator runs the initial seed and the genre balancing pass. At most
// one run is active per instance; overlapping invocations are dropped.
type Orchestrator struct {
	fetcher  ContentFetcher
	balancer *Balancer
	repo     repository.ContentRepository
	archiver ReportArchiver
	config   Config
	logger   *logrus.Entry

	running atomic.Bool
	wg      sync.WaitGroup

	mu    sync.RWMutex
	state models.IngestionState

	// pause waits between seed queries; false means ctx ended first.
	pause func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
}

// NewOrchestrator wires a run pipeline. archiver may be nil.
func NewOrchestrator(
	fetcher ContentFetcher,
	balancer *Balancer,
	repo repository.ContentRepository,
	archiver ReportArchiver,
	config Config,
	logger *logrus.Entry,
) *Orchestrator {
	if logger == nil {
		logger = logrus.WithField("component", "orchestrator")
	}
	return &Orchestrator{
		fetcher:  fetcher,
		balancer: balancer,
		repo:     repo,
		archiver: archiver,
		config:   config,
		logger:   logger,
		pause:    sleepContext,
		now:      time.Now,
	}
}

// Run performs one ingestion run synchronously. It returns
// errors.ErrRunInProgress without doing any work when another run is active.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("Ingestion already running, skipping")
		return nil, errors.ErrRunInProgress
	}
	defer o.running.Store(false)

	return o.run(ctx), nil
}

// Start launches a run in the background and returns immediately.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.ErrRunInProgress
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.running.Store(false)
		o.run(ctx)
	}()
	return nil
}

// Wait blocks until background runs started with Start have returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) State() models.IngestionState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state := o.state
	state.Running = o.running.Load()
	return state
}

func (o *Orchestrator) run(ctx context.Context) *models.RunReport {
	report := &models.RunReport{
		ID:        uuid.NewString(),
		StartedAt: o.now().UTC(),
		Outcomes:  make(map[string]models.GenreOutcome),
	}
	logger := o.logger.WithField("run_id", report.ID)
	logger.Info("Ingestion run started")

	o.mu.Lock()
	o.state.LastStartedAt = report.StartedAt
	o.mu.Unlock()

	total, err := o.repo.CountAll(ctx)
	switch {
	case err != nil:
		logger.WithError(err).Error("Failed to count stored items, skipping initial seed")
		report.Error = err.Error()
	case total == 0:
		report.InitialSeed = true
		report.SeedSaved = o.seed(ctx, logger)
	default:
		logger.WithField("total", total).Debug("Store already populated, skipping initial seed")
	}

	if ctx.Err() == nil {
		report.Outcomes = o.balancer.SeedGenres(ctx, o.config.MinPerGenre)
	}

	report.FinishedAt = o.now().UTC()
	o.finish(ctx, report, logger)
	return report
}

// seed runs the broad seed queries in order, pausing between them.
func (o *Orchestrator) seed(ctx context.Context, logger *logrus.Entry) int {
	logger.WithField("queries", len(o.config.SeedQueries)).Info("Store is empty, running initial seed")

	saved := 0
	for i, query := range o.config.SeedQueries {
		if i > 0 && !o.pause(ctx, o.config.SeedPause) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		items, err := o.fetcher.FetchAndSave(context.WithoutCancel(ctx), query, o.config.SeedPageSize)
		saved += len(items)
		if err != nil {
			logger.WithError(err).WithField("query", query).Error("Seed query aborted")
			continue
		}
		logger.WithFields(logrus.Fields{
			"query": query,
			"saved": len(items),
		}).Info("Seed query completed")
	}
	return saved
}

func (o *Orchestrator) finish(ctx context.Context, report *models.RunReport, logger *logrus.Entry) {
	fields := logrus.Fields{
		"duration":    report.Duration().String(),
		"seed_saved":  report.SeedSaved,
		"partial":     report.PartialGenres(),
		"interrupted": ctx.Err() != nil,
	}
	if data, err := json.Marshal(report); err == nil {
		fields["report"] = string(data)
	}
	logger.WithFields(fields).Info("Ingestion run completed")

	if o.archiver != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		if err := o.archiver.SaveRunReport(archiveCtx, report); err != nil {
			logger.WithError(err).Warn("Failed to archive run report")
		}
		cancel()
	}

	o.mu.Lock()
	o.state.LastCompletedAt = report.FinishedAt
	o.state.LastReport = report
	o.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
