package poster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cyderes/facebook-auto-poster/internal/compose"
	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/filter"
	"github.com/cyderes/facebook-auto-poster/internal/metrics"
	"github.com/cyderes/facebook-auto-poster/internal/models"
	"github.com/cyderes/facebook-auto-poster/internal/storage"
)

// Bounds the final writes of a run, which run detached from the caller's
// cancellation so posts already made are still recorded.
const persistTimeout = 10 * time.Second

type recordSource interface {
	Fetch(ctx context.Context) ([]models.ArrestRecord, error)
}

type publisher interface {
	Publish(ctx context.Context, message, identifier, imageBase64 string) (models.PublishResult, error)
}

// Service drives the fetch, filter, publish and persist pipeline
type Service struct {
	config    config.PosterConfig
	source    recordSource
	publisher publisher
	storage   storage.Storage
	logger    logrus.FieldLogger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	running   sync.Mutex
}

// NewService creates a new poster service
func NewService(cfg config.PosterConfig, src recordSource, pub publisher, store storage.Storage, logger logrus.FieldLogger) *Service {
	return &Service{
		config:    cfg,
		source:    src,
		publisher: pub,
		storage:   store,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Start runs the poster on its schedule until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	schedule, err := NewSchedule(s.config)
	if err != nil {
		return err
	}

	if s.config.RunOnStart {
		s.runAndLog(ctx)
	}

	for {
		next := schedule.Next(s.now())
		s.logger.WithField("next_run", next.Format(time.RFC3339)).Info("waiting for next scheduled run")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Service) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		// Log error but don't stop the scheduler
		s.logger.WithError(err).Error("scheduled run failed")
	}
}

// RunOnce loads the previous batch, runs the pipeline and persists the new
// batch when anything was published. Overlapping calls fail with
// models.ErrRunInProgress.
func (s *Service) RunOnce(ctx context.Context) (models.RunReport, error) {
	if !s.running.TryLock() {
		return models.RunReport{}, models.ErrRunInProgress
	}
	defer s.running.Unlock()

	started := s.now()
	runID := uuid.New().String()
	logger := s.logger.WithField("run_id", runID)
	ctx = withRunLogger(ctx, logger)
	defer func() { metrics.RunDuration.Observe(time.Since(started).Seconds()) }()

	logger.Info("starting poster run")

	previous, err := s.storage.LoadLastBatch(ctx)
	if err != nil {
		logger.WithError(err).Warn("could not load last batch, continuing with an empty one")
		previous = models.PostedBatch{}
	}

	report, err := s.run(ctx, previous)
	report.RunID = runID

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	status := models.RunStatus{
		RunID:       runID,
		LastAttempt: started,
		Fetched:     report.Fetched,
		Eligible:    report.Eligible,
		Published:   report.Published(),
		Failed:      report.Failed(),
	}
	if err != nil {
		status.Status = models.StatusFailure
		status.ErrorMessage = err.Error()
		s.recordStatus(persistCtx, status)
		return report, err
	}

	if report.Batch.Len() > 0 && !s.config.DryRun {
		if err := s.storage.SaveLastBatch(persistCtx, report.Batch); err != nil {
			if !errors.Is(err, models.ErrPersistence) {
				err = fmt.Errorf("%w: failed to save last batch: %v", models.ErrPersistence, err)
			}
			logger.WithError(err).Error("failed to persist last batch, posts already made are kept")
			status.Status = models.StatusFailure
			status.ErrorMessage = err.Error()
			s.recordStatus(persistCtx, status)
			return report, err
		}
		report.Persisted = true
		metrics.LastBatchSize.Set(float64(report.Batch.Len()))
	}

	status.Status = models.StatusSuccess
	status.LastSuccessfulRun = started
	s.recordStatus(persistCtx, status)

	logger.WithFields(logrus.Fields{
		"fetched":   report.Fetched,
		"eligible":  report.Eligible,
		"published": report.Published(),
		"failed":    report.Failed(),
		"persisted": report.Persisted,
	}).Info("poster run complete")

	return report, nil
}

// Run executes one pass of the pipeline against the previously posted batch
// and returns the identifiers published during this pass.
func (s *Service) Run(ctx context.Context, previous models.PostedBatch) (models.PostedBatch, error) {
	report, err := s.run(ctx, previous)
	return report.Batch, err
}

func (s *Service) run(ctx context.Context, previous models.PostedBatch) (models.RunReport, error) {
	logger := runLogger(ctx, s.logger)
	var report models.RunReport

	records, err := s.source.Fetch(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to fetch arrest records")
		return report, fmt.Errorf("failed to fetch records: %w", err)
	}
	report.Fetched = len(records)
	metrics.RecordsFetched.Add(float64(len(records)))

	eligible, rejected := filter.Apply(records, previous)
	for _, rej := range rejected {
		metrics.RecordsSkipped.WithLabelValues(rej.Reason).Inc()
		entry := logger.WithFields(logrus.Fields{"identifier": rej.Record.Identifier, "reason": rej.Reason})
		if rej.Reason == filter.ReasonMissingIdentifier {
			metrics.PostsFailed.WithLabelValues(metrics.StageRecord).Inc()
			entry.Error("record has no identifier and will not be posted")
			continue
		}
		entry.Debug("skipping record")
	}

	if s.config.MaxPosts > 0 && len(eligible) > s.config.MaxPosts {
		eligible = eligible[:s.config.MaxPosts]
	}
	report.Eligible = len(eligible)

	if len(eligible) == 0 {
		logger.Info("no new arrest records to post")
		return report, nil
	}

	for i, record := range eligible {
		if i > 0 {
			if err := s.sleep(ctx, s.config.PostDelay); err != nil {
				logger.WithError(err).Warn("run interrupted between posts")
				break
			}
		}

		result := s.publishRecord(ctx, logger, record)
		report.Results = append(report.Results, result)
		if result.Success() {
			report.Batch.Add(record.Identifier)
			logger.WithField("identifier", record.Identifier).Infof("posted arrest record %d/%d", i+1, len(eligible))
		}
	}

	return report, nil
}

func (s *Service) publishRecord(ctx context.Context, logger logrus.FieldLogger, record models.ArrestRecord) models.PublishResult {
	entry := logger.WithField("identifier", record.Identifier)

	message, err := compose.Compose(record, s.config.BookingURLBase, s.now())
	if err != nil {
		metrics.PostsFailed.WithLabelValues(metrics.StageCompose).Inc()
		entry.WithError(err).Error("failed to compose post message")
		return models.PublishResult{Identifier: record.Identifier, Err: err}
	}

	if s.config.DryRun {
		entry.WithField("message", message).Info("dry run, not publishing")
		return models.PublishResult{Identifier: record.Identifier}
	}

	result, err := s.publisher.Publish(ctx, message, record.Identifier, record.Image)
	if err != nil {
		metrics.PostsFailed.WithLabelValues(failureStage(err)).Inc()
		entry.WithError(err).Error("failed to post arrest record")
		result.Identifier = record.Identifier
		result.Err = err
		return result
	}

	metrics.PostsPublished.Inc()
	return result
}

func (s *Service) recordStatus(ctx context.Context, status models.RunStatus) {
	if err := s.storage.UpdateRunStatus(ctx, status); err != nil {
		runLogger(ctx, s.logger).WithError(err).Warn("failed to update run status")
	}
}

func failureStage(err error) string {
	switch {
	case errors.Is(err, models.ErrImageDecode):
		return metrics.StageDecode
	case errors.Is(err, models.ErrUpload):
		return metrics.StageUpload
	default:
		return metrics.StagePublish
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type loggerKey struct{}

func withRunLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func runLogger(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if l, ok := ctx.Value(loggerKey{}).(logrus.FieldLogger); ok {
		return l
	}
	return fallback
}
