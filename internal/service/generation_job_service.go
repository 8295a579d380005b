package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const generationJobType = "timetable.generate"

type generationRunner interface {
	Regenerate(ctx context.Context) (models.UnscheduledReport, error)
}

type jobMetrics interface {
	ObserveGenerationJob(status string)
}

// GenerationJobConfig tunes the async generation queue.
type GenerationJobConfig struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Retention  time.Duration
}

// GenerationJobService queues timetable generations on a single worker and
// tracks their status in memory.
type GenerationJobService struct {
	runner  generationRunner
	queue   *jobs.Queue
	store   *generationJobStore
	metrics jobMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewGenerationJobService builds the service and its single-worker queue.
func NewGenerationJobService(runner generationRunner, metrics jobMetrics, logger *zap.Logger, cfg GenerationJobConfig) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	svc := &GenerationJobService{
		runner:  runner,
		store:   newGenerationJobStore(cfg.Retention),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	svc.queue = jobs.NewQueue("timetable-generation", svc.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		Observer:   svc,
	})
	return svc
}

// Start launches the queue worker.
func (s *GenerationJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker.
func (s *GenerationJobService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a generation run and returns its initial status.
func (s *GenerationJobService) Enqueue(ctx context.Context) (*dto.GenerationJob, error) {
	now := s.now().UTC()
	job := dto.GenerationJob{ID: uuid.NewString(), Status: models.GenerationJobQueued, EnqueuedAt: now}
	s.store.Save(job, now)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: generationJobType, Enqueued: now}); err != nil {
		s.store.Delete(job.ID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "generation queue is full, try again later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation")
	}
	s.logger.Info("timetable generation queued", zap.String("job_id", job.ID))
	return &job, nil
}

// Get returns the current status of a job.
func (s *GenerationJobService) Get(ctx context.Context, id string) (*dto.GenerationJob, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return &job, nil
}

func (s *GenerationJobService) handle(ctx context.Context, job jobs.Job) error {
	report, err := s.runner.Regenerate(ctx)
	if err != nil {
		// Client errors (missing data) will not improve on retry.
		if appErr := appErrors.FromError(err); appErr.Status < 500 {
			return jobs.Permanent(err)
		}
		return err
	}
	s.store.Update(job.ID, func(j *dto.GenerationJob) {
		j.UnscheduledInfo = report
	})
	return nil
}

// JobStarted marks a job as running.
func (s *GenerationJobService) JobStarted(job jobs.Job) {
	now := s.now().UTC()
	s.store.Update(job.ID, func(j *dto.GenerationJob) {
		j.Status = models.GenerationJobRunning
		j.Attempts = job.Attempt + 1
		j.StartedAt = &now
		j.Error = nil
	})
}

// JobFinished records the outcome of an attempt.
func (s *GenerationJobService) JobFinished(job jobs.Job, err error, final bool) {
	now := s.now().UTC()
	status := models.GenerationJobSucceeded
	switch {
	case err != nil && final:
		status = models.GenerationJobFailed
	case err != nil:
		status = models.GenerationJobQueued
	}
	s.store.Update(job.ID, func(j *dto.GenerationJob) {
		j.Status = status
		if err != nil {
			appErr := appErrors.FromError(err)
			j.Error = &dto.ErrorSummary{Code: appErr.Code, Message: appErr.Message}
		}
		if final {
			j.FinishedAt = &now
		}
	})
	if final {
		if s.metrics != nil {
			s.metrics.ObserveGenerationJob(string(status))
		}
		s.logger.Info("timetable generation job finished", zap.String("job_id", job.ID), zap.String("status", string(status)), zap.Int("attempts", job.Attempt+1))
	}
}

type storedGenerationJob struct {
	job     dto.GenerationJob
	touched time.Time
}

type generationJobStore struct {
	mu        sync.RWMutex
	items     map[string]storedGenerationJob
	retention time.Duration
}

func newGenerationJobStore(retention time.Duration) *generationJobStore {
	return &generationJobStore{items: make(map[string]storedGenerationJob), retention: retention}
}

// Save stores a job and prunes finished jobs past retention.
func (s *generationJobStore) Save(job dto.GenerationJob, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if item.job.FinishedAt != nil && now.Sub(item.touched) > s.retention {
			delete(s.items, id)
		}
	}
	s.items[job.ID] = storedGenerationJob{job: job, touched: now}
}

func (s *generationJobStore) Get(id string) (dto.GenerationJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item.job, ok
}

func (s *generationJobStore) Update(id string, mutate func(*dto.GenerationJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return
	}
	mutate(&item.job)
	item.touched = time.Now().UTC()
	s.items[id] = item
}

func (s *generationJobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}
