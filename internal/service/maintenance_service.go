package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type maintenanceRepository interface {
	ClearAll(ctx context.Context) error
}

// MaintenanceService wipes the dataset.
type MaintenanceService struct {
	repo   maintenanceRepository
	cache  timetableCacheInvalidator
	logger *zap.Logger
}

// NewMaintenanceService constructs a MaintenanceService.
func NewMaintenanceService(repo maintenanceRepository, cache timetableCacheInvalidator, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{repo: repo, cache: cache, logger: logger}
}

// ClearAll deletes the timetable and every subject, teacher and class.
func (s *MaintenanceService) ClearAll(ctx context.Context) error {
	if err := s.repo.ClearAll(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear data")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx)
	}
	s.logger.Warn("all timetable data cleared")
	return nil
}
