package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MaintenanceRepository performs whole-dataset operations.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository builds repository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// ClearAll removes timetable entries and all reference data in one statement.
func (r *MaintenanceRepository) ClearAll(ctx context.Context) error {
	const query = `TRUNCATE timetable_entries, teacher_subjects, teacher_years, teachers, subjects, classes`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear all data: %w", err)
	}
	return nil
}
