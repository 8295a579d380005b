package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// insertBatchSize keeps a multi-row insert well under the Postgres bind limit.
const insertBatchSize = 500

const timetableColumns = `id, class_id, day, time_slot, subject_id, teacher_id, is_break`

// TimetableRepository stores generated timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ReplaceAll deletes every stored entry and inserts the given grid. Callers
// pass a transaction so readers never observe a partial timetable.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_entries`); err != nil {
		return fmt.Errorf("clear timetable entries: %w", err)
	}

	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	const query = `INSERT INTO timetable_entries (` + timetableColumns + `)
VALUES (:id, :class_id, :day, :time_slot, :subject_id, :teacher_id, :is_break)`
	for start := 0; start < len(entries); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entries[start:end]); err != nil {
			return fmt.Errorf("insert timetable entries: %w", err)
		}
	}
	return nil
}

// ListAll returns every stored entry grouped by class.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries ORDER BY class_id ASC, day ASC, time_slot ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListByClass returns stored entries for one class.
func (r *TimetableRepository) ListByClass(ctx context.Context, classID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE class_id = $1 ORDER BY day ASC, time_slot ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list class timetable entries: %w", err)
	}
	return entries, nil
}
