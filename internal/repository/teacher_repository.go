package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const teacherSelect = `SELECT t.id, t.name, t.created_at,
ARRAY(SELECT ts.subject_id::text FROM teacher_subjects ts WHERE ts.teacher_id = t.id ORDER BY ts.subject_id) AS subject_ids,
ARRAY(SELECT ty.year FROM teacher_years ty WHERE ty.teacher_id = t.id ORDER BY ty.year) AS years
FROM teachers t`

// TeacherRepository handles persistence for teachers and their qualifications.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository creates a new repository instance.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers in creation order with subject ids and years attached.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, teacherSelect+` ORDER BY t.created_at ASC, t.id ASC`); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID returns a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, teacherSelect+` WHERE t.id = $1`, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByName checks uniqueness of teacher name.
func (r *TeacherRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM teachers WHERE name = $1 LIMIT 1`, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher name: %w", err)
	}
	return true, nil
}

// Create persists a teacher with its subject and year links in one transaction.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) (err error) {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin teacher tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO teachers (id, name, created_at) VALUES ($1, $2, $3)`, teacher.ID, teacher.Name, teacher.CreatedAt); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	if len(teacher.SubjectIDs) > 0 {
		const linkSubjects = `INSERT INTO teacher_subjects (teacher_id, subject_id) SELECT $1, UNNEST($2::uuid[]) ON CONFLICT DO NOTHING`
		if _, err = tx.ExecContext(ctx, linkSubjects, teacher.ID, pq.StringArray(teacher.SubjectIDs)); err != nil {
			return fmt.Errorf("link teacher subjects: %w", err)
		}
	}
	if len(teacher.Years) > 0 {
		const linkYears = `INSERT INTO teacher_years (teacher_id, year) SELECT $1, UNNEST($2::int[]) ON CONFLICT DO NOTHING`
		if _, err = tx.ExecContext(ctx, linkYears, teacher.ID, pq.Int64Array(teacher.Years)); err != nil {
			return fmt.Errorf("link teacher years: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit teacher tx: %w", err)
	}
	return nil
}

// Delete removes a teacher. Links cascade and timetable references are nulled.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return requireAffected(res)
}
