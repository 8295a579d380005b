package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubjectRepositoryListInCreationOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "hours", "requires_lab", "priority", "created_at"}).
		AddRow("s-1", "Math", 4, false, 1, now).
		AddRow("s-2", "Physics", 3, true, 2, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects ORDER BY created_at ASC, id ASC")).WillReturnRows(rows)

	subjects, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Math", subjects[0].Name)
	assert.True(t, subjects[1].RequiresLab)
	assert.Equal(t, models.PriorityMedium, subjects[1].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	none, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	rows := sqlmock.NewRows([]string{"id", "name", "hours", "requires_lab", "priority", "created_at"}).
		AddRow("s-1", "Math", 4, false, 1, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id::text = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	subjects, err := repo.ListByIDs(context.Background(), []string{"s-1", "s-9"})
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM subjects WHERE name = $1")).
		WithArgs("Math").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM subjects WHERE name = $1")).
		WithArgs("Art").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), "Math")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByName(context.Background(), "Art")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subjects")).
		WithArgs(sqlmock.AnyArg(), "Math", 4, false, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	subject := &models.Subject{Name: "Math", Hours: 4, Priority: models.PriorityHigh}
	require.NoError(t, repo.Create(context.Background(), subject))
	assert.NotEmpty(t, subject.ID)
	assert.False(t, subject.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects WHERE id = $1")).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "s-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListScansArrays(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "created_at", "subject_ids", "years"}).
		AddRow("t-1", "Bu Sari", time.Now(), []byte("{s-1,s-2}"), []byte("{10,11}")).
		AddRow("t-2", "Pak Budi", time.Now(), []byte("{}"), []byte("{}"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers t ORDER BY t.created_at ASC, t.id ASC")).WillReturnRows(rows)

	teachers, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, pq.StringArray{"s-1", "s-2"}, teachers[0].SubjectIDs)
	assert.Equal(t, pq.Int64Array{10, 11}, teachers[0].Years)
	assert.True(t, teachers[0].Teaches("s-2"))
	assert.True(t, teachers[0].EligibleFor(11))
	assert.Empty(t, teachers[1].SubjectIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreateLinksInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers (id, name, created_at)")).
		WithArgs(sqlmock.AnyArg(), "Bu Sari", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_subjects")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_years")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	teacher := &models.Teacher{Name: "Bu Sari", SubjectIDs: pq.StringArray{"s-1", "s-2"}, Years: pq.Int64Array{10}}
	require.NoError(t, repo.Create(context.Background(), teacher))
	assert.NotEmpty(t, teacher.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreateRollsBackOnLinkFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_subjects")).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	teacher := &models.Teacher{Name: "Bu Sari", SubjectIDs: pq.StringArray{"missing"}}
	err := repo.Create(context.Background(), teacher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link teacher subjects")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreateWithoutLinks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), &models.Teacher{Name: "Pak Budi"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryExistsByYearSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM classes WHERE year = $1 AND section = $2")).
		WithArgs(10, "A").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByYearSection(context.Background(), 10, "A")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WithArgs(sqlmock.AnyArg(), 10, "A", 30, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{Year: 10, Section: "A", StudentsCount: 30}
	require.NoError(t, repo.Create(context.Background(), class))

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs(class.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "section", "students_count", "created_at"}).
			AddRow(class.ID, 10, "A", 30, class.CreatedAt))

	found, err := repo.FindByID(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Equal(t, "Year 10 - A", found.Label())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "c-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
