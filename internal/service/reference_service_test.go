package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type invalidationRecorder struct {
	calls int
}

func (r *invalidationRecorder) InvalidateTimetable(context.Context) {
	r.calls++
}

type subjectRepoStub struct {
	subjects  []models.Subject
	exists    bool
	createErr error
	deleteErr error
	created   *models.Subject
}

func (s *subjectRepoStub) List(context.Context) ([]models.Subject, error) {
	return s.subjects, nil
}

func (s *subjectRepoStub) ListByIDs(_ context.Context, ids []string) ([]models.Subject, error) {
	var result []models.Subject
	for _, subject := range s.subjects {
		for _, id := range ids {
			if subject.ID == id {
				result = append(result, subject)
			}
		}
	}
	return result, nil
}

func (s *subjectRepoStub) ExistsByName(context.Context, string) (bool, error) {
	return s.exists, nil
}

func (s *subjectRepoStub) Create(_ context.Context, subject *models.Subject) error {
	if s.createErr != nil {
		return s.createErr
	}
	subject.ID = fmt.Sprintf("s-%d", len(s.subjects)+1)
	s.created = subject
	s.subjects = append(s.subjects, *subject)
	return nil
}

func (s *subjectRepoStub) Delete(context.Context, string) error {
	return s.deleteErr
}

func intPtr(v int) *int { return &v }

func TestSubjectServiceCreateDefaultsPriority(t *testing.T) {
	repo := &subjectRepoStub{}
	cache := &invalidationRecorder{}
	svc := NewSubjectService(repo, cache, nil, nil)

	subject, err := svc.Create(context.Background(), dto.CreateSubjectRequest{Name: "  Math ", Hours: 4})
	require.NoError(t, err)
	assert.Equal(t, "Math", subject.Name)
	assert.Equal(t, models.PriorityMedium, subject.Priority)
	assert.Equal(t, 1, cache.calls)
}

func TestReferenceServicesAcceptLargeCounts(t *testing.T) {
	subjects := &subjectRepoStub{}
	subject, err := NewSubjectService(subjects, nil, nil, nil).Create(context.Background(), dto.CreateSubjectRequest{Name: "Math", Hours: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, subject.Hours)

	class, err := NewClassService(&classRepoStub{}, nil, nil, nil).Create(context.Background(), dto.CreateClassRequest{Year: 25, Section: "A", StudentsCount: 30})
	require.NoError(t, err)
	assert.Equal(t, 25, class.Year)

	teachers := &teacherRepoStub{}
	_, err = NewTeacherService(teachers, subjects, nil, nil, nil).Create(context.Background(), dto.CreateTeacherRequest{Name: "Bu Sari", Years: []int{25}})
	require.NoError(t, err)
	assert.Equal(t, pq.Int64Array{25}, teachers.created.Years)
}

func TestSubjectServiceCreateValidation(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)

	cases := []dto.CreateSubjectRequest{
		{Name: "", Hours: 4},
		{Name: "Math", Hours: 0},
		{Name: "Math", Hours: 4, Priority: intPtr(4)},
		{Name: "Math", Hours: 4, Priority: intPtr(0)},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestSubjectServiceCreateDuplicate(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{exists: true}, nil, nil, nil)
	_, err := svc.Create(context.Background(), dto.CreateSubjectRequest{Name: "Math", Hours: 4})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	racing := &subjectRepoStub{createErr: fmt.Errorf("create subject: %w", &pq.Error{Code: "23505"})}
	svc = NewSubjectService(racing, nil, nil, nil)
	_, err = svc.Create(context.Background(), dto.CreateSubjectRequest{Name: "Math", Hours: 4})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceDelete(t *testing.T) {
	cache := &invalidationRecorder{}
	svc := NewSubjectService(&subjectRepoStub{deleteErr: sql.ErrNoRows}, cache, nil, nil)
	err := svc.Delete(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Zero(t, cache.calls)

	svc = NewSubjectService(&subjectRepoStub{}, cache, nil, nil)
	require.NoError(t, svc.Delete(context.Background(), "s-1"))
	assert.Equal(t, 1, cache.calls)
}

func TestSubjectServiceListNeverNil(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)
	subjects, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subjects)
}

type teacherRepoStub struct {
	teachers []models.Teacher
	exists   bool
	created  *models.Teacher
}

func (s *teacherRepoStub) List(context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

func (s *teacherRepoStub) ExistsByName(context.Context, string) (bool, error) {
	return s.exists, nil
}

func (s *teacherRepoStub) Create(_ context.Context, teacher *models.Teacher) error {
	teacher.ID = "t-1"
	s.created = teacher
	return nil
}

func (s *teacherRepoStub) Delete(context.Context, string) error {
	return sql.ErrNoRows
}

func TestTeacherServiceCreateExpandsSubjects(t *testing.T) {
	subjects := &subjectRepoStub{subjects: []models.Subject{
		{ID: "s-1", Name: "Math"},
		{ID: "s-2", Name: "Physics"},
	}}
	repo := &teacherRepoStub{}
	cache := &invalidationRecorder{}
	svc := NewTeacherService(repo, subjects, cache, nil, nil)

	detail, err := svc.Create(context.Background(), dto.CreateTeacherRequest{
		Name:       "Bu Sari",
		SubjectIDs: []string{"s-2", "s-1", "s-2"},
		Years:      []int{11, 10, 11},
	})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"s-2", "s-1"}, repo.created.SubjectIDs)
	assert.Equal(t, pq.Int64Array{10, 11}, repo.created.Years)
	require.Len(t, detail.Subjects, 2)
	assert.Equal(t, "Physics", detail.Subjects[0].Name)
	assert.Equal(t, []int64{10, 11}, detail.Years)
	assert.Equal(t, 1, cache.calls)
}

func TestTeacherServiceRejectsUnknownSubjects(t *testing.T) {
	subjects := &subjectRepoStub{subjects: []models.Subject{{ID: "s-1", Name: "Math"}}}
	repo := &teacherRepoStub{}
	svc := NewTeacherService(repo, subjects, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTeacherRequest{Name: "Bu Sari", SubjectIDs: []string{"s-1", "s-9"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "s-9")
	assert.Nil(t, repo.created)
}

func TestTeacherServiceDuplicateAndDelete(t *testing.T) {
	svc := NewTeacherService(&teacherRepoStub{exists: true}, &subjectRepoStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTeacherRequest{Name: "Bu Sari"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "t-404")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceListSkipsDanglingSubjects(t *testing.T) {
	repo := &teacherRepoStub{teachers: []models.Teacher{
		{ID: "t-1", Name: "Bu Sari", SubjectIDs: pq.StringArray{"s-1", "gone"}, Years: pq.Int64Array{10}},
	}}
	svc := NewTeacherService(repo, &subjectRepoStub{subjects: []models.Subject{{ID: "s-1", Name: "Math"}}}, nil, nil, nil)

	teachers, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	require.Len(t, teachers[0].Subjects, 1)
	assert.Equal(t, "Math", teachers[0].Subjects[0].Name)
}

type classRepoStub struct {
	exists    bool
	createErr error
}

func (s *classRepoStub) List(context.Context) ([]models.Class, error) { return nil, nil }

func (s *classRepoStub) ExistsByYearSection(context.Context, int, string) (bool, error) {
	return s.exists, nil
}

func (s *classRepoStub) Create(_ context.Context, class *models.Class) error {
	if s.createErr != nil {
		return s.createErr
	}
	class.ID = "c-1"
	return nil
}

func (s *classRepoStub) Delete(context.Context, string) error { return nil }

func TestClassServiceCreate(t *testing.T) {
	cache := &invalidationRecorder{}
	svc := NewClassService(&classRepoStub{}, cache, nil, nil)

	class, err := svc.Create(context.Background(), dto.CreateClassRequest{Year: 10, Section: " A ", StudentsCount: 30})
	require.NoError(t, err)
	assert.Equal(t, "A", class.Section)
	assert.Equal(t, 1, cache.calls)

	_, err = svc.Create(context.Background(), dto.CreateClassRequest{Year: 10, Section: "A"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassServiceCreateDuplicate(t *testing.T) {
	svc := NewClassService(&classRepoStub{exists: true}, nil, nil, nil)
	_, err := svc.Create(context.Background(), dto.CreateClassRequest{Year: 10, Section: "A", StudentsCount: 30})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	svc = NewClassService(&classRepoStub{createErr: errors.New("boom")}, nil, nil, nil)
	_, err = svc.Create(context.Background(), dto.CreateClassRequest{Year: 10, Section: "A", StudentsCount: 30})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestClassServiceListNeverNil(t *testing.T) {
	svc := NewClassService(&classRepoStub{}, nil, nil, nil)
	classes, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, classes)
}

type maintenanceRepoStub struct{ err error }

func (m maintenanceRepoStub) ClearAll(context.Context) error { return m.err }

func TestMaintenanceServiceClearAll(t *testing.T) {
	cache := &invalidationRecorder{}
	svc := NewMaintenanceService(maintenanceRepoStub{}, cache, nil)
	require.NoError(t, svc.ClearAll(context.Background()))
	assert.Equal(t, 1, cache.calls)

	svc = NewMaintenanceService(maintenanceRepoStub{err: errors.New("locked")}, cache, nil)
	err := svc.ClearAll(context.Background())
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, cache.calls)
}
