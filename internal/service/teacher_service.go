package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context) ([]models.Teacher, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

type teacherSubjectReader interface {
	List(ctx context.Context) ([]models.Subject, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

// TeacherService handles teacher registration and qualification lookups.
type TeacherService struct {
	repo      teacherRepository
	subjects  teacherSubjectReader
	cache     timetableCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService creates a new teacher service.
func NewTeacherService(repo teacherRepository, subjects teacherSubjectReader, cache timetableCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, subjects: subjects, cache: cache, validator: validate, logger: logger}
}

// List returns teachers in creation order with their subjects expanded.
func (s *TeacherService) List(ctx context.Context) ([]models.TeacherDetail, error) {
	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return expandTeachers(teachers, indexSubjects(subjects)), nil
}

// Create registers a teacher. Every subject id must reference an existing subject.
func (s *TeacherService) Create(ctx context.Context, req dto.CreateTeacherRequest) (*models.TeacherDetail, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already exists")
	}

	subjectIDs := uniqueStrings(req.SubjectIDs)
	subjects, err := s.subjects.ListByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	index := indexSubjects(subjects)
	var missing []string
	for _, id := range subjectIDs {
		if _, ok := index[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject ids: %s", strings.Join(missing, ", ")))
	}

	teacher := &models.Teacher{
		Name:       req.Name,
		SubjectIDs: pq.StringArray(subjectIDs),
		Years:      uniqueYears(req.Years),
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx)
	}
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID), zap.Int("subjects", len(subjectIDs)), zap.Int("years", len(teacher.Years)))
	detail := expandTeacher(*teacher, index)
	return &detail, nil
}

// Delete removes a teacher. Stored timetable cells lose their teacher reference.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx)
	}
	return nil
}

func indexSubjects(subjects []models.Subject) map[string]models.Subject {
	index := make(map[string]models.Subject, len(subjects))
	for _, subject := range subjects {
		index[subject.ID] = subject
	}
	return index
}

func expandTeachers(teachers []models.Teacher, subjects map[string]models.Subject) []models.TeacherDetail {
	result := make([]models.TeacherDetail, 0, len(teachers))
	for _, teacher := range teachers {
		result = append(result, expandTeacher(teacher, subjects))
	}
	return result
}

func expandTeacher(teacher models.Teacher, subjects map[string]models.Subject) models.TeacherDetail {
	detail := models.TeacherDetail{
		ID:       teacher.ID,
		Name:     teacher.Name,
		Subjects: make([]models.Subject, 0, len(teacher.SubjectIDs)),
		Years:    append([]int64{}, teacher.Years...),
	}
	for _, id := range teacher.SubjectIDs {
		if subject, ok := subjects[id]; ok {
			detail.Subjects = append(detail.Subjects, subject)
		}
	}
	return detail
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}

func uniqueYears(values []int) pq.Int64Array {
	seen := make(map[int]bool, len(values))
	result := make(pq.Int64Array, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, int64(value))
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
