package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

var exportHeaders = []string{"Class", "Day", "Time Slot", "Subject", "Teacher", "Type"}

type exportEntryReader interface {
	ListAll(ctx context.Context) ([]models.TimetableEntry, error)
	ListByClass(ctx context.Context, classID string) ([]models.TimetableEntry, error)
}

type exportClassReader interface {
	List(ctx context.Context) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportFormat struct {
	renderer    datasetRenderer
	contentType string
}

// ExportService renders the stored timetable as CSV, PDF or XLSX.
type ExportService struct {
	subjects  snapshotSubjectReader
	teachers  snapshotTeacherReader
	classes   exportClassReader
	entries   exportEntryReader
	formats   map[string]exportFormat
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the default renderers.
func NewExportService(subjects snapshotSubjectReader, teachers snapshotTeacherReader, classes exportClassReader, entries exportEntryReader, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		subjects: subjects,
		teachers: teachers,
		classes:  classes,
		entries:  entries,
		formats: map[string]exportFormat{
			ExportFormatCSV:  {renderer: export.NewCSVExporter(), contentType: "text/csv"},
			ExportFormatPDF:  {renderer: export.NewPDFExporter(), contentType: "application/pdf"},
			ExportFormatXLSX: {renderer: export.NewXLSXExporter(), contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders the stored timetable, optionally limited to one class.
func (s *ExportService) Export(ctx context.Context, query dto.TimetableExportQuery) (*dto.TimetableExport, error) {
	query.Format = strings.ToLower(strings.TrimSpace(query.Format))
	if query.Format == "" {
		query.Format = ExportFormatCSV
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be one of csv, pdf, xlsx")
	}
	format, ok := s.formats[query.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	classes, entries, err := s.loadScope(ctx, query.ClassID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	teachers, err := s.teachers.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}

	dataset := BuildTimetableDataset(classes, subjects, teachers, entries)
	body, err := format.renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}

	filename := s.buildFilename(query, classes)
	s.logger.Info("timetable exported", zap.String("format", query.Format), zap.Int("classes", len(classes)), zap.Int("bytes", len(body)))
	return &dto.TimetableExport{Filename: filename, ContentType: format.contentType, Body: body}, nil
}

func (s *ExportService) loadScope(ctx context.Context, classID string) ([]models.Class, []models.TimetableEntry, error) {
	if classID == "" {
		classes, err := s.classes.List(ctx)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
		}
		entries, err := s.entries.ListAll(ctx)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
		}
		return classes, entries, nil
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	entries, err := s.entries.ListByClass(ctx, classID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return []models.Class{*class}, entries, nil
}

func (s *ExportService) buildFilename(query dto.TimetableExportQuery, classes []models.Class) string {
	name := "timetable"
	if query.ClassID != "" && len(classes) == 1 {
		name = fmt.Sprintf("timetable-year%d-%s", classes[0].Year, sanitizeFilename(classes[0].Section))
	}
	return fmt.Sprintf("%s-%s.%s", name, s.now().UTC().Format("20060102"), query.Format)
}

func sanitizeFilename(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// BuildTimetableDataset lays out one row per (class, day, slot) in week order,
// grouped by class label.
func BuildTimetableDataset(classes []models.Class, subjects []models.Subject, teachers []models.Teacher, entries []models.TimetableEntry) export.Dataset {
	subjectNames := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		subjectNames[subject.ID] = subject.Name
	}
	teacherNames := make(map[string]string, len(teachers))
	for _, teacher := range teachers {
		teacherNames[teacher.ID] = teacher.Name
	}
	cells := make(map[string]models.TimetableEntry, len(entries))
	for _, entry := range entries {
		cells[entry.ClassID+"|"+entry.Day+"|"+entry.TimeSlot] = entry
	}

	rows := make([]map[string]string, 0, len(classes)*len(Weekdays)*len(DailySlots))
	for _, class := range classes {
		label := class.Label()
		for _, day := range Weekdays {
			for _, slot := range DailySlots {
				row := map[string]string{"Class": label, "Day": day, "Time Slot": slot.Label, "Type": "Free"}
				entry, ok := cells[class.ID+"|"+day+"|"+slot.Label]
				switch {
				case ok && entry.IsBreak:
					row["Type"] = slot.BreakType
					if row["Type"] == "" {
						row["Type"] = models.BreakTypeBreak
					}
				case ok && !entry.IsEmpty():
					row["Type"] = "Lesson"
					if entry.SubjectID != nil {
						row["Subject"] = subjectNames[*entry.SubjectID]
					}
					if entry.TeacherID != nil {
						row["Teacher"] = teacherNames[*entry.TeacherID]
					}
				}
				rows = append(rows, row)
			}
		}
	}

	return export.Dataset{Title: "Timetable", Headers: exportHeaders, Rows: rows, GroupBy: "Class"}
}
