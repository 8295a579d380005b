package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableEntryStore interface {
	ReplaceAll(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	ListAll(ctx context.Context) ([]models.TimetableEntry, error)
}

type snapshotSubjectReader interface {
	List(ctx context.Context) ([]models.Subject, error)
}

type snapshotTeacherReader interface {
	List(ctx context.Context) ([]models.Teacher, error)
}

type snapshotClassReader interface {
	List(ctx context.Context) ([]models.Class, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	TimetableEpoch() uint64
	SetTimetable(ctx context.Context, key string, value interface{}, ttl time.Duration, epoch uint64) bool
	InvalidateTimetable(ctx context.Context)
}

type generationMetrics interface {
	ObserveGeneration(outcome string, duration time.Duration, unscheduled int)
}

// TimetableServiceConfig governs generation and caching behaviour.
type TimetableServiceConfig struct {
	GenerateTimeout time.Duration
	CacheTTL        time.Duration
}

// TimetableService runs the generator against stored reference data and
// serves the persisted timetable. Only one generation runs at a time.
type TimetableService struct {
	engine   *TimetableEngine
	subjects snapshotSubjectReader
	teachers snapshotTeacherReader
	classes  snapshotClassReader
	entries  timetableEntryStore
	tx       txProvider
	cache    timetableCache
	metrics  generationMetrics
	logger   *zap.Logger
	cfg      TimetableServiceConfig

	running chan struct{}
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	engine *TimetableEngine,
	subjects snapshotSubjectReader,
	teachers snapshotTeacherReader,
	classes snapshotClassReader,
	entries timetableEntryStore,
	tx txProvider,
	cache timetableCache,
	metrics generationMetrics,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if engine == nil {
		engine = NewTimetableEngine(DefaultGenerationPolicy())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 30 * time.Second
	}
	return &TimetableService{
		engine:   engine,
		subjects: subjects,
		teachers: teachers,
		classes:  classes,
		entries:  entries,
		tx:       tx,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		running:  make(chan struct{}, 1),
	}
}

// Generate replaces the stored timetable and returns the fresh view. A call
// made while another generation is running fails with GENERATION_IN_PROGRESS.
func (s *TimetableService) Generate(ctx context.Context) (*dto.TimetableView, error) {
	select {
	case s.running <- struct{}{}:
	default:
		s.observe(GenerationOutcomeBusy, 0, 0)
		return nil, appErrors.Clone(appErrors.ErrGenerationInProgress, "")
	}
	_, err := s.generateLocked(ctx)
	<-s.running
	if err != nil {
		return nil, err
	}
	return s.View(ctx)
}

// Regenerate waits for any in-flight generation to finish, then runs one.
// It is used by background jobs that should queue rather than fail.
func (s *TimetableService) Regenerate(ctx context.Context) (models.UnscheduledReport, error) {
	select {
	case s.running <- struct{}{}:
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrGenerationTimeout.Code, appErrors.ErrGenerationTimeout.Status, "timed out waiting for running generation")
	}
	defer func() { <-s.running }()
	return s.generateLocked(ctx)
}

func (s *TimetableService) generateLocked(parent context.Context) (models.UnscheduledReport, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.GenerateTimeout)
	defer cancel()
	start := time.Now()

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, s.fail(ctx, err, start)
	}
	for _, gap := range s.engine.StaffingGaps(snapshot) {
		s.logger.Warn("subject has no eligible teacher",
			zap.String("subject_id", gap.SubjectID),
			zap.String("subject", gap.SubjectName),
			zap.Int("year", gap.Year))
	}

	entries, report, err := s.engine.Generate(snapshot)
	if err != nil {
		s.observe(GenerationOutcomeMissingData, 0, 0)
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, s.fail(ctx, ctx.Err(), start)
	}

	if err := s.persist(ctx, entries); err != nil {
		return nil, s.fail(ctx, err, start)
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(context.WithoutCancel(ctx))
	}

	unscheduled := totalUnscheduled(report)
	duration := time.Since(start)
	s.observe(GenerationOutcomeSuccess, duration, unscheduled)
	s.logger.Info("timetable generated",
		zap.Int("classes", len(snapshot.Classes)),
		zap.Int("subjects", len(snapshot.Subjects)),
		zap.Int("teachers", len(snapshot.Teachers)),
		zap.Int("entries", len(entries)),
		zap.Int("unscheduled_hours", unscheduled),
		zap.String("subject_fallback", string(s.engine.Policy().SubjectFallback)),
		zap.Duration("duration", duration))
	return report, nil
}

func (s *TimetableService) persist(ctx context.Context, entries []models.TimetableEntry) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.entries.ReplaceAll(ctx, tx, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
	}
	return nil
}

// fail classifies a generation error, records it and returns the client error.
func (s *TimetableService) fail(ctx context.Context, err error, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.observe(GenerationOutcomeTimeout, time.Since(start), 0)
		s.logger.Warn("timetable generation timed out, result discarded", zap.Duration("timeout", s.cfg.GenerateTimeout))
		return appErrors.Wrap(err, appErrors.ErrGenerationTimeout.Code, appErrors.ErrGenerationTimeout.Status, appErrors.ErrGenerationTimeout.Message)
	}
	s.observe(GenerationOutcomeError, time.Since(start), 0)
	s.logger.Error("timetable generation failed", zap.Error(err))
	return appErrors.FromError(err)
}

func (s *TimetableService) observe(outcome string, duration time.Duration, unscheduled int) {
	if s.metrics != nil {
		s.metrics.ObserveGeneration(outcome, duration, unscheduled)
	}
}

// View returns the stored timetable grid for every class plus the unscheduled
// report computed from stored entries.
func (s *TimetableService) View(ctx context.Context) (*dto.TimetableView, error) {
	var cached dto.TimetableView
	var epoch uint64
	if s.cache != nil {
		if s.cache.Get(ctx, TimetableViewCacheKey, &cached) {
			return &cached, nil
		}
		epoch = s.cache.TimetableEpoch()
	}

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	view := BuildTimetableView(snapshot, entries)
	if s.cache != nil {
		s.cache.SetTimetable(ctx, TimetableViewCacheKey, view, s.cfg.CacheTTL, epoch)
	}
	return view, nil
}

func (s *TimetableService) loadSnapshot(ctx context.Context) (TimetableSnapshot, error) {
	var snapshot TimetableSnapshot
	var err error
	if snapshot.Subjects, err = s.subjects.List(ctx); err != nil {
		return snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	if snapshot.Teachers, err = s.teachers.List(ctx); err != nil {
		return snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	if snapshot.Classes, err = s.classes.List(ctx); err != nil {
		return snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	return snapshot, nil
}

// BuildTimetableView renders stored entries into the class/day/slot grid.
// Every class gets every cell; cells without a stored assignment are nil.
func BuildTimetableView(snapshot TimetableSnapshot, entries []models.TimetableEntry) *dto.TimetableView {
	subjects := indexSubjects(snapshot.Subjects)
	teachers := make(map[string]models.TeacherDetail, len(snapshot.Teachers))
	for _, teacher := range snapshot.Teachers {
		teachers[teacher.ID] = expandTeacher(teacher, subjects)
	}

	view := &dto.TimetableView{Timetable: make(map[string]dto.ClassTimetable, len(snapshot.Classes))}
	for _, class := range snapshot.Classes {
		grid := make(map[string]map[string]*dto.TimetableCell, len(Weekdays))
		for _, day := range Weekdays {
			grid[day] = make(map[string]*dto.TimetableCell, len(DailySlots))
			for _, slot := range DailySlots {
				grid[day][slot.Label] = nil
			}
		}
		view.Timetable[class.ID] = dto.ClassTimetable{ClassInfo: class, Timetable: grid}
	}

	scheduled := make(map[string]int)
	for _, entry := range entries {
		classView, ok := view.Timetable[entry.ClassID]
		if !ok {
			continue
		}
		day, ok := classView.Timetable[entry.Day]
		if !ok {
			continue
		}
		day[entry.TimeSlot] = renderCell(entry, subjects, teachers)
		if !entry.IsBreak && entry.SubjectID != nil {
			scheduled[*entry.SubjectID]++
		}
	}

	view.UnscheduledInfo = BuildUnscheduledReport(snapshot.Subjects, len(snapshot.Classes), scheduled)
	return view
}

func renderCell(entry models.TimetableEntry, subjects map[string]models.Subject, teachers map[string]models.TeacherDetail) *dto.TimetableCell {
	if entry.IsBreak {
		breakType := SlotBreakType(entry.TimeSlot)
		if breakType == "" {
			breakType = models.BreakTypeBreak
		}
		return &dto.TimetableCell{IsBreak: true, BreakType: breakType}
	}

	cell := &dto.TimetableCell{}
	if entry.SubjectID != nil {
		if subject, ok := subjects[*entry.SubjectID]; ok {
			cell.Subject = &subject
		}
	}
	if entry.TeacherID != nil {
		if teacher, ok := teachers[*entry.TeacherID]; ok {
			cell.Teacher = &teacher
		}
	}
	if cell.Subject == nil && cell.Teacher == nil {
		return nil
	}
	return cell
}

func totalUnscheduled(report models.UnscheduledReport) int {
	total := 0
	for _, item := range report {
		total += item.UnscheduledHours
	}
	return total
}
