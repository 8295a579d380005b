package service

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// TimeSlot is one labelled period of the school day.
type TimeSlot struct {
	Label     string
	BreakType string
}

// IsBreak reports whether the slot is a non-teaching period.
func (t TimeSlot) IsBreak() bool {
	return t.BreakType != ""
}

// Weekdays is the teaching week in generation order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DailySlots is the fixed day layout. Labels are persisted verbatim.
var DailySlots = []TimeSlot{
	{Label: "9:00AM - 9:50AM"},
	{Label: "10:00AM - 10:50AM"},
	{Label: "11:00AM - 11:10AM", BreakType: models.BreakTypeBreak},
	{Label: "11:10AM - 12:00PM"},
	{Label: "12:00PM - 12:50PM"},
	{Label: "12:50PM - 1:30PM", BreakType: models.BreakTypeLunch},
	{Label: "1:30PM - 2:20PM"},
	{Label: "2:30PM - 3:20PM"},
	{Label: "3:30PM - 4:20PM"},
}

// SlotBreakType returns the break kind for a slot label, or "" for teaching slots.
func SlotBreakType(label string) string {
	for _, slot := range DailySlots {
		if slot.Label == label {
			return slot.BreakType
		}
	}
	return ""
}

// TeacherSelection names the rule used to pick among eligible teachers.
type TeacherSelection string

// SubjectFallback names what happens when the top candidate subject has no free teacher.
type SubjectFallback string

const (
	// TeacherSelectionFirstFit takes the first eligible teacher in enumeration order.
	TeacherSelectionFirstFit TeacherSelection = "first_fit"

	// SubjectFallbackNone leaves the slot empty.
	SubjectFallbackNone SubjectFallback = "none"
	// SubjectFallbackNextPriority tries the remaining candidates in sorted order.
	SubjectFallbackNextPriority SubjectFallback = "next_priority"
)

// GenerationPolicy controls the greedy tie-break and fallback rules.
type GenerationPolicy struct {
	TeacherSelection TeacherSelection
	SubjectFallback  SubjectFallback
}

// DefaultGenerationPolicy is first-fit teacher selection without subject fallback.
func DefaultGenerationPolicy() GenerationPolicy {
	return GenerationPolicy{
		TeacherSelection: TeacherSelectionFirstFit,
		SubjectFallback:  SubjectFallbackNone,
	}
}

// ParseGenerationPolicy maps configuration strings to a policy. Unknown values
// keep the default and are logged.
func ParseGenerationPolicy(selection, fallback string, logger *zap.Logger) GenerationPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := DefaultGenerationPolicy()

	switch TeacherSelection(strings.ToLower(strings.TrimSpace(selection))) {
	case "", TeacherSelectionFirstFit:
	default:
		logger.Warn("unknown teacher selection, using first_fit", zap.String("value", selection))
	}

	switch SubjectFallback(strings.ToLower(strings.TrimSpace(fallback))) {
	case "", SubjectFallbackNone:
	case SubjectFallbackNextPriority:
		policy.SubjectFallback = SubjectFallbackNextPriority
	default:
		logger.Warn("unknown subject fallback, using none", zap.String("value", fallback))
	}

	return policy
}

// TimetableSnapshot is the read-only input of one generation run, in enumeration order.
type TimetableSnapshot struct {
	Subjects []models.Subject
	Teachers []models.Teacher
	Classes  []models.Class
}

// StaffingGap names a subject that no teacher can take for a class year.
type StaffingGap struct {
	SubjectID   string
	SubjectName string
	Year        int
}

// TimetableEngine is a deterministic greedy timetable generator. It holds no
// mutable state, so one engine may serve concurrent callers.
type TimetableEngine struct {
	policy GenerationPolicy
	days   []string
	slots  []TimeSlot
}

// NewTimetableEngine builds an engine over the fixed week layout.
func NewTimetableEngine(policy GenerationPolicy) *TimetableEngine {
	if policy.TeacherSelection == "" {
		policy.TeacherSelection = TeacherSelectionFirstFit
	}
	if policy.SubjectFallback == "" {
		policy.SubjectFallback = SubjectFallbackNone
	}
	return &TimetableEngine{policy: policy, days: Weekdays, slots: DailySlots}
}

// Policy returns the active generation policy.
func (e *TimetableEngine) Policy() GenerationPolicy {
	return e.policy
}

// Generate fills one entry per (class, day, slot) and reports subjects whose
// hours could not be fully placed. The snapshot is not modified.
func (e *TimetableEngine) Generate(snapshot TimetableSnapshot) ([]models.TimetableEntry, models.UnscheduledReport, error) {
	if len(snapshot.Subjects) == 0 || len(snapshot.Teachers) == 0 || len(snapshot.Classes) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrMissingPrerequisiteData, appErrors.ErrMissingPrerequisiteData.Message)
	}

	state := newTimetableState(snapshot, len(e.days), len(e.slots))
	entries := make([]models.TimetableEntry, 0, len(snapshot.Classes)*len(e.days)*len(e.slots))

	for classIdx, class := range snapshot.Classes {
		for dayIdx, day := range e.days {
			for slotIdx, slot := range e.slots {
				entry := models.TimetableEntry{ClassID: class.ID, Day: day, TimeSlot: slot.Label}
				if slot.IsBreak() {
					entry.IsBreak = true
					entries = append(entries, entry)
					continue
				}
				if subjectIdx, teacherIdx, ok := e.pick(state, classIdx, dayIdx, slotIdx); ok {
					subjectID := snapshot.Subjects[subjectIdx].ID
					teacherID := snapshot.Teachers[teacherIdx].ID
					entry.SubjectID = &subjectID
					entry.TeacherID = &teacherID
					state.place(classIdx, subjectIdx, teacherIdx, dayIdx, slotIdx)
				}
				entries = append(entries, entry)
			}
		}
	}

	return entries, BuildUnscheduledReport(snapshot.Subjects, len(snapshot.Classes), state.scheduledBySubject()), nil
}

// StaffingGaps lists (subject, year) pairs that no teacher is qualified and
// eligible for. Such subjects can never be placed for classes of that year.
func (e *TimetableEngine) StaffingGaps(snapshot TimetableSnapshot) []StaffingGap {
	var gaps []StaffingGap
	seenYears := make(map[int]bool)
	for _, class := range snapshot.Classes {
		if seenYears[class.Year] {
			continue
		}
		seenYears[class.Year] = true
		for _, subject := range snapshot.Subjects {
			staffed := false
			for _, teacher := range snapshot.Teachers {
				if teacher.Teaches(subject.ID) && teacher.EligibleFor(class.Year) {
					staffed = true
					break
				}
			}
			if !staffed {
				gaps = append(gaps, StaffingGap{SubjectID: subject.ID, SubjectName: subject.Name, Year: class.Year})
			}
		}
	}
	return gaps
}

// BuildUnscheduledReport compares hours × classCount with the scheduled count
// of every subject.
func BuildUnscheduledReport(subjects []models.Subject, classCount int, scheduled map[string]int) models.UnscheduledReport {
	report := make(models.UnscheduledReport)
	for _, subject := range subjects {
		required := subject.Hours * classCount
		placed := scheduled[subject.ID]
		if placed < required {
			report[subject.ID] = models.UnscheduledSubject{
				Name:             subject.Name,
				UnscheduledHours: required - placed,
			}
		}
	}
	return report
}

func (e *TimetableEngine) pick(state *timetableState, classIdx, dayIdx, slotIdx int) (int, int, bool) {
	candidates := state.candidates(classIdx)
	if len(candidates) == 0 {
		return 0, 0, false
	}
	if e.policy.SubjectFallback != SubjectFallbackNextPriority {
		candidates = candidates[:1]
	}
	for _, subjectIdx := range candidates {
		if teacherIdx, ok := e.selectTeacher(state, classIdx, subjectIdx, dayIdx, slotIdx); ok {
			return subjectIdx, teacherIdx, true
		}
	}
	return 0, 0, false
}

func (e *TimetableEngine) selectTeacher(state *timetableState, classIdx, subjectIdx, dayIdx, slotIdx int) (int, bool) {
	subjectID := state.snapshot.Subjects[subjectIdx].ID
	year := state.snapshot.Classes[classIdx].Year
	for teacherIdx, teacher := range state.snapshot.Teachers {
		if !teacher.Teaches(subjectID) || !teacher.EligibleFor(year) {
			continue
		}
		if state.availability[teacherIdx].CanTeach(dayIdx, slotIdx) {
			return teacherIdx, true
		}
	}
	return 0, false
}

type timetableState struct {
	snapshot     TimetableSnapshot
	remaining    [][]int
	availability []*teacherAvailability
	scheduled    []int
}

func newTimetableState(snapshot TimetableSnapshot, days, slots int) *timetableState {
	remaining := make([][]int, len(snapshot.Classes))
	for classIdx := range snapshot.Classes {
		remaining[classIdx] = make([]int, len(snapshot.Subjects))
		for subjectIdx, subject := range snapshot.Subjects {
			remaining[classIdx][subjectIdx] = subject.Hours
		}
	}
	availability := make([]*teacherAvailability, len(snapshot.Teachers))
	for i := range snapshot.Teachers {
		availability[i] = newTeacherAvailability(days, slots)
	}
	return &timetableState{
		snapshot:     snapshot,
		remaining:    remaining,
		availability: availability,
		scheduled:    make([]int, len(snapshot.Subjects)),
	}
}

// candidates returns subjects with hours left for the class, ordered by
// priority ascending then remaining hours descending. Ties keep enumeration order.
func (s *timetableState) candidates(classIdx int) []int {
	remaining := s.remaining[classIdx]
	result := make([]int, 0, len(remaining))
	for subjectIdx, left := range remaining {
		if left > 0 {
			result = append(result, subjectIdx)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := s.snapshot.Subjects[result[i]], s.snapshot.Subjects[result[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return remaining[result[i]] > remaining[result[j]]
	})
	return result
}

func (s *timetableState) place(classIdx, subjectIdx, teacherIdx, dayIdx, slotIdx int) {
	s.remaining[classIdx][subjectIdx]--
	s.scheduled[subjectIdx]++
	s.availability[teacherIdx].Reserve(dayIdx, slotIdx)
}

func (s *timetableState) scheduledBySubject() map[string]int {
	counts := make(map[string]int, len(s.scheduled))
	for subjectIdx, count := range s.scheduled {
		counts[s.snapshot.Subjects[subjectIdx].ID] += count
	}
	return counts
}

type teacherAvailability struct {
	busy [][]bool
}

func newTeacherAvailability(days, slots int) *teacherAvailability {
	busy := make([][]bool, days)
	for d := range busy {
		busy[d] = make([]bool, slots)
	}
	return &teacherAvailability{busy: busy}
}

func (t *teacherAvailability) CanTeach(day, slot int) bool {
	return !t.busy[day][slot]
}

func (t *teacherAvailability) Reserve(day, slot int) {
	t.busy[day][slot] = true
}
