package models

// Break kinds reported for non-teaching slots.
const (
	BreakTypeBreak = "Break"
	BreakTypeLunch = "Lunch"
)

// TimetableEntry is one (class, day, slot) cell of a generated timetable.
// A cell is a break, an assignment (subject and teacher set) or empty.
type TimetableEntry struct {
	ID        string  `db:"id" json:"id"`
	ClassID   string  `db:"class_id" json:"classId"`
	Day       string  `db:"day" json:"day"`
	TimeSlot  string  `db:"time_slot" json:"timeSlot"`
	SubjectID *string `db:"subject_id" json:"subjectId,omitempty"`
	TeacherID *string `db:"teacher_id" json:"teacherId,omitempty"`
	IsBreak   bool    `db:"is_break" json:"isBreak"`
}

// IsAssignment reports whether the cell carries a subject/teacher pair.
func (e TimetableEntry) IsAssignment() bool {
	return !e.IsBreak && e.SubjectID != nil && e.TeacherID != nil
}

// IsEmpty reports whether the cell is neither a break nor an assignment.
func (e TimetableEntry) IsEmpty() bool {
	return !e.IsBreak && e.SubjectID == nil && e.TeacherID == nil
}

// UnscheduledSubject reports the shortfall for one subject across all classes.
type UnscheduledSubject struct {
	Name             string `json:"name"`
	UnscheduledHours int    `json:"unscheduledHours"`
}

// UnscheduledReport maps subject id to its shortfall. Fully placed subjects are absent.
type UnscheduledReport map[string]UnscheduledSubject

// GenerationJobStatus enumerates async generation states.
type GenerationJobStatus string

const (
	GenerationJobQueued    GenerationJobStatus = "QUEUED"
	GenerationJobRunning   GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed    GenerationJobStatus = "FAILED"
)
