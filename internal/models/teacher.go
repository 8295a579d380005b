package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents an instructor with subject qualifications and eligible years.
type Teacher struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	SubjectIDs pq.StringArray `db:"subject_ids" json:"subjectIds"`
	Years      pq.Int64Array  `db:"years" json:"years"`
	CreatedAt  time.Time      `db:"created_at" json:"-"`
}

// Teaches reports whether the teacher is qualified for the subject.
func (t Teacher) Teaches(subjectID string) bool {
	for _, id := range t.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// EligibleFor reports whether the teacher may teach classes of the given year.
func (t Teacher) EligibleFor(year int) bool {
	for _, y := range t.Years {
		if int(y) == year {
			return true
		}
	}
	return false
}

// TeacherDetail expands a teacher's subject references for responses.
type TeacherDetail struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Subjects []Subject `json:"subjects"`
	Years    []int64   `json:"years"`
}
