package models

import (
	"fmt"
	"time"
)

// Class represents a year/section cohort that receives a timetable.
type Class struct {
	ID            string    `db:"id" json:"id"`
	Year          int       `db:"year" json:"year"`
	Section       string    `db:"section" json:"section"`
	StudentsCount int       `db:"students_count" json:"studentsCount"`
	CreatedAt     time.Time `db:"created_at" json:"-"`
}

// Label renders the class as "Year N - S".
func (c Class) Label() string {
	return fmt.Sprintf("Year %d - %s", c.Year, c.Section)
}
