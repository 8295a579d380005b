package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableCell renders one grid cell. Empty cells are serialised as null.
type TimetableCell struct {
	IsBreak   bool                  `json:"isBreak,omitempty"`
	BreakType string                `json:"breakType,omitempty"`
	Subject   *models.Subject       `json:"subject,omitempty"`
	Teacher   *models.TeacherDetail `json:"teacher,omitempty"`
}

// ClassTimetable is the day -> slot -> cell grid of one class.
type ClassTimetable struct {
	ClassInfo models.Class                         `json:"classInfo"`
	Timetable map[string]map[string]*TimetableCell `json:"timetable"`
}

// TimetableView is the full stored timetable with its unscheduled report.
type TimetableView struct {
	Timetable       map[string]ClassTimetable `json:"timetable"`
	UnscheduledInfo models.UnscheduledReport  `json:"unscheduledInfo"`
}

// TimetableExportQuery selects the export format and optional class filter.
type TimetableExportQuery struct {
	Format  string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
	ClassID string `form:"classId" validate:"omitempty,uuid"`
}

// TimetableExport is a rendered export document.
type TimetableExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// GenerationJob reports the state of an async generation request.
type GenerationJob struct {
	ID              string                     `json:"id"`
	Status          models.GenerationJobStatus `json:"status"`
	Attempts        int                        `json:"attempts"`
	Error           *ErrorSummary              `json:"error,omitempty"`
	UnscheduledInfo models.UnscheduledReport   `json:"unscheduledInfo,omitempty"`
	EnqueuedAt      time.Time                  `json:"enqueuedAt"`
	StartedAt       *time.Time                 `json:"startedAt,omitempty"`
	FinishedAt      *time.Time                 `json:"finishedAt,omitempty"`
}

// ErrorSummary is the client-facing part of a failed job.
type ErrorSummary struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
