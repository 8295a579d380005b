package models

import "time"

// Subject priority levels. Lower values are scheduled first.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// Subject represents a taught subject and its weekly per-class quota.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Hours       int       `db:"hours" json:"hours"`
	RequiresLab bool      `db:"requires_lab" json:"requiresLab"`
	Priority    int       `db:"priority" json:"priority"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}
