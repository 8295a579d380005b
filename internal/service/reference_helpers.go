package service

import (
	"context"
	"errors"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

type timetableCacheInvalidator interface {
	InvalidateTimetable(ctx context.Context)
}

// isUniqueViolation reports whether err came from a unique constraint.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
