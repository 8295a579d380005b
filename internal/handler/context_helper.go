package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// pathID returns the :id parameter. Ids that are not UUIDs cannot match a row
// and are reported as not found.
func pathID(c *gin.Context, resource string) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	}
	return id, nil
}
