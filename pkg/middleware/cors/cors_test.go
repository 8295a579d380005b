package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serveWithOrigin(allowed []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(allowed))
	r.GET("/api/v1/timetable", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/api/v1/timetable", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(method, "/api/v1/timetable", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowsEveryOriginWhenUnconfigured(t *testing.T) {
	rec := serveWithOrigin(nil, http.MethodGet, "http://localhost:3000")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSEchoesListedOrigin(t *testing.T) {
	rec := serveWithOrigin([]string{"https://school.example/"}, http.MethodGet, "https://School.example")

	assert.Equal(t, "https://School.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Location")
}

func TestCORSPreflight(t *testing.T) {
	rec := serveWithOrigin([]string{"https://school.example"}, http.MethodOptions, "https://school.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, allowMethods, rec.Header().Get("Access-Control-Allow-Methods"))

	rec = serveWithOrigin([]string{"https://school.example"}, http.MethodOptions, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSUnlistedSimpleRequestPassesWithoutHeader(t *testing.T) {
	rec := serveWithOrigin([]string{"https://school.example"}, http.MethodGet, "https://evil.example")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
