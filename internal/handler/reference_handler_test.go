package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const validID = "5f0c6b0e-8d8e-4f3a-9f1e-2a7c1d9b0c11"

type subjectServiceStub struct {
	subjects  []models.Subject
	created   dto.CreateSubjectRequest
	createErr error
	deletedID string
	deleteErr error
}

func (s *subjectServiceStub) List(context.Context) ([]models.Subject, error) {
	return s.subjects, nil
}

func (s *subjectServiceStub) Create(_ context.Context, req dto.CreateSubjectRequest) (*models.Subject, error) {
	s.created = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Subject{ID: validID, Name: req.Name, Hours: req.Hours, Priority: models.PriorityMedium}, nil
}

func (s *subjectServiceStub) Delete(_ context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

type teacherServiceStub struct {
	created dto.CreateTeacherRequest
}

func (s *teacherServiceStub) List(context.Context) ([]models.TeacherDetail, error) {
	return []models.TeacherDetail{{ID: validID, Name: "Bu Sari", Subjects: []models.Subject{}, Years: []int64{10}}}, nil
}

func (s *teacherServiceStub) Create(_ context.Context, req dto.CreateTeacherRequest) (*models.TeacherDetail, error) {
	s.created = req
	return &models.TeacherDetail{ID: validID, Name: req.Name}, nil
}

func (s *teacherServiceStub) Delete(context.Context, string) error {
	return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
}

type classServiceStub struct{}

func (classServiceStub) List(context.Context) ([]models.Class, error) {
	return []models.Class{{ID: validID, Year: 10, Section: "A", StudentsCount: 30}}, nil
}

func (classServiceStub) Create(_ context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	return nil, appErrors.Clone(appErrors.ErrConflict, "class already exists")
}

func (classServiceStub) Delete(context.Context, string) error { return nil }

func referenceRouter(subjects subjectService, teachers teacherService, classes classService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	sh := NewSubjectHandler(subjects)
	th := NewTeacherHandler(teachers)
	ch := NewClassHandler(classes)
	r.GET("/subjects", sh.List)
	r.POST("/subjects", sh.Create)
	r.DELETE("/subjects/:id", sh.Delete)
	r.GET("/teachers", th.List)
	r.POST("/teachers", th.Create)
	r.DELETE("/teachers/:id", th.Delete)
	r.GET("/classes", ch.List)
	r.POST("/classes", ch.Create)
	r.DELETE("/classes/:id", ch.Delete)
	return r
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestSubjectHandlerCreate(t *testing.T) {
	stub := &subjectServiceStub{}
	r := referenceRouter(stub, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodPost, "/subjects", []byte(`{"name":"Math","hours":4,"requiresLab":false,"priority":1}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Math", stub.created.Name)
	require.NotNil(t, stub.created.Priority)
	assert.Equal(t, 1, *stub.created.Priority)
	assert.Contains(t, decodeEnvelope(t, w), "data")
}

func TestSubjectHandlerCreateMalformedJSON(t *testing.T) {
	r := referenceRouter(&subjectServiceStub{}, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodPost, "/subjects", []byte(`{"name":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubjectHandlerCreateConflict(t *testing.T) {
	stub := &subjectServiceStub{createErr: appErrors.Clone(appErrors.ErrConflict, "subject already exists")}
	r := referenceRouter(stub, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodPost, "/subjects", []byte(`{"name":"Math","hours":4}`))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubjectHandlerDelete(t *testing.T) {
	stub := &subjectServiceStub{}
	r := referenceRouter(stub, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodDelete, "/subjects/"+validID, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, validID, stub.deletedID)
	assert.JSONEq(t, `{"message":"Subject deleted"}`, string(decodeEnvelope(t, w)["data"]))
}

func TestSubjectHandlerDeleteMalformedID(t *testing.T) {
	stub := &subjectServiceStub{}
	r := referenceRouter(stub, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodDelete, "/subjects/42", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, stub.deletedID)
}

func TestTeacherHandlerListAndCreate(t *testing.T) {
	stub := &teacherServiceStub{}
	r := referenceRouter(&subjectServiceStub{}, stub, classServiceStub{})

	w := serve(r, http.MethodGet, "/teachers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"years":[10]`)

	w = serve(r, http.MethodPost, "/teachers", []byte(`{"name":"Pak Budi","subjectIds":["a","b"],"years":[10,11]}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"a", "b"}, stub.created.SubjectIDs)
	assert.Equal(t, []int{10, 11}, stub.created.Years)
}

func TestTeacherHandlerDeleteMissing(t *testing.T) {
	r := referenceRouter(&subjectServiceStub{}, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodDelete, "/teachers/"+validID, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassHandlerEndpoints(t *testing.T) {
	r := referenceRouter(&subjectServiceStub{}, &teacherServiceStub{}, classServiceStub{})

	w := serve(r, http.MethodGet, "/classes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"studentsCount":30`)

	w = serve(r, http.MethodPost, "/classes", []byte(`{"year":10,"section":"A","studentsCount":30}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(r, http.MethodDelete, "/classes/"+validID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
