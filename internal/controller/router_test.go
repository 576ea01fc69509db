package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/Freeeeeet/studygroups/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGroups struct {
	lastOptIn service.OptInRequest
	err       error
}

func (s *stubGroups) OptIn(_ context.Context, req service.OptInRequest) (*model.StatusResult, error) {
	s.lastOptIn = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.StatusResult{Status: model.GroupStatusWaiting, PoolID: "p1"}, nil
}

func (s *stubGroups) OptOut(context.Context, string, string) (*model.StatusResult, error) {
	return &model.StatusResult{Status: model.GroupStatusOptedOut}, s.err
}

func (s *stubGroups) Clear(context.Context, string, string) (*model.StatusResult, error) {
	return &model.StatusResult{Status: model.GroupStatusCleared}, s.err
}

type stubStatus struct {
	courseID, studentID string
}

func (s *stubStatus) Status(_ context.Context, courseID, studentID string) (*model.StatusResult, error) {
	s.courseID, s.studentID = courseID, studentID
	return &model.StatusResult{Status: model.GroupStatusNone}, nil
}

func newTestRouter(groups *stubGroups, status *stubStatus) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewStudyGroupHandler(groups, status, zap.NewNop()), zap.NewNop())
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestOptInPassesRequest(t *testing.T) {
	groups := &stubGroups{}
	r := newTestRouter(groups, &stubStatus{})

	rec, payload := do(t, r, http.MethodPost, "/api/courses/c1/study-groups/opt-in",
		`{"studentId":"s1","conceptIds":["k1","k2"],"skipMatching":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "waiting", payload["status"])
	assert.Equal(t, service.OptInRequest{
		CourseID:     "c1",
		StudentID:    "s1",
		ConceptIDs:   []string{"k1", "k2"},
		SkipMatching: true,
	}, groups.lastOptIn)
}

func TestServiceErrorsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", fmt.Errorf("%w: must select at least one concept", service.ErrValidation), http.StatusBadRequest},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubGroups{err: tt.err}, &stubStatus{})

			rec, payload := do(t, r, http.MethodPost, "/api/courses/c1/study-groups/opt-in",
				`{"studentId":"s1","conceptIds":[]}`)

			assert.Equal(t, tt.code, rec.Code)
			apiErr, ok := payload["error"].(map[string]any)
			require.True(t, ok)
			assert.NotEmpty(t, apiErr["message"])
			assert.NotContains(t, apiErr["message"], "connection reset")
		})
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	r := newTestRouter(&stubGroups{}, &stubStatus{})

	rec, _ := do(t, r, http.MethodPost, "/api/courses/c1/study-groups/opt-out", `{"studentId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptOutAndClear(t *testing.T) {
	r := newTestRouter(&stubGroups{}, &stubStatus{})

	_, payload := do(t, r, http.MethodPost, "/api/courses/c1/study-groups/opt-out", `{"studentId":"s1"}`)
	assert.Equal(t, "opted_out", payload["status"])

	_, payload = do(t, r, http.MethodPost, "/api/courses/c1/study-groups/clear", `{"studentId":"s1"}`)
	assert.Equal(t, "cleared", payload["status"])
}

func TestStatusReadsQuery(t *testing.T) {
	status := &stubStatus{}
	r := newTestRouter(&stubGroups{}, status)

	rec, payload := do(t, r, http.MethodGet, "/api/courses/c9/study-groups/status?studentId=s7", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", payload["status"])
	assert.Equal(t, "c9", status.courseID)
	assert.Equal(t, "s7", status.studentID)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(&stubGroups{}, &stubStatus{})

	rec, payload := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
}
