package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutiful-scheduler/internal/cache"
	"tutiful-scheduler/internal/common/config"
	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/models"
)

type mockLessonStore struct {
	GetByIDFunc                func(ctx context.Context, lessonID string) (*models.Lesson, error)
	SubmitTemplateFunc         func(ctx context.Context, lessonID, submittedBy string, template []byte) error
	FindAvailableBySubjectFunc func(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error)
}

func (m *mockLessonStore) FindPendingProgression(ctx context.Context, asOf time.Time) ([]*models.Lesson, error) {
	return nil, nil
}

func (m *mockLessonStore) CountPendingProgression(ctx context.Context, asOf time.Time) (int, error) {
	return 0, nil
}

func (m *mockLessonStore) MarkProgressionSent(ctx context.Context, lessonID string) (bool, error) {
	return false, nil
}

func (m *mockLessonStore) FindAvailableByIDs(ctx context.Context, ids []string) ([]*models.Lesson, error) {
	return nil, nil
}

func (m *mockLessonStore) FindAvailableBySubject(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error) {
	if m.FindAvailableBySubjectFunc != nil {
		return m.FindAvailableBySubjectFunc(ctx, agencyID, subjectName, grade)
	}
	return nil, nil
}

func (m *mockLessonStore) GetByID(ctx context.Context, lessonID string) (*models.Lesson, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, lessonID)
	}
	return nil, errors.NewLessonNotFoundError(lessonID)
}

func (m *mockLessonStore) SubmitTemplate(ctx context.Context, lessonID, submittedBy string, template []byte) error {
	if m.SubmitTemplateFunc != nil {
		return m.SubmitTemplateFunc(ctx, lessonID, submittedBy, template)
	}
	return nil
}

type mockEnrollmentStore struct{}

func (m *mockEnrollmentStore) FindCurrent(ctx context.Context, lessonID string, asOf time.Time) ([]*models.StudentEnrollment, error) {
	return nil, nil
}

type mockNotificationStore struct {
	ListByUserFunc  func(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*models.Notification, error)
	CountByUserFunc func(ctx context.Context, userID string) (int, int, error)
	MarkReadFunc    func(ctx context.Context, id, userID string) error
	DeleteFunc      func(ctx context.Context, id, userID string) error
}

func (m *mockNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	return nil
}

func (m *mockNotificationStore) GetByID(ctx context.Context, id, userID string) (*models.Notification, error) {
	return nil, errors.NewNotificationNotFoundError(id)
}

func (m *mockNotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*models.Notification, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset, unreadOnly)
	}
	return nil, nil
}

func (m *mockNotificationStore) CountByUser(ctx context.Context, userID string) (int, int, error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}
	return 0, 0, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id, userID)
	}
	return nil
}

func (m *mockNotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockNotificationStore) Delete(ctx context.Context, id, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return nil
}

type mockTrigger struct {
	RunNowFunc func(ctx context.Context) error
	calls      int
}

func (m *mockTrigger) RunNow(ctx context.Context) error {
	m.calls++
	if m.RunNowFunc != nil {
		return m.RunNowFunc(ctx)
	}
	return nil
}

func newTestHandler(lessons *mockLessonStore, notifications *mockNotificationStore, trigger *mockTrigger) http.Handler {
	if lessons == nil {
		lessons = &mockLessonStore{}
	}
	if notifications == nil {
		notifications = &mockNotificationStore{}
	}
	if trigger == nil {
		trigger = &mockTrigger{}
	}
	log := logger.NewNoOpLogger()
	handlers := NewHandlers(
		lessons, &mockEnrollmentStore{}, notifications,
		cache.NewUnreadCache(nil, log), trigger, nil, log)
	server := NewServer(config.APIConfig{Host: "127.0.0.1", Port: 0}, handlers, log)
	return server.httpServer.Handler
}

func doRequest(t *testing.T, handler http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestAPI_MissingIdentityIsRejected(t *testing.T) {
	handler := newTestHandler(nil, nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestAPI_ListNotifications(t *testing.T) {
	notifications := &mockNotificationStore{
		ListByUserFunc: func(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*models.Notification, error) {
			assert.Equal(t, "student-1", userID)
			return []*models.Notification{
				{ID: "notif-1", UserID: userID, Type: models.NotificationGradeProgression, Title: "Ready for P4!"},
			}, nil
		},
	}
	handler := newTestHandler(nil, notifications, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/notifications", "student-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	list, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestAPI_CountNotifications(t *testing.T) {
	notifications := &mockNotificationStore{
		CountByUserFunc: func(ctx context.Context, userID string) (int, int, error) {
			return 5, 2, nil
		},
	}
	handler := newTestHandler(nil, notifications, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/notifications/count", "student-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	counts, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), counts["total"])
	assert.Equal(t, float64(2), counts["unread"])
}

func TestAPI_MarkRead_NotFound(t *testing.T) {
	notifications := &mockNotificationStore{
		MarkReadFunc: func(ctx context.Context, id, userID string) error {
			return errors.NewNotificationNotFoundError(id)
		},
	}
	handler := newTestHandler(nil, notifications, nil)

	rec := doRequest(t, handler, http.MethodPatch, "/api/notifications/missing/read", "student-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SubmitTemplate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
	}{
		{
			name:       "valid template accepted",
			body:       `{"customMessage":"Onward!","selectedLessonIds":["next-1"]}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "schema violation rejected",
			body:       `{"customMessage":42}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "resubmission conflicts",
			body:       `{}`,
			submitErr:  errors.NewTemplateAlreadySubmittedError("lesson-1"),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown lesson",
			body:       `{}`,
			submitErr:  errors.NewLessonNotFoundError("lesson-1"),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons := &mockLessonStore{
				SubmitTemplateFunc: func(ctx context.Context, lessonID, submittedBy string, template []byte) error {
					assert.Equal(t, "lesson-1", lessonID)
					assert.Equal(t, "admin-1", submittedBy)
					return tt.submitErr
				},
			}
			handler := newTestHandler(lessons, nil, nil)

			rec := doRequest(t, handler, http.MethodPost, "/api/lessons/lesson-1/template", "admin-1", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAPI_NextGradeOptions(t *testing.T) {
	lessons := &mockLessonStore{
		GetByIDFunc: func(ctx context.Context, lessonID string) (*models.Lesson, error) {
			return &models.Lesson{
				ID:       lessonID,
				AgencyID: "agency-1",
				Subject: &models.Subject{
					Name:       "Mathematics",
					GradeLevel: models.GradeP3,
				},
			}, nil
		},
		FindAvailableBySubjectFunc: func(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error) {
			assert.Equal(t, models.GradeP4, grade)
			return []*models.Lesson{
				{
					ID:       "opt-1",
					Title:    "P4 Math",
					TotalCap: 10,
					Subject:  &models.Subject{GradeLevel: models.GradeP4},
				},
			}, nil
		},
	}
	handler := newTestHandler(lessons, nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/lessons/lesson-1/next-grade-options", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "P4", data["nextGrade"])
	options, ok := data["options"].([]interface{})
	require.True(t, ok)
	assert.Len(t, options, 1)
}

func TestAPI_NextGradeOptions_TerminalGrade(t *testing.T) {
	lessons := &mockLessonStore{
		GetByIDFunc: func(ctx context.Context, lessonID string) (*models.Lesson, error) {
			return &models.Lesson{
				ID:      lessonID,
				Subject: &models.Subject{Name: "Mathematics", GradeLevel: models.GradeJC2},
			}, nil
		},
	}
	handler := newTestHandler(lessons, nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/lessons/lesson-1/next-grade-options", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	assert.Nil(t, data["nextGrade"])
}

func TestAPI_RunScheduler(t *testing.T) {
	trigger := &mockTrigger{}
	handler := newTestHandler(nil, nil, trigger)

	rec := doRequest(t, handler, http.MethodPost, "/admin/scheduler/run", "admin-1", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, trigger.calls)
}

func TestAPI_RunScheduler_Conflict(t *testing.T) {
	trigger := &mockTrigger{
		RunNowFunc: func(ctx context.Context) error {
			return errors.NewScanInFlightError()
		},
	}
	handler := newTestHandler(nil, nil, trigger)

	rec := doRequest(t, handler, http.MethodPost, "/admin/scheduler/run", "admin-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_SchedulerStatus(t *testing.T) {
	handler := newTestHandler(&mockLessonStore{}, nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/admin/scheduler/status", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["pendingLessons"])
}

func TestAPI_Health(t *testing.T) {
	handler := newTestHandler(nil, nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
