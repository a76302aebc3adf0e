package progression

import (
	"context"
	"sync"
	"time"

	"tutiful-scheduler/internal/delivery"
	"tutiful-scheduler/internal/models"
)

type mockLessonStore struct {
	FindPendingProgressionFunc func(ctx context.Context, asOf time.Time) ([]*models.Lesson, error)
	MarkProgressionSentFunc    func(ctx context.Context, lessonID string) (bool, error)
	FindAvailableByIDsFunc     func(ctx context.Context, ids []string) ([]*models.Lesson, error)
	FindAvailableBySubjectFunc func(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error)

	mu         sync.Mutex
	markedSent []string
}

func (m *mockLessonStore) FindPendingProgression(ctx context.Context, asOf time.Time) ([]*models.Lesson, error) {
	if m.FindPendingProgressionFunc != nil {
		return m.FindPendingProgressionFunc(ctx, asOf)
	}
	return nil, nil
}

func (m *mockLessonStore) CountPendingProgression(ctx context.Context, asOf time.Time) (int, error) {
	lessons, err := m.FindPendingProgression(ctx, asOf)
	return len(lessons), err
}

func (m *mockLessonStore) MarkProgressionSent(ctx context.Context, lessonID string) (bool, error) {
	m.mu.Lock()
	m.markedSent = append(m.markedSent, lessonID)
	m.mu.Unlock()
	if m.MarkProgressionSentFunc != nil {
		return m.MarkProgressionSentFunc(ctx, lessonID)
	}
	return true, nil
}

func (m *mockLessonStore) marked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.markedSent...)
}

func (m *mockLessonStore) FindAvailableByIDs(ctx context.Context, ids []string) ([]*models.Lesson, error) {
	if m.FindAvailableByIDsFunc != nil {
		return m.FindAvailableByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *mockLessonStore) FindAvailableBySubject(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error) {
	if m.FindAvailableBySubjectFunc != nil {
		return m.FindAvailableBySubjectFunc(ctx, agencyID, subjectName, grade)
	}
	return nil, nil
}

func (m *mockLessonStore) GetByID(ctx context.Context, lessonID string) (*models.Lesson, error) {
	return nil, nil
}

func (m *mockLessonStore) SubmitTemplate(ctx context.Context, lessonID, submittedBy string, template []byte) error {
	return nil
}

type mockEnrollmentStore struct {
	FindCurrentFunc func(ctx context.Context, lessonID string, asOf time.Time) ([]*models.StudentEnrollment, error)
}

func (m *mockEnrollmentStore) FindCurrent(ctx context.Context, lessonID string, asOf time.Time) ([]*models.StudentEnrollment, error) {
	if m.FindCurrentFunc != nil {
		return m.FindCurrentFunc(ctx, lessonID, asOf)
	}
	return nil, nil
}

type mockNotificationStore struct {
	CreateFunc func(ctx context.Context, n *models.Notification) error

	mu      sync.Mutex
	created []*models.Notification
}

func (m *mockNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.created = append(m.created, n)
	m.mu.Unlock()
	return nil
}

func (m *mockNotificationStore) createdRows() []*models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Notification(nil), m.created...)
}

func (m *mockNotificationStore) GetByID(ctx context.Context, id, userID string) (*models.Notification, error) {
	return nil, nil
}

func (m *mockNotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*models.Notification, error) {
	return nil, nil
}

func (m *mockNotificationStore) CountByUser(ctx context.Context, userID string) (int, int, error) {
	return 0, 0, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id, userID string) error { return nil }

func (m *mockNotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockNotificationStore) Delete(ctx context.Context, id, userID string) error { return nil }

type mockDeliverer struct {
	SendFunc func(ctx context.Context, msg delivery.Message) error

	mu   sync.Mutex
	sent []delivery.Message
}

func (m *mockDeliverer) Send(ctx context.Context, msg delivery.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

func (m *mockDeliverer) messages() []delivery.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery.Message(nil), m.sent...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
