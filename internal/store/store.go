// Package store defines the persistence interfaces consumed by the scheduler
// and the HTTP API. Implementations live in the postgres subpackage; tests
// substitute hand-written mocks.
package store

import (
	"context"
	"time"

	"tutiful-scheduler/internal/models"
)

// LessonStore is the lesson-side persistence surface.
type LessonStore interface {
	// FindPendingProgression returns active lessons with a submitted template,
	// progression not yet sent, and end date on or before asOf.
	FindPendingProgression(ctx context.Context, asOf time.Time) ([]*models.Lesson, error)

	// CountPendingProgression reports the size of the pending backlog without
	// loading the rows.
	CountPendingProgression(ctx context.Context, asOf time.Time) (int, error)

	// MarkProgressionSent conditionally flips the sent flag. It returns false
	// with a nil error when the flag was already set, which the caller treats
	// as another process having won the race.
	MarkProgressionSent(ctx context.Context, lessonID string) (bool, error)

	// FindAvailableByIDs loads the given lessons filtered to active rows with
	// spare capacity, preserving no particular order.
	FindAvailableByIDs(ctx context.Context, ids []string) ([]*models.Lesson, error)

	// FindAvailableBySubject finds active lessons with spare capacity for an
	// agency teaching the named subject at the given grade level.
	FindAvailableBySubject(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error)

	GetByID(ctx context.Context, lessonID string) (*models.Lesson, error)

	// SubmitTemplate stores the template document and sets the submitted flag.
	// It fails with ErrCodeTemplateAlreadySubmitted if a template was already
	// submitted for the lesson.
	SubmitTemplate(ctx context.Context, lessonID, submittedBy string, template []byte) error
}

// EnrollmentStore loads enrollment rows joined with student contact details.
type EnrollmentStore interface {
	// FindCurrent returns the enrollments for a lesson whose date range covers
	// asOf, inclusive of both endpoints.
	FindCurrent(ctx context.Context, lessonID string, asOf time.Time) ([]*models.StudentEnrollment, error)
}

// NotificationStore is the notification-row persistence surface.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id, userID string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*models.Notification, error)
	CountByUser(ctx context.Context, userID string) (total int, unread int, err error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
}

// Clock abstracts time.Now so scan-date behavior is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
