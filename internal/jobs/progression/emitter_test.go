package progression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/delivery"
	"tutiful-scheduler/internal/models"
)

func testBatch(lessonID string, studentIDs ...string) *Batch {
	lesson := testLesson(lessonID, models.GradeP3, date(2025, 5, 31), "")
	batch := &Batch{Lesson: lesson, NextGrade: models.GradeP4}
	for _, id := range studentIDs {
		batch.Recipients = append(batch.Recipients, &Recipient{
			Notification: &models.Notification{
				ID:      "notif-" + id,
				UserID:  id,
				Type:    models.NotificationGradeProgression,
				Title:   "Ready for P4!",
				Message: "msg",
			},
			Email: id + "@example.com",
		})
	}
	return batch
}

func TestEmitter_Emit_InsertsThenFlipsFlag(t *testing.T) {
	lessons := &mockLessonStore{}
	notifications := &mockNotificationStore{}
	sender := &mockDeliverer{}
	emitter := NewEmitter(lessons, notifications, sender, logger.NewNoOpLogger())

	created, flipped, err := emitter.Emit(context.Background(), testBatch("lesson-1", "a", "b"))
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, 2, created)
	assert.Len(t, notifications.createdRows(), 2)
	assert.Equal(t, []string{"lesson-1"}, lessons.marked())
	assert.Len(t, sender.messages(), 2)
}

// A failed insert must leave the sent flag untouched so the whole batch is
// retried next tick.
func TestEmitter_Emit_PartialInsertLeavesFlagUnset(t *testing.T) {
	lessons := &mockLessonStore{}
	notifications := &mockNotificationStore{
		CreateFunc: func(ctx context.Context, n *models.Notification) error {
			if n.UserID == "b" {
				return assert.AnError
			}
			return nil
		},
	}
	emitter := NewEmitter(lessons, notifications, nil, logger.NewNoOpLogger())

	created, flipped, err := emitter.Emit(context.Background(), testBatch("lesson-1", "a", "b", "c"))
	require.Error(t, err)
	assert.False(t, flipped)
	assert.Empty(t, lessons.marked())
	// Only the insert before the failure landed; the retry re-sends all three.
	assert.Equal(t, 1, created)
	assert.Len(t, notifications.createdRows(), 1)
}

// Losing the conditional update means another process completed the lesson.
// That is a skip, not a failure.
func TestEmitter_Emit_ConflictIsNotAnError(t *testing.T) {
	lessons := &mockLessonStore{
		MarkProgressionSentFunc: func(ctx context.Context, lessonID string) (bool, error) {
			return false, nil
		},
	}
	sender := &mockDeliverer{}
	emitter := NewEmitter(lessons, &mockNotificationStore{}, sender, logger.NewNoOpLogger())

	created, flipped, err := emitter.Emit(context.Background(), testBatch("lesson-1", "a"))
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.Equal(t, 1, created)
	// No delivery for a lesson this process did not complete.
	assert.Empty(t, sender.messages())
}

// An empty batch still flips the flag: zero recipients is a valid outcome,
// not a reason to rescan forever.
func TestEmitter_Emit_EmptyBatchCompletesLesson(t *testing.T) {
	lessons := &mockLessonStore{}
	notifications := &mockNotificationStore{}
	emitter := NewEmitter(lessons, notifications, nil, logger.NewNoOpLogger())

	created, flipped, err := emitter.Emit(context.Background(), testBatch("lesson-1"))
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, 0, created)
	assert.Empty(t, notifications.createdRows())
	assert.Equal(t, []string{"lesson-1"}, lessons.marked())
}

// Delivery runs after the lesson is complete and never affects the result.
func TestEmitter_Emit_DeliveryFailureDoesNotFailBatch(t *testing.T) {
	lessons := &mockLessonStore{}
	sender := &mockDeliverer{
		SendFunc: func(ctx context.Context, msg delivery.Message) error {
			return assert.AnError
		},
	}
	emitter := NewEmitter(lessons, &mockNotificationStore{}, sender, logger.NewNoOpLogger())

	created, flipped, err := emitter.Emit(context.Background(), testBatch("lesson-1", "a"))
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, 1, created)
	assert.Equal(t, []string{"lesson-1"}, lessons.marked())
}
