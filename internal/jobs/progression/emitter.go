package progression

import (
	"context"

	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/common/metrics"
	"tutiful-scheduler/internal/delivery"
	"tutiful-scheduler/internal/store"
)

// Deliverer is the outbound channel fan-out, satisfied by delivery.Sender.
type Deliverer interface {
	Send(ctx context.Context, msg delivery.Message) error
}

// Emitter persists a batch and completes its lesson.
type Emitter struct {
	lessons       store.LessonStore
	notifications store.NotificationStore
	sender        Deliverer
	log           logger.Logger
}

func NewEmitter(lessons store.LessonStore, notifications store.NotificationStore, sender Deliverer, log logger.Logger) *Emitter {
	return &Emitter{
		lessons:       lessons,
		notifications: notifications,
		sender:        sender,
		log:           log,
	}
}

// Emit inserts every notification row, then conditionally flips the lesson's
// sent flag. The flag moves only after all inserts succeed, so a partial
// failure leaves the lesson eligible and the whole batch is retried next
// tick. Duplicate rows from such a retry are accepted; a missed progression
// is worse than a doubled one.
//
// Emit returns (created, flipped, err). created is the number of rows
// actually inserted, counted even on failure so the caller can report the
// partial write. flipped is false with a nil error when another process
// completed the lesson between the scan query and the flag update.
func (e *Emitter) Emit(ctx context.Context, batch *Batch) (int, bool, error) {
	created := 0
	for _, recipient := range batch.Recipients {
		if err := e.notifications.Create(ctx, recipient.Notification); err != nil {
			return created, false, err
		}
		created++
		metrics.NotificationsCreated.Inc()
	}

	flipped, err := e.lessons.MarkProgressionSent(ctx, batch.Lesson.ID)
	if err != nil {
		return created, false, err
	}
	if !flipped {
		e.log.Warn("Lesson already completed by another process", map[string]interface{}{
			"lessonId": batch.Lesson.ID,
		})
		return created, false, nil
	}

	e.deliver(ctx, batch)
	return created, true, nil
}

// deliver fans the batch out to email and SMS after the lesson is already
// complete. Failures are logged and counted inside the sender; they never
// affect the scan outcome.
func (e *Emitter) deliver(ctx context.Context, batch *Batch) {
	if e.sender == nil {
		return
	}

	for _, recipient := range batch.Recipients {
		msg := delivery.Message{
			Email:   recipient.Email,
			Phone:   recipient.Phone,
			Subject: recipient.Notification.Title,
			Body:    recipient.Notification.Message,
		}
		if err := e.sender.Send(ctx, msg); err != nil {
			e.log.Warn("Notification delivery failed", map[string]interface{}{
				"lessonId":       batch.Lesson.ID,
				"notificationId": recipient.Notification.ID,
				"error":          err.Error(),
			})
		}
	}
}
