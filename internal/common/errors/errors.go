// Package errors provides the standardized error taxonomy for the
// progression notification scheduler.
//
// Errors are classified as retryable (a later scan tick will try the lesson
// again, because its sent flag was never flipped) or non-retryable (the
// condition needs human intervention, usually an agency admin fixing a
// template).
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeLessonQueryFailed     ErrorCode = "LESSON_QUERY_FAILED"
	ErrCodeEnrollmentQueryFailed ErrorCode = "ENROLLMENT_QUERY_FAILED"

	ErrCodeTemplateInvalid          ErrorCode = "TEMPLATE_INVALID"
	ErrCodeTemplateAlreadySubmitted ErrorCode = "TEMPLATE_ALREADY_SUBMITTED"

	ErrCodeNotificationInsertFailed ErrorCode = "NOTIFICATION_INSERT_FAILED"
	ErrCodeNotificationNotFound     ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeSentFlagUpdateFailed ErrorCode = "SENT_FLAG_UPDATE_FAILED"
	ErrCodeSentFlagConflict     ErrorCode = "SENT_FLAG_CONFLICT"

	ErrCodeScanInFlight   ErrorCode = "SCAN_IN_FLIGHT"
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	ErrCodeLessonNotFound ErrorCode = "LESSON_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewLessonQueryFailedError wraps a failure of the bulk eligible-lesson
// query. The whole tick is a no-op; no flags were touched.
func NewLessonQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLessonQueryFailed,
		Message:   "Eligible lesson query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEnrollmentQueryFailedError wraps a failure loading one lesson's current
// enrollments; isolated to that lesson.
func NewEnrollmentQueryFailedError(lessonID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnrollmentQueryFailed,
		Message:   "Enrollment query failed",
		Details:   fmt.Sprintf("lessonId: %s, error: %s", lessonID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateInvalidError marks an agency-authored template that fails schema
// validation. The lesson stays eligible until an admin fixes the template.
func NewTemplateInvalidError(lessonID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateInvalid,
		Message:   "Notification template failed validation",
		Details:   fmt.Sprintf("lessonId: %s, %s", lessonID, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateAlreadySubmittedError rejects a second template submission for
// the same lesson; the submitted flag is one-way.
func NewTemplateAlreadySubmittedError(lessonID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateAlreadySubmitted,
		Message:   "Notification template has already been submitted for this lesson",
		Details:   fmt.Sprintf("lessonId: %s", lessonID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationInsertFailedError wraps a failed notification row write.
// The lesson's sent flag is left untouched so the batch retries next tick.
func NewNotificationInsertFailedError(lessonID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationInsertFailed,
		Message:   "Notification insert failed",
		Details:   fmt.Sprintf("lessonId: %s, error: %s", lessonID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError is returned by the read API for an id that
// does not exist or belongs to another user.
func NewNotificationNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("notificationId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSentFlagUpdateFailedError wraps a failed conditional update of the
// progression sent flag.
func NewSentFlagUpdateFailedError(lessonID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSentFlagUpdateFailed,
		Message:   "Progression sent flag update failed",
		Details:   fmt.Sprintf("lessonId: %s, error: %s", lessonID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSentFlagConflictError reports that the conditional update matched zero
// rows: another scan process completed the lesson first.
func NewSentFlagConflictError(lessonID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSentFlagConflict,
		Message:   "Lesson was already marked sent by another process",
		Details:   fmt.Sprintf("lessonId: %s", lessonID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScanInFlightError is returned to a manual trigger while a scan is live.
func NewScanInFlightError() *StandardError {
	return &StandardError{
		Code:      ErrCodeScanInFlight,
		Message:   "A progression scan is already running",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError wraps a failed email/SMS fan-out. Delivery is
// best-effort; the notification row already exists.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLessonNotFoundError is returned by the template API for an unknown lesson.
func NewLessonNotFoundError(lessonID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLessonNotFound,
		Message:   "Lesson not found",
		Details:   fmt.Sprintf("lessonId: %s", lessonID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err (or any error it wraps) is a retryable
// StandardError. Unknown errors are treated as retryable: the sent flag is
// only ever flipped after success, so retrying is always safe.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// CodeOf extracts the ErrorCode from err, or "" if it is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}
