package models

import "time"

// NotificationType classifies notification rows.
type NotificationType string

const (
	NotificationGradeProgression NotificationType = "grade_progression"
	NotificationLessonReminder   NotificationType = "lesson_reminder"
	NotificationSystemAlert      NotificationType = "system_alert"
)

// NotificationPriority is the display priority for a notification.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is a persisted in-app notification addressed to one user.
// Grade progression rows carry the source lesson and template reference plus
// a metadata document describing the recommended next-grade options.
type Notification struct {
	ID       string               `json:"id"`
	UserID   string               `json:"userId"`
	Type     NotificationType     `json:"type"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Priority NotificationPriority `json:"priority"`
	IsRead   bool                 `json:"isRead"`

	LessonID         *string    `json:"lessonId,omitempty"`
	AgencyID         *string    `json:"agencyId,omitempty"`
	SourceTemplateID *string    `json:"sourceTemplateId,omitempty"`
	ScheduledFor     *time.Time `json:"scheduledFor,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// ProgressionMetadata builds the metadata document attached to a grade
// progression notification.
func ProgressionMetadata(current, next GradeLevel, subjectName, studentName string, options []LessonOption) map[string]interface{} {
	ids := make([]string, 0, len(options))
	for _, opt := range options {
		ids = append(ids, opt.ID)
	}
	meta := map[string]interface{}{
		"currentGrade":       string(current),
		"nextGrade":          string(next),
		"subjectName":        subjectName,
		"studentName":        studentName,
		"availableLessonIds": ids,
		"sentAutomatically":  true,
		"sentDate":           time.Now().UTC().Format(time.RFC3339),
	}
	if len(ids) == 1 {
		meta["targetLessonId"] = ids[0]
	}
	return meta
}
