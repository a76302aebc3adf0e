package models

import (
	"encoding/json"
	"time"
)

// DayOfWeek matches the lessons.day_of_week enum.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// Subject is the subject a lesson teaches, carrying the grade level the
// progression ladder is keyed on.
type Subject struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	GradeLevel GradeLevel `json:"gradeLevel"`
	IsActive   bool       `json:"isActive"`
}

// NotificationTemplate is the agency-authored progression template payload.
// It is stored as JSON on the lesson row; ParseTemplate in the progression
// package validates the raw document before this struct is trusted.
type NotificationTemplate struct {
	CustomMessage     string   `json:"customMessage,omitempty"`
	SelectedLessonIDs []string `json:"selectedLessonIds,omitempty"`
	SubmittedBy       string   `json:"submittedBy,omitempty"`
	CreatedAt         string   `json:"createdAt,omitempty"`
}

// Lesson is a recurring tutoring lesson owned by an agency.
//
// TemplateSubmitted and ProgressionSent are one-way flags: both move
// false -> true exactly once and are never reset by normal operation.
// ProgressionSent is the idempotency gate that keeps a lesson's progression
// batch from being emitted twice.
type Lesson struct {
	ID         string `json:"id"`
	AgencyID   string `json:"agencyId"`
	SubjectID  string `json:"subjectId"`
	TutorID    string `json:"tutorId,omitempty"`
	LocationID string `json:"locationId"`

	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DayOfWeek   DayOfWeek `json:"dayOfWeek"`
	StartTime   string    `json:"startTime"` // "15:04"
	EndTime     string    `json:"endTime"`
	StartDate   time.Time `json:"startDate"` // date only
	EndDate     time.Time `json:"endDate"`
	LessonType  string    `json:"lessonType"`

	TotalCap   int `json:"totalCap"`
	CurrentCap int `json:"currentCap"`

	IsActive bool `json:"isActive"`

	// Template is kept raw so a malformed document surfaces as a per-lesson
	// validation error at scan time instead of a decode panic at load time.
	Template            json.RawMessage `json:"notificationTemplate,omitempty"`
	TemplateSubmitted   bool            `json:"notificationTemplateSubmitted"`
	TemplateSubmittedAt *time.Time      `json:"notificationTemplateSubmittedAt,omitempty"`
	TemplateSubmittedBy string          `json:"notificationTemplateSubmittedBy,omitempty"`

	ProgressionSent bool `json:"progressionNotificationsSent"`

	Subject *Subject `json:"subject,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AvailableSpots returns the remaining enrollment capacity.
func (l *Lesson) AvailableSpots() int {
	spots := l.TotalCap - l.CurrentCap
	if spots < 0 {
		return 0
	}
	return spots
}

// LessonOption is the trimmed-down lesson view offered to students as a
// next-grade recommendation.
type LessonOption struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	DayOfWeek      DayOfWeek  `json:"dayOfWeek"`
	StartTime      string     `json:"startTime"`
	EndTime        string     `json:"endTime"`
	GradeLevel     GradeLevel `json:"gradeLevel"`
	Address        string     `json:"address,omitempty"`
	TutorName      string     `json:"tutor,omitempty"`
	AvailableSpots int        `json:"availableSpots"`
}
