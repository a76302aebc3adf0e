package models

import "time"

// StudentEnrollment links a student to a lesson for a date range.
// StartDate and EndDate are date-only values; the range is inclusive on both
// ends.
type StudentEnrollment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	LessonID  string    `json:"lessonId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	// Joined from the student record for notification rendering and delivery.
	StudentName  string `json:"studentName,omitempty"`
	StudentEmail string `json:"studentEmail,omitempty"`
	StudentPhone string `json:"studentPhone,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// CoversDate reports whether the enrollment is current on the given date,
// inclusive of both endpoints. An enrollment ending today still counts;
// one starting tomorrow does not.
func (e *StudentEnrollment) CoversDate(t time.Time) bool {
	day := truncateToDay(t)
	return !day.Before(truncateToDay(e.StartDate)) && !day.After(truncateToDay(e.EndDate))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
