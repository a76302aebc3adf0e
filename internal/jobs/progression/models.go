// Package progression implements the grade progression scan: finding ended
// lessons with submitted templates, building one notification per currently
// enrolled student, and completing each lesson exactly once.
package progression

import (
	"tutiful-scheduler/internal/models"
)

// Recipient pairs the notification row to insert with the contact details
// used for the best-effort delivery fan-out.
type Recipient struct {
	Notification *models.Notification
	Email        string
	Phone        string
}

// Batch is the complete unit of work for one lesson: every recipient is
// inserted before the lesson's sent flag is flipped. An empty Recipients
// slice is valid and still completes the lesson.
type Batch struct {
	Lesson     *models.Lesson
	NextGrade  models.GradeLevel
	Options    []models.LessonOption
	Recipients []*Recipient
}

// ScanResult summarizes one full scan for logging and the admin endpoint.
// Created counts individual notification rows; Sent/Failed/Conflicts count
// lessons.
type ScanResult struct {
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Conflicts int `json:"conflicts"`
	Created   int `json:"notificationsCreated"`
}
