package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tutiful-scheduler/internal/models"
	"tutiful-scheduler/internal/store"
)

// Scanner assembles the notification batch for a single eligible lesson.
type Scanner struct {
	lessons     store.LessonStore
	enrollments store.EnrollmentStore
}

func NewScanner(lessons store.LessonStore, enrollments store.EnrollmentStore) *Scanner {
	return &Scanner{lessons: lessons, enrollments: enrollments}
}

// BuildBatch validates the lesson's template, resolves the next grade and
// its recommended lessons, and renders one notification per student whose
// enrollment covers asOf. A lesson at a terminal grade, or one with nobody
// currently enrolled, yields an empty batch that still completes the lesson.
func (s *Scanner) BuildBatch(ctx context.Context, lesson *models.Lesson, asOf time.Time) (*Batch, error) {
	template, err := ParseTemplate(lesson.ID, lesson.Template)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Lesson: lesson}

	nextGrade, ok := lesson.Subject.GradeLevel.Next()
	if !ok {
		return batch, nil
	}
	batch.NextGrade = nextGrade

	enrollments, err := s.enrollments.FindCurrent(ctx, lesson.ID, asOf)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return batch, nil
	}

	options, err := s.findOptions(ctx, lesson, template, nextGrade)
	if err != nil {
		return nil, err
	}
	batch.Options = options

	for _, enrollment := range enrollments {
		batch.Recipients = append(batch.Recipients, &Recipient{
			Notification: renderNotification(lesson, enrollment, template, nextGrade, options),
			Email:        enrollment.StudentEmail,
			Phone:        enrollment.StudentPhone,
		})
	}
	return batch, nil
}

// findOptions resolves the next-grade lesson recommendations. Template-picked
// lessons take precedence; otherwise the agency's catalog is searched for the
// same subject at the next grade. Either way only active lessons with spare
// capacity qualify.
func (s *Scanner) findOptions(ctx context.Context, lesson *models.Lesson, template *models.NotificationTemplate, nextGrade models.GradeLevel) ([]models.LessonOption, error) {
	var (
		candidates []*models.Lesson
		err        error
	)

	if len(template.SelectedLessonIDs) > 0 {
		candidates, err = s.lessons.FindAvailableByIDs(ctx, template.SelectedLessonIDs)
	} else {
		candidates, err = s.lessons.FindAvailableBySubject(ctx, lesson.AgencyID, lesson.Subject.Name, nextGrade)
	}
	if err != nil {
		return nil, err
	}

	options := make([]models.LessonOption, 0, len(candidates))
	for _, c := range candidates {
		grade := models.GradeLevel("")
		if c.Subject != nil {
			grade = c.Subject.GradeLevel
		}
		options = append(options, models.LessonOption{
			ID:             c.ID,
			Title:          c.Title,
			DayOfWeek:      c.DayOfWeek,
			StartTime:      c.StartTime,
			EndTime:        c.EndTime,
			GradeLevel:     grade,
			AvailableSpots: c.AvailableSpots(),
		})
	}
	return options, nil
}

func renderNotification(lesson *models.Lesson, enrollment *models.StudentEnrollment, template *models.NotificationTemplate, nextGrade models.GradeLevel, options []models.LessonOption) *models.Notification {
	message := template.CustomMessage
	if message == "" {
		message = fmt.Sprintf(
			"Congratulations %s! You have completed %s %s and are ready to progress to %s.",
			enrollment.StudentName, lesson.Subject.Name, lesson.Subject.GradeLevel, nextGrade)
	}

	lessonID := lesson.ID
	agencyID := lesson.AgencyID
	templateID := lesson.ID

	return &models.Notification{
		ID:               uuid.New().String(),
		UserID:           enrollment.StudentID,
		Type:             models.NotificationGradeProgression,
		Title:            fmt.Sprintf("Ready for %s!", nextGrade),
		Message:          message,
		Priority:         models.PriorityHigh,
		LessonID:         &lessonID,
		AgencyID:         &agencyID,
		SourceTemplateID: &templateID,
		Metadata: models.ProgressionMetadata(
			lesson.Subject.GradeLevel, nextGrade,
			lesson.Subject.Name, enrollment.StudentName, options),
	}
}
