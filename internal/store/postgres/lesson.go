// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/models"
)

const lessonColumns = `
	l.id, l.agency_id, l.subject_id, l.tutor_id, l.location_id,
	l.title, l.description, l.day_of_week, l.start_time, l.end_time,
	l.start_date, l.end_date, l.lesson_type, l.total_cap, l.current_cap,
	l.is_active, l.notification_template, l.notification_template_submitted,
	l.notification_template_submitted_at, l.notification_template_submitted_by,
	l.progression_notifications_sent, l.created_at, l.updated_at,
	s.id, s.name, s.grade_level, s.is_active`

const lessonFrom = `
	FROM lessons l
	JOIN subjects s ON s.id = l.subject_id`

// LessonStore implements store.LessonStore.
type LessonStore struct {
	db  *sql.DB
	log logger.Logger
}

func NewLessonStore(db *sql.DB, log logger.Logger) *LessonStore {
	return &LessonStore{db: db, log: log}
}

// FindPendingProgression selects the eligible backlog: active lessons with a
// submitted template, sent flag still false, and end date on or before asOf.
// The window is unbounded below so lessons missed by earlier ticks (downtime,
// transient failures) stay in scope until they complete.
func (s *LessonStore) FindPendingProgression(ctx context.Context, asOf time.Time) ([]*models.Lesson, error) {
	query := `SELECT` + lessonColumns + lessonFrom + `
	WHERE l.is_active = TRUE
	  AND l.notification_template_submitted = TRUE
	  AND l.progression_notifications_sent = FALSE
	  AND l.end_date <= $1
	ORDER BY l.end_date ASC`

	rows, err := s.db.QueryContext(ctx, query, dateOnly(asOf))
	if err != nil {
		return nil, errors.NewLessonQueryFailedError(err)
	}
	defer rows.Close()

	var lessons []*models.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, errors.NewLessonQueryFailedError(err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewLessonQueryFailedError(err)
	}
	return lessons, nil
}

func (s *LessonStore) CountPendingProgression(ctx context.Context, asOf time.Time) (int, error) {
	query := `SELECT COUNT(*)` + lessonFrom + `
	WHERE l.is_active = TRUE
	  AND l.notification_template_submitted = TRUE
	  AND l.progression_notifications_sent = FALSE
	  AND l.end_date <= $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, dateOnly(asOf)).Scan(&count); err != nil {
		return 0, errors.NewLessonQueryFailedError(err)
	}
	return count, nil
}

// MarkProgressionSent flips the sent flag with a conditional update. Zero
// rows affected means another process flipped it first; the caller skips the
// lesson instead of failing the scan.
func (s *LessonStore) MarkProgressionSent(ctx context.Context, lessonID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lessons
		SET progression_notifications_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND progression_notifications_sent = FALSE`,
		lessonID)
	if err != nil {
		return false, errors.NewSentFlagUpdateFailedError(lessonID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewSentFlagUpdateFailedError(lessonID, err)
	}
	return affected == 1, nil
}

func (s *LessonStore) FindAvailableByIDs(ctx context.Context, ids []string) ([]*models.Lesson, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT` + lessonColumns + lessonFrom + `
	WHERE l.id = ANY($1)
	  AND l.is_active = TRUE
	  AND l.current_cap < l.total_cap`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, errors.NewLessonQueryFailedError(err)
	}
	defer rows.Close()

	return collectLessons(rows)
}

func (s *LessonStore) FindAvailableBySubject(ctx context.Context, agencyID, subjectName string, grade models.GradeLevel) ([]*models.Lesson, error) {
	query := `SELECT` + lessonColumns + lessonFrom + `
	WHERE l.agency_id = $1
	  AND s.name = $2
	  AND s.grade_level = $3
	  AND l.is_active = TRUE
	  AND l.current_cap < l.total_cap`

	rows, err := s.db.QueryContext(ctx, query, agencyID, subjectName, string(grade))
	if err != nil {
		return nil, errors.NewLessonQueryFailedError(err)
	}
	defer rows.Close()

	return collectLessons(rows)
}

func (s *LessonStore) GetByID(ctx context.Context, lessonID string) (*models.Lesson, error) {
	query := `SELECT` + lessonColumns + lessonFrom + ` WHERE l.id = $1`

	row := s.db.QueryRowContext(ctx, query, lessonID)
	lesson, err := scanLesson(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewLessonNotFoundError(lessonID)
	}
	if err != nil {
		return nil, errors.NewLessonQueryFailedError(err)
	}
	return lesson, nil
}

// SubmitTemplate stores the template and sets the submitted flag in one
// conditional update. The submitted flag is one-way, so a second submission
// matches zero rows and is rejected.
func (s *LessonStore) SubmitTemplate(ctx context.Context, lessonID, submittedBy string, template []byte) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lessons
		SET notification_template = $1,
		    notification_template_submitted = TRUE,
		    notification_template_submitted_at = NOW(),
		    notification_template_submitted_by = $2,
		    updated_at = NOW()
		WHERE id = $3 AND notification_template_submitted = FALSE`,
		template, submittedBy, lessonID)
	if err != nil {
		return errors.NewLessonQueryFailedError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewLessonQueryFailedError(err)
	}
	if affected == 0 {
		// Distinguish a missing lesson from a resubmission.
		var submitted bool
		err := s.db.QueryRowContext(ctx,
			`SELECT notification_template_submitted FROM lessons WHERE id = $1`,
			lessonID).Scan(&submitted)
		if err == sql.ErrNoRows {
			return errors.NewLessonNotFoundError(lessonID)
		}
		if err != nil {
			return errors.NewLessonQueryFailedError(err)
		}
		return errors.NewTemplateAlreadySubmittedError(lessonID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLesson(row rowScanner) (*models.Lesson, error) {
	var (
		lesson      models.Lesson
		subject     models.Subject
		tutorID     sql.NullString
		description sql.NullString
		template    []byte
		submittedAt sql.NullTime
		submittedBy sql.NullString
	)

	err := row.Scan(
		&lesson.ID, &lesson.AgencyID, &lesson.SubjectID, &tutorID, &lesson.LocationID,
		&lesson.Title, &description, &lesson.DayOfWeek, &lesson.StartTime, &lesson.EndTime,
		&lesson.StartDate, &lesson.EndDate, &lesson.LessonType, &lesson.TotalCap, &lesson.CurrentCap,
		&lesson.IsActive, &template, &lesson.TemplateSubmitted,
		&submittedAt, &submittedBy,
		&lesson.ProgressionSent, &lesson.CreatedAt, &lesson.UpdatedAt,
		&subject.ID, &subject.Name, &subject.GradeLevel, &subject.IsActive,
	)
	if err != nil {
		return nil, err
	}

	lesson.TutorID = tutorID.String
	lesson.Description = description.String
	if len(template) > 0 {
		lesson.Template = json.RawMessage(template)
	}
	if submittedAt.Valid {
		lesson.TemplateSubmittedAt = &submittedAt.Time
	}
	lesson.TemplateSubmittedBy = submittedBy.String
	lesson.Subject = &subject
	return &lesson, nil
}

func collectLessons(rows *sql.Rows) ([]*models.Lesson, error) {
	var lessons []*models.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, errors.NewLessonQueryFailedError(err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewLessonQueryFailedError(err)
	}
	return lessons, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
