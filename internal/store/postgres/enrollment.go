package postgres

import (
	"context"
	"database/sql"
	"time"

	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/models"
)

// EnrollmentStore implements store.EnrollmentStore.
type EnrollmentStore struct {
	db  *sql.DB
	log logger.Logger
}

func NewEnrollmentStore(db *sql.DB, log logger.Logger) *EnrollmentStore {
	return &EnrollmentStore{db: db, log: log}
}

// FindCurrent returns the enrollments whose date range covers asOf, joined
// with student contact details for rendering and delivery. Both endpoints are
// inclusive, so a student whose enrollment ends on the scan date is still a
// recipient.
func (s *EnrollmentStore) FindCurrent(ctx context.Context, lessonID string, asOf time.Time) ([]*models.StudentEnrollment, error) {
	query := `
		SELECT e.id, e.student_id, e.lesson_id, e.start_date, e.end_date,
		       u.name, u.email, u.phone, e.created_at
		FROM student_lessons e
		JOIN users u ON u.id = e.student_id
		WHERE e.lesson_id = $1
		  AND e.start_date <= $2
		  AND e.end_date >= $2
		ORDER BY e.start_date ASC`

	rows, err := s.db.QueryContext(ctx, query, lessonID, dateOnly(asOf))
	if err != nil {
		return nil, errors.NewEnrollmentQueryFailedError(lessonID, err)
	}
	defer rows.Close()

	var enrollments []*models.StudentEnrollment
	for rows.Next() {
		var (
			e     models.StudentEnrollment
			phone sql.NullString
		)
		err := rows.Scan(
			&e.ID, &e.StudentID, &e.LessonID, &e.StartDate, &e.EndDate,
			&e.StudentName, &e.StudentEmail, &phone, &e.CreatedAt,
		)
		if err != nil {
			return nil, errors.NewEnrollmentQueryFailedError(lessonID, err)
		}
		e.StudentPhone = phone.String
		enrollments = append(enrollments, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewEnrollmentQueryFailedError(lessonID, err)
	}
	return enrollments, nil
}
