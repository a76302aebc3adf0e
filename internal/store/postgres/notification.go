package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/models"
)

// NotificationStore implements store.NotificationStore.
type NotificationStore struct {
	db  *sql.DB
	log logger.Logger
}

func NewNotificationStore(db *sql.DB, log logger.Logger) *NotificationStore {
	return &NotificationStore{db: db, log: log}
}

// Create inserts a notification row, assigning an id and created timestamp
// when the caller leaves them zero.
func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	if n.Metadata != nil {
		var err error
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return errors.NewNotificationInsertFailedError(deref(n.LessonID), err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, user_id, type, title, message, priority, is_read,
			 lesson_id, agency_id, source_template_id, scheduled_for,
			 metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, string(n.Priority),
		n.LessonID, n.AgencyID, n.SourceTemplateID, n.ScheduledFor,
		metadata, n.CreatedAt)
	if err != nil {
		return errors.NewNotificationInsertFailedError(deref(n.LessonID), err)
	}
	return nil
}

const notificationColumns = `
	id, user_id, type, title, message, priority, is_read,
	lesson_id, agency_id, source_template_id, scheduled_for,
	metadata, created_at, read_at`

func (s *NotificationStore) GetByID(ctx context.Context, id, userID string) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+notificationColumns+` FROM notifications WHERE id = $1 AND user_id = $2`,
		id, userID)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotificationNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT` + notificationColumns + `
		 FROM notifications
		 WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += `
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *NotificationStore) CountByUser(ctx context.Context, userID string) (int, int, error) {
	var total, unread int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_read = FALSE)
		FROM notifications
		WHERE user_id = $1`,
		userID).Scan(&total, &unread)
	if err != nil {
		return 0, 0, err
	}
	return total, unread, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE`,
		id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either missing or already read; only the former is an error.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
			id, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NewNotificationNotFoundError(id)
		}
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`,
		userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *NotificationStore) Delete(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NewNotificationNotFoundError(id)
	}
	return nil
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n            models.Notification
		lessonID     sql.NullString
		agencyID     sql.NullString
		templateID   sql.NullString
		scheduledFor sql.NullTime
		metadata     []byte
		readAt       sql.NullTime
	)

	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.IsRead,
		&lessonID, &agencyID, &templateID, &scheduledFor,
		&metadata, &n.CreatedAt, &readAt,
	)
	if err != nil {
		return nil, err
	}

	if lessonID.Valid {
		n.LessonID = &lessonID.String
	}
	if agencyID.Valid {
		n.AgencyID = &agencyID.String
	}
	if templateID.Valid {
		n.SourceTemplateID = &templateID.String
	}
	if scheduledFor.Valid {
		n.ScheduledFor = &scheduledFor.Time
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
