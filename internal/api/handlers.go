package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tutiful-scheduler/internal/cache"
	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/jobs/progression"
	"tutiful-scheduler/internal/models"
	"tutiful-scheduler/internal/store"
)

const maxTemplateBytes = 64 << 10

// ScanTrigger is the manual-run surface of the scheduler trigger.
type ScanTrigger interface {
	RunNow(ctx context.Context) error
}

// Handlers carries the dependencies of every HTTP handler.
type Handlers struct {
	lessons       store.LessonStore
	enrollments   store.EnrollmentStore
	notifications store.NotificationStore
	unread        *cache.UnreadCache
	trigger       ScanTrigger
	db            *sql.DB
	log           logger.Logger
}

func NewHandlers(lessons store.LessonStore, enrollments store.EnrollmentStore, notifications store.NotificationStore, unread *cache.UnreadCache, trigger ScanTrigger, db *sql.DB, log logger.Logger) *Handlers {
	return &Handlers{
		lessons:       lessons,
		enrollments:   enrollments,
		notifications: notifications,
		unread:        unread,
		trigger:       trigger,
		db:            db,
		log:           log,
	}
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// writeStoreError maps the error taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch errors.CodeOf(err) {
	case errors.ErrCodeNotificationNotFound, errors.ErrCodeLessonNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case errors.ErrCodeTemplateAlreadySubmitted:
		writeError(w, http.StatusConflict, err.Error())
	case errors.ErrCodeTemplateInvalid:
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.ErrCodeScanInFlight:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"

	notifications, err := h.notifications.ListByUser(r.Context(), userID, limit, offset, unreadOnly)
	if err != nil {
		h.log.Error("List notifications failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		writeStoreError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *Handlers) GetNotification(w http.ResponseWriter, r *http.Request) {
	notification, err := h.notifications.GetByID(r.Context(), chi.URLParam(r, "id"), userIDFrom(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notification)
}

func (h *Handlers) CountNotifications(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	if unread, ok := h.unread.Get(r.Context(), userID); ok {
		writeJSON(w, http.StatusOK, map[string]int{"unread": unread})
		return
	}

	total, unread, err := h.notifications.CountByUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	h.unread.Set(r.Context(), userID, unread)
	writeJSON(w, http.StatusOK, map[string]int{"total": total, "unread": unread})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeStoreError(w, err)
		return
	}
	h.unread.Invalidate(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	updated, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	h.unread.Invalidate(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if err := h.notifications.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeStoreError(w, err)
		return
	}
	h.unread.Invalidate(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.lessons.GetByID(r.Context(), chi.URLParam(r, "lessonId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	data := map[string]interface{}{
		"submitted": lesson.TemplateSubmitted,
	}
	if len(lesson.Template) > 0 {
		data["template"] = json.RawMessage(lesson.Template)
	}
	if lesson.TemplateSubmittedAt != nil {
		data["submittedAt"] = lesson.TemplateSubmittedAt
		data["submittedBy"] = lesson.TemplateSubmittedBy
	}
	writeJSON(w, http.StatusOK, data)
}

// SubmitTemplate stores an agency admin's progression template for a lesson.
// The document is schema-validated before it is stored and a lesson accepts
// exactly one submission.
func (h *Handlers) SubmitTemplate(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonId")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	if err := progression.ValidateTemplate(lessonID, body); err != nil {
		writeStoreError(w, err)
		return
	}

	if err := h.lessons.SubmitTemplate(r.Context(), lessonID, userIDFrom(r), body); err != nil {
		writeStoreError(w, err)
		return
	}

	h.log.Info("Notification template submitted", map[string]interface{}{
		"lessonId":    lessonID,
		"submittedBy": userIDFrom(r),
	})
	writeJSON(w, http.StatusCreated, map[string]bool{"submitted": true})
}

// NextGradeOptions previews the lesson recommendations a progression
// notification for this lesson would carry.
func (h *Handlers) NextGradeOptions(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonId")

	lesson, err := h.lessons.GetByID(r.Context(), lessonID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	nextGrade, ok := lesson.Subject.GradeLevel.Next()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"nextGrade": nil,
			"options":   []models.LessonOption{},
		})
		return
	}

	template, err := progression.ParseTemplate(lessonID, lesson.Template)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var candidates []*models.Lesson
	if len(template.SelectedLessonIDs) > 0 {
		candidates, err = h.lessons.FindAvailableByIDs(r.Context(), template.SelectedLessonIDs)
	} else {
		candidates, err = h.lessons.FindAvailableBySubject(r.Context(), lesson.AgencyID, lesson.Subject.Name, nextGrade)
	}
	if err != nil {
		writeStoreError(w, err)
		return
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

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nextGrade": nextGrade,
		"options":   options,
	})
}

// SchedulerStatus reports the eligible-but-unsent backlog. A count that stays
// above zero across scans means lessons are stuck, usually on a template an
// admin has to fix.
func (h *Handlers) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.lessons.CountPendingProgression(r.Context(), time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pendingLessons": pending})
}

// RunScheduler kicks off a scan outside the schedule. A scan already in
// flight is reported as a conflict, never queued.
func (h *Handlers) RunScheduler(w http.ResponseWriter, r *http.Request) {
	// The scan outlives this request, so it does not inherit its context.
	if err := h.trigger.RunNow(context.Background()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
