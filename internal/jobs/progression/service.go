package progression

import (
	"context"
	"time"

	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/common/metrics"
	"tutiful-scheduler/internal/common/observability"
	"tutiful-scheduler/internal/models"
	"tutiful-scheduler/internal/store"
)

// Service runs the full progression scan. It satisfies scheduler.Runner.
type Service struct {
	lessons       store.LessonStore
	scanner       *Scanner
	emitter       *Emitter
	clock         store.Clock
	lessonTimeout time.Duration
	log           logger.Logger
	obs           *observability.Observability
}

func NewService(lessons store.LessonStore, scanner *Scanner, emitter *Emitter, clock store.Clock, lessonTimeout time.Duration, obs *observability.Observability, log logger.Logger) *Service {
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &Service{
		lessons:       lessons,
		scanner:       scanner,
		emitter:       emitter,
		clock:         clock,
		lessonTimeout: lessonTimeout,
		log:           log,
		obs:           obs,
	}
}

// RunOnce executes one scan: load the pending backlog, then process each
// lesson in isolation. A lesson that fails is logged and left eligible for
// the next tick; it never stops the rest of the batch. RunOnce returns the
// total number of notification rows created in this tick, and an error only
// when the backlog query itself fails.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	asOf := s.clock.Now()

	lessons, err := s.lessons.FindPendingProgression(ctx, asOf)
	if err != nil {
		s.recordScan(ctx, "error", time.Since(start))
		return 0, err
	}

	metrics.PendingLessons.Set(float64(len(lessons)))

	result := ScanResult{Pending: len(lessons)}
	for _, lesson := range lessons {
		if ctx.Err() != nil {
			break
		}

		outcome, created := s.processLesson(ctx, lesson, asOf)
		result.Created += created
		switch outcome {
		case outcomeSent:
			result.Sent++
		case outcomeConflict:
			result.Conflicts++
		case outcomeFailed:
			result.Failed++
		}
	}

	s.log.Info("Progression scan finished", map[string]interface{}{
		"asOf":      asOf.Format("2006-01-02"),
		"pending":   result.Pending,
		"sent":      result.Sent,
		"failed":    result.Failed,
		"conflicts": result.Conflicts,
		"created":   result.Created,
	})
	s.recordScan(ctx, "success", time.Since(start))
	return result.Created, nil
}

type lessonOutcome int

const (
	outcomeSent lessonOutcome = iota
	outcomeConflict
	outcomeFailed
)

// processLesson handles one lesson under its own timeout so a stuck lesson
// cannot stall the scan. It returns the outcome and the number of
// notification rows created, including rows written before a failure.
func (s *Service) processLesson(ctx context.Context, lesson *models.Lesson, asOf time.Time) (lessonOutcome, int) {
	lessonCtx := ctx
	if s.lessonTimeout > 0 {
		var cancel context.CancelFunc
		lessonCtx, cancel = context.WithTimeout(ctx, s.lessonTimeout)
		defer cancel()
	}

	batch, err := s.scanner.BuildBatch(lessonCtx, lesson, asOf)
	if err != nil {
		metrics.LessonsProcessed.WithLabelValues("failed").Inc()
		s.log.Error("Batch build failed", map[string]interface{}{
			"lessonId": lesson.ID,
			"error":    err.Error(),
		})
		return outcomeFailed, 0
	}

	created, flipped, err := s.emitter.Emit(lessonCtx, batch)
	if err != nil {
		metrics.LessonsProcessed.WithLabelValues("failed").Inc()
		s.log.Error("Batch emit failed", map[string]interface{}{
			"lessonId":   lesson.ID,
			"recipients": len(batch.Recipients),
			"created":    created,
			"error":      err.Error(),
		})
		return outcomeFailed, created
	}
	if !flipped {
		metrics.LessonsProcessed.WithLabelValues("conflict").Inc()
		return outcomeConflict, created
	}

	metrics.LessonsProcessed.WithLabelValues("sent").Inc()
	s.log.Info("Lesson progression completed", map[string]interface{}{
		"lessonId":   lesson.ID,
		"nextGrade":  string(batch.NextGrade),
		"recipients": len(batch.Recipients),
	})
	return outcomeSent, created
}

func (s *Service) recordScan(ctx context.Context, status string, duration time.Duration) {
	if s.obs != nil {
		s.obs.RecordScan(ctx, status)
		s.obs.RecordScanDuration(ctx, duration, status)
	}
}
