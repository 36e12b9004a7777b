package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/events"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

type videoTrackingService struct {
	repo      repositories.Repository
	publisher events.Publisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewVideoTrackingService(repo repositories.Repository, publisher events.Publisher, logger *slog.Logger, v *validator.Validator) VideoTrackingService {
	return &videoTrackingService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: v,
		now:       time.Now,
	}
}

// TrackEvent upserts the watch session addressed by the payload's
// session id. A start event creates the session or bumps its watch
// count; progress and end events overwrite the measurements and require
// the session to exist already.
func (s *videoTrackingService) TrackEvent(ctx context.Context, studentID string, req *WatchEventRequest) (*WatchSessionResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	var session *models.VideoWatchSession
	var err error
	switch req.EventType {
	case models.WatchEventStart:
		session, err = s.handleStart(ctx, studentID, req)
	case models.WatchEventProgress, models.WatchEventEnd:
		session, err = s.handleMeasurement(ctx, studentID, req)
	default:
		return nil, validator.NewFieldError("event_type", "event_type must be one of start, progress or end")
	}
	if err != nil {
		return nil, err
	}

	s.publishWatched(ctx, session, string(req.EventType))

	return &WatchSessionResponse{VideoWatchSession: session}, nil
}

func (s *videoTrackingService) handleStart(ctx context.Context, studentID string, req *WatchEventRequest) (*models.VideoWatchSession, error) {
	now := s.now()

	existing, err := s.repo.VideoWatch().GetBySessionID(ctx, nil, req.SessionID)
	if err == nil {
		return s.countRestart(ctx, existing, now)
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load watch session: %w", err)
	}

	session := &models.VideoWatchSession{
		SessionID:                 req.SessionID,
		StudentID:                 studentID,
		QuestionID:                req.QuestionID,
		ExamResultID:              req.ExamResultID,
		VideoURL:                  req.VideoURL,
		WatchDurationSeconds:      req.WatchDurationSeconds,
		VideoTotalDurationSeconds: req.VideoTotalDurationSeconds,
		CompletionPercentage:      req.CompletionPercentage,
		WatchCount:                1,
		IsCompleted:               req.CompletionPercentage >= models.CompletionThreshold,
		StartedAt:                 now,
		LastWatchedAt:             now,
	}
	if err := s.repo.VideoWatch().Create(ctx, nil, session); err != nil {
		if repositories.IsDuplicateError(err) {
			// Lost a concurrent first-start race; count the view on the
			// winner's row instead.
			winner, lookupErr := s.repo.VideoWatch().GetBySessionID(ctx, nil, req.SessionID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load winning watch session: %w", lookupErr)
			}
			return s.countRestart(ctx, winner, now)
		}
		return nil, fmt.Errorf("failed to create watch session: %w", err)
	}
	return session, nil
}

// countRestart counts another view on a known session, keeping the
// original start time and measurements.
func (s *videoTrackingService) countRestart(ctx context.Context, session *models.VideoWatchSession, now time.Time) (*models.VideoWatchSession, error) {
	session.WatchCount++
	session.LastWatchedAt = now
	if err := s.repo.VideoWatch().Update(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to update watch session: %w", err)
	}
	return session, nil
}

// handleMeasurement applies progress and end events. Measurements are
// last write wins.
func (s *videoTrackingService) handleMeasurement(ctx context.Context, studentID string, req *WatchEventRequest) (*models.VideoWatchSession, error) {
	session, err := s.repo.VideoWatch().GetBySessionID(ctx, nil, req.SessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrWatchSessionNotFound
		}
		return nil, fmt.Errorf("failed to load watch session: %w", err)
	}

	session.StudentID = studentID
	session.QuestionID = req.QuestionID
	session.VideoURL = req.VideoURL
	if req.ExamResultID != nil {
		session.ExamResultID = req.ExamResultID
	}
	session.WatchDurationSeconds = req.WatchDurationSeconds
	session.VideoTotalDurationSeconds = req.VideoTotalDurationSeconds
	session.CompletionPercentage = req.CompletionPercentage
	session.IsCompleted = req.CompletionPercentage >= models.CompletionThreshold
	session.LastWatchedAt = s.now()

	if err := s.repo.VideoWatch().Update(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to update watch session: %w", err)
	}
	return session, nil
}

func (s *videoTrackingService) publishWatched(ctx context.Context, session *models.VideoWatchSession, eventType string) {
	if s.publisher == nil {
		return
	}
	event := events.VideoWatchedEvent{
		SessionID:            session.SessionID,
		StudentID:            session.StudentID,
		QuestionID:           session.QuestionID,
		EventType:            eventType,
		CompletionPercentage: session.CompletionPercentage,
		OccurredAt:           session.LastWatchedAt,
	}
	if err := s.publisher.Publish(ctx, events.TopicVideoWatched, event); err != nil {
		s.logger.Warn("failed to publish watch event", "session_id", session.SessionID, "error", err)
	}
}
