package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/events"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

func newVideoService(repo *fakeRepository, publisher events.Publisher) *videoTrackingService {
	svc := NewVideoTrackingService(repo, publisher, testLogger(), validator.New())
	return svc.(*videoTrackingService)
}

func TestVideoTrackingService_TrackEvent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	svc := newVideoService(repo, publisher)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	startReq := &WatchEventRequest{
		SessionID:  "sess-1",
		QuestionID: 7,
		VideoURL:   "https://cdn.example.com/v/7.mp4",
		EventType:  models.WatchEventStart,
	}

	t.Run("start creates the session", func(t *testing.T) {
		session, err := svc.TrackEvent(ctx, "student-1", startReq)
		if err != nil {
			t.Fatalf("TrackEvent failed: %v", err)
		}
		if session.WatchCount != 1 {
			t.Errorf("Expected watch count 1, got %d", session.WatchCount)
		}
		if !session.StartedAt.Equal(base) || !session.LastWatchedAt.Equal(base) {
			t.Errorf("Timestamps wrong: %+v", session)
		}
	})

	t.Run("restart bumps the count and keeps the start", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(2 * time.Hour) }

		session, err := svc.TrackEvent(ctx, "student-1", startReq)
		if err != nil {
			t.Fatalf("TrackEvent failed: %v", err)
		}
		if session.WatchCount != 2 {
			t.Errorf("Expected watch count 2, got %d", session.WatchCount)
		}
		if !session.StartedAt.Equal(base) {
			t.Errorf("StartedAt must not move on restart: %v", session.StartedAt)
		}
		if !session.LastWatchedAt.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("LastWatchedAt not bumped: %v", session.LastWatchedAt)
		}
	})

	t.Run("progress overwrites measurements", func(t *testing.T) {
		session, err := svc.TrackEvent(ctx, "student-1", &WatchEventRequest{
			SessionID:                 "sess-1",
			QuestionID:                7,
			VideoURL:                  "https://cdn.example.com/v/7.mp4",
			EventType:                 models.WatchEventProgress,
			WatchDurationSeconds:      120,
			VideoTotalDurationSeconds: 300,
			CompletionPercentage:      40,
		})
		if err != nil {
			t.Fatalf("TrackEvent failed: %v", err)
		}
		if session.WatchDurationSeconds != 120 || session.CompletionPercentage != 40 {
			t.Errorf("Measurements not overwritten: %+v", session)
		}
		if session.IsCompleted {
			t.Error("completion below the threshold must not mark the session completed")
		}
	})

	t.Run("end at threshold marks completion", func(t *testing.T) {
		session, err := svc.TrackEvent(ctx, "student-1", &WatchEventRequest{
			SessionID:                 "sess-1",
			QuestionID:                7,
			VideoURL:                  "https://cdn.example.com/v/7.mp4",
			EventType:                 models.WatchEventEnd,
			WatchDurationSeconds:      280,
			VideoTotalDurationSeconds: 300,
			CompletionPercentage:      models.CompletionThreshold,
		})
		if err != nil {
			t.Fatalf("TrackEvent failed: %v", err)
		}
		if !session.IsCompleted {
			t.Error("Completion at the threshold must mark the session completed")
		}
	})

	t.Run("progress for unknown session", func(t *testing.T) {
		_, err := svc.TrackEvent(ctx, "student-1", &WatchEventRequest{
			SessionID:            "never-started",
			QuestionID:           7,
			VideoURL:             "https://cdn.example.com/v/7.mp4",
			EventType:            models.WatchEventProgress,
			CompletionPercentage: 10,
		})
		if !errors.Is(err, ErrWatchSessionNotFound) {
			t.Fatalf("Expected ErrWatchSessionNotFound, got %v", err)
		}
	})

	t.Run("unknown event kind is rejected", func(t *testing.T) {
		_, err := svc.TrackEvent(ctx, "student-1", &WatchEventRequest{
			SessionID:  "sess-1",
			QuestionID: 7,
			VideoURL:   "https://cdn.example.com/v/7.mp4",
			EventType:  models.WatchEventType("pause"),
		})
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("Expected ValidationErrors, got %v", err)
		}
	})

	t.Run("events are published", func(t *testing.T) {
		if publisher.Count(events.TopicVideoWatched) != 4 {
			t.Errorf("Expected 4 watch events, got %d", publisher.Count(events.TopicVideoWatched))
		}
	})
}

// racingVideoWatchRepo reports the session missing on the first lookup
// so the create path runs even though the row already exists.
type racingVideoWatchRepo struct {
	repositories.VideoWatchRepository
	misses int
}

func (r *racingVideoWatchRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.VideoWatchSession, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.VideoWatchRepository.GetBySessionID(ctx, tx, sessionID)
}

type racingRepo struct {
	*fakeRepository
	video repositories.VideoWatchRepository
}

func (r *racingRepo) VideoWatch() repositories.VideoWatchRepository { return r.video }

func TestVideoTrackingService_TrackEvent_ConcurrentFirstStart(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRepository()
	repo := &racingRepo{
		fakeRepository: fake,
		video:          &racingVideoWatchRepo{VideoWatchRepository: &fakeVideoWatchRepo{fake}, misses: 1},
	}
	svc := NewVideoTrackingService(repo, events.NewMockEventPublisher(testLogger()), testLogger(), validator.New()).(*videoTrackingService)

	base := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	// The winner's row is already in place when the loser's create runs.
	if err := fake.VideoWatch().Create(ctx, nil, &models.VideoWatchSession{
		SessionID:     "sess-race",
		StudentID:     "student-1",
		QuestionID:    3,
		VideoURL:      "https://cdn.example.com/v/3.mp4",
		WatchCount:    1,
		StartedAt:     base.Add(-time.Minute),
		LastWatchedAt: base.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("Seeding session failed: %v", err)
	}

	session, err := svc.TrackEvent(ctx, "student-1", &WatchEventRequest{
		SessionID:  "sess-race",
		QuestionID: 3,
		VideoURL:   "https://cdn.example.com/v/3.mp4",
		EventType:  models.WatchEventStart,
	})
	if err != nil {
		t.Fatalf("TrackEvent failed: %v", err)
	}
	if session.WatchCount != 2 {
		t.Errorf("Expected watch count 2 after losing the create race, got %d", session.WatchCount)
	}
	if !session.StartedAt.Equal(base.Add(-time.Minute)) {
		t.Errorf("StartedAt must keep the winner's value: %v", session.StartedAt)
	}
}
