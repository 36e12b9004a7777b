package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
)

func newAnalyticsService(repo *fakeRepository) *analyticsService {
	svc := NewAnalyticsService(repo, testLogger())
	return svc.(*analyticsService)
}

func seedSession(repo *fakeRepository, sessionID, studentID string, questionID uint, startedAt time.Time, watchSeconds, completion float64) {
	repo.sessSeq++
	repo.sessions[sessionID] = &models.VideoWatchSession{
		ID:                   repo.sessSeq,
		SessionID:            sessionID,
		StudentID:            studentID,
		QuestionID:           questionID,
		VideoURL:             "https://cdn.example.com/v.mp4",
		WatchDurationSeconds: watchSeconds,
		CompletionPercentage: completion,
		WatchCount:           1,
		IsCompleted:          completion >= models.CompletionThreshold,
		StartedAt:            startedAt,
		LastWatchedAt:        startedAt,
	}
}

func TestAnalyticsService_Overview(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	seedSession(repo, "s1", "student-1", 1, now, 3600, 95)
	seedSession(repo, "s2", "student-2", 1, now, 1800, 50)

	svc := newAnalyticsService(repo)

	overview, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if overview.TotalViews != 2 || overview.EngagedStudents != 2 {
		t.Errorf("Counts wrong: %+v", overview)
	}
	if overview.TotalWatchHours != 1.5 {
		t.Errorf("Expected 1.5 watch hours, got %f", overview.TotalWatchHours)
	}
	if overview.CompletedVideos != 1 {
		t.Errorf("Expected 1 completed video, got %d", overview.CompletedVideos)
	}
}

func TestAnalyticsService_TimeSeries(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	day1 := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)

	// Two hours on day one, four hours on day two.
	seedSession(repo, "s1", "student-1", 1, day1, 7200, 80)
	seedSession(repo, "s2", "student-1", 1, day2, 7200, 80)
	seedSession(repo, "s3", "student-2", 2, day2, 7200, 80)

	svc := newAnalyticsService(repo)

	t.Run("doubling yields one hundred percent growth", func(t *testing.T) {
		series, err := svc.TimeSeries(ctx, "day")
		if err != nil {
			t.Fatalf("TimeSeries failed: %v", err)
		}
		if len(series.Buckets) != 2 {
			t.Fatalf("Expected 2 buckets, got %d", len(series.Buckets))
		}
		if series.Buckets[0].TotalWatchHours != 4 || series.Buckets[1].TotalWatchHours != 2 {
			t.Errorf("Buckets not newest first: %+v", series.Buckets)
		}
		if math.Abs(series.GrowthPercentage-100) > 1e-9 {
			t.Errorf("Expected growth 100, got %f", series.GrowthPercentage)
		}
	})

	t.Run("single bucket yields zero growth", func(t *testing.T) {
		delete(repo.sessions, "s1")

		series, err := svc.TimeSeries(ctx, "day")
		if err != nil {
			t.Fatalf("TimeSeries failed: %v", err)
		}
		if series.GrowthPercentage != 0 {
			t.Errorf("Expected growth 0, got %f", series.GrowthPercentage)
		}
	})

	t.Run("invalid granularity", func(t *testing.T) {
		_, err := svc.TimeSeries(ctx, "hourly")
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("Expected ValidationErrors, got %v", err)
		}
	})
}

func TestAnalyticsService_ExportWatchLog(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	seedSession(repo, "s1", "student-1", 1, now, 600, 95)

	svc := newAnalyticsService(repo)

	t.Run("csv", func(t *testing.T) {
		payload, contentType, err := svc.ExportWatchLog(ctx, ExportFormatCSV)
		if err != nil {
			t.Fatalf("ExportWatchLog failed: %v", err)
		}
		if contentType != "text/csv" {
			t.Errorf("Expected text/csv, got %s", contentType)
		}

		records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
		if err != nil {
			t.Fatalf("Export is not valid csv: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected header plus one row, got %d records", len(records))
		}
		if records[1][0] != "s1" || records[1][1] != "student-1" {
			t.Errorf("Row content wrong: %v", records[1])
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		payload, contentType, err := svc.ExportWatchLog(ctx, ExportFormatXLSX)
		if err != nil {
			t.Fatalf("ExportWatchLog failed: %v", err)
		}
		if contentType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			t.Errorf("Wrong content type: %s", contentType)
		}
		if len(payload) == 0 {
			t.Error("Empty xlsx payload")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := svc.ExportWatchLog(ctx, "pdf")
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("Expected ValidationErrors, got %v", err)
		}
	})
}

func TestAnalyticsService_Retention(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	old1 := now.AddDate(0, 0, -100)
	old2 := now.AddDate(0, 0, -50)
	recent := now.AddDate(0, 0, -5)
	seedSession(repo, "old-1", "student-1", 1, old1, 600, 95)
	seedSession(repo, "old-2", "student-2", 1, old2, 600, 20)
	seedSession(repo, "recent", "student-1", 2, recent, 600, 80)

	svc := newAnalyticsService(repo)
	svc.now = func() time.Time { return now }

	t.Run("preview matches delete", func(t *testing.T) {
		preview, err := svc.PreviewByAge(ctx, 30)
		if err != nil {
			t.Fatalf("PreviewByAge failed: %v", err)
		}
		if preview.WouldDelete != 2 || preview.WouldRetain != 1 {
			t.Fatalf("Preview wrong: %+v", preview)
		}
		if preview.OldestAt == nil || !preview.OldestAt.Equal(old1) {
			t.Errorf("Oldest bound wrong: %v", preview.OldestAt)
		}

		result, err := svc.DeleteByAge(ctx, 30, true)
		if err != nil {
			t.Fatalf("DeleteByAge failed: %v", err)
		}
		if result.DeletedRecords != preview.WouldDelete {
			t.Errorf("Delete diverged from preview: %d vs %d", result.DeletedRecords, preview.WouldDelete)
		}
		if result.RemainingRecords != 1 {
			t.Errorf("Expected 1 remaining, got %d", result.RemainingRecords)
		}
	})

	t.Run("unconfirmed delete is rejected", func(t *testing.T) {
		_, err := svc.DeleteByAge(ctx, 30, false)
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("Expected ValidationErrors, got %v", err)
		}
		if count, _ := repo.VideoWatch().CountAll(ctx, nil); count != 1 {
			t.Errorf("Unconfirmed delete removed rows, %d remain", count)
		}
	})

	t.Run("empty selection deletes nothing", func(t *testing.T) {
		result, err := svc.DeleteByRange(ctx, "2020-01-01", "2020-12-31", true)
		if err != nil {
			t.Fatalf("DeleteByRange failed: %v", err)
		}
		if result.DeletedRecords != 0 || result.RemainingRecords != 1 {
			t.Errorf("Empty range should be a no-op: %+v", result)
		}
	})

	t.Run("range delete is end inclusive", func(t *testing.T) {
		result, err := svc.DeleteByRange(ctx, "2026-08-10", "2026-08-10", true)
		if err != nil {
			t.Fatalf("DeleteByRange failed: %v", err)
		}
		if result.DeletedRecords != 1 {
			t.Errorf("Expected the same-day range to cover the whole day: %+v", result)
		}
	})

	t.Run("reversed range is rejected", func(t *testing.T) {
		_, err := svc.PreviewByRange(ctx, "2026-08-10", "2026-08-01")
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("Expected ValidationErrors, got %v", err)
		}
	})

	t.Run("non-positive age is rejected", func(t *testing.T) {
		_, err := svc.PreviewByAge(ctx, 0)
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("Expected ValidationErrors, got %v", err)
		}
	})
}

func TestAnalyticsService_QuestionDetail(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	seedSession(repo, "s1", "student-1", 1, now, 600, 95)
	seedSession(repo, "s2", "student-2", 1, now.Add(-time.Hour), 300, 40)
	seedSession(repo, "s3", "student-1", 2, now, 100, 10)

	svc := newAnalyticsService(repo)

	detail, err := svc.QuestionDetail(ctx, 1)
	if err != nil {
		t.Fatalf("QuestionDetail failed: %v", err)
	}
	if detail.Summary.Sessions != 2 || detail.Summary.DistinctStudents != 2 {
		t.Errorf("Summary wrong: %+v", detail.Summary)
	}
	if len(detail.Sessions) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(detail.Sessions))
	}

	student, err := svc.StudentDetail(ctx, "student-1")
	if err != nil {
		t.Fatalf("StudentDetail failed: %v", err)
	}
	if student.Summary.Sessions != 2 || len(student.Sessions) != 2 {
		t.Errorf("Student detail wrong: %+v", student.Summary)
	}
}
