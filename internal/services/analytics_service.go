package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"

	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type analyticsService struct {
	repo   repositories.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyticsService(repo repositories.Repository, logger *slog.Logger) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *analyticsService) Overview(ctx context.Context) (*WatchOverviewResponse, error) {
	data, err := s.repo.VideoWatch().Overview(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate watch overview: %w", err)
	}
	return &WatchOverviewResponse{
		WatchOverviewData: data,
		TotalWatchHours:   data.TotalWatchSeconds / 3600,
	}, nil
}

func (s *analyticsService) QuestionRollups(ctx context.Context) ([]*repositories.QuestionWatchData, error) {
	rollups, err := s.repo.VideoWatch().QuestionRollups(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate question rollups: %w", err)
	}
	return rollups, nil
}

// QuestionDetail gathers the question's rollup and its raw sessions
// concurrently.
func (s *analyticsService) QuestionDetail(ctx context.Context, questionID uint) (*QuestionWatchDetailResponse, error) {
	var (
		summary  *repositories.QuestionWatchData
		sessions []*models.VideoWatchSession
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.repo.VideoWatch().QuestionRollup(gctx, nil, questionID)
		if err != nil {
			return fmt.Errorf("failed to aggregate question rollup: %w", err)
		}
		summary = data
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.VideoWatch().ListByQuestion(gctx, nil, questionID)
		if err != nil {
			return fmt.Errorf("failed to list question sessions: %w", err)
		}
		sessions = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &QuestionWatchDetailResponse{Summary: summary, Sessions: sessions}, nil
}

func (s *analyticsService) StudentRollups(ctx context.Context) ([]*repositories.StudentWatchData, error) {
	rollups, err := s.repo.VideoWatch().StudentRollups(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate student rollups: %w", err)
	}
	return rollups, nil
}

func (s *analyticsService) StudentDetail(ctx context.Context, studentID string) (*StudentWatchDetailResponse, error) {
	var (
		summary  *repositories.StudentWatchData
		sessions []*models.VideoWatchSession
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.repo.VideoWatch().StudentRollup(gctx, nil, studentID)
		if err != nil {
			return fmt.Errorf("failed to aggregate student rollup: %w", err)
		}
		summary = data
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.VideoWatch().ListByStudent(gctx, nil, studentID)
		if err != nil {
			return fmt.Errorf("failed to list student sessions: %w", err)
		}
		sessions = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StudentWatchDetailResponse{Summary: summary, Sessions: sessions}, nil
}

var exportHeader = []string{
	"session_id", "student_id", "question_id", "video_url",
	"watch_duration_seconds", "video_total_duration_seconds",
	"completion_percentage", "watch_count", "is_completed",
	"started_at", "last_watched_at",
}

func exportRow(session *models.VideoWatchSession) []string {
	return []string{
		session.SessionID,
		session.StudentID,
		strconv.FormatUint(uint64(session.QuestionID), 10),
		session.VideoURL,
		strconv.FormatFloat(session.WatchDurationSeconds, 'f', 2, 64),
		strconv.FormatFloat(session.VideoTotalDurationSeconds, 'f', 2, 64),
		strconv.FormatFloat(session.CompletionPercentage, 'f', 2, 64),
		strconv.Itoa(session.WatchCount),
		strconv.FormatBool(session.IsCompleted),
		session.StartedAt.Format(time.RFC3339),
		session.LastWatchedAt.Format(time.RFC3339),
	}
}

// ExportWatchLog renders the full watch log as csv or xlsx and returns
// the payload with its content type.
func (s *analyticsService) ExportWatchLog(ctx context.Context, format string) ([]byte, string, error) {
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return nil, "", validator.NewFieldError("format", "format must be csv or xlsx")
	}

	sessions, err := s.repo.VideoWatch().ListAll(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list watch sessions: %w", err)
	}

	if format == ExportFormatCSV {
		payload, err := renderCSV(sessions)
		if err != nil {
			return nil, "", err
		}
		return payload, contentTypeCSV, nil
	}

	payload, err := renderXLSX(sessions)
	if err != nil {
		return nil, "", err
	}
	return payload, contentTypeXLSX, nil
}

func renderCSV(sessions []*models.VideoWatchSession) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, session := range sessions {
		if err := w.Write(exportRow(session)); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(sessions []*models.VideoWatchSession) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Watch Log"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i, session := range sessions {
		for col, value := range exportRow(session) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func bucketLabel(granularity repositories.BucketGranularity, start time.Time) string {
	switch granularity {
	case repositories.BucketYear:
		return start.Format("2006")
	case repositories.BucketMonth:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}

// TimeSeries buckets watch activity by the requested granularity,
// newest bucket first, and reports growth between the two most recent
// buckets.
func (s *analyticsService) TimeSeries(ctx context.Context, granularity string) (*WatchSeriesResponse, error) {
	g := repositories.BucketGranularity(granularity)
	if !g.Valid() {
		return nil, validator.NewFieldError("granularity", "granularity must be one of day, week, month or year")
	}

	data, err := s.repo.VideoWatch().BucketSeries(ctx, nil, g, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket watch activity: %w", err)
	}

	buckets := make([]WatchBucket, 0, len(data))
	for _, b := range data {
		buckets = append(buckets, WatchBucket{
			BucketStart:       b.BucketStart,
			Label:             bucketLabel(g, b.BucketStart),
			TotalWatchSeconds: b.TotalWatchSeconds,
			TotalWatchHours:   b.TotalWatchSeconds / 3600,
			DistinctSessions:  b.DistinctSessions,
			DistinctStudents:  b.DistinctStudents,
			AverageCompletion: b.AverageCompletion,
		})
	}

	growth := 0.0
	if len(buckets) >= 2 && buckets[1].TotalWatchSeconds > 0 {
		growth = (buckets[0].TotalWatchSeconds - buckets[1].TotalWatchSeconds) / buckets[1].TotalWatchSeconds * 100
	}

	return &WatchSeriesResponse{
		Granularity:      granularity,
		Buckets:          buckets,
		GrowthPercentage: growth,
	}, nil
}

// ===== RETENTION =====

func (s *analyticsService) PreviewByAge(ctx context.Context, olderThanDays int) (*RetentionPreviewResponse, error) {
	if olderThanDays < 1 {
		return nil, validator.NewFieldError("older_than_days", "older_than_days must be at least 1")
	}
	cutoff := s.now().AddDate(0, 0, -olderThanDays)
	return s.preview(ctx, func(ctx context.Context) (*repositories.RetentionSliceData, error) {
		return s.repo.VideoWatch().SliceOlderThan(ctx, nil, cutoff)
	})
}

func (s *analyticsService) PreviewByRange(ctx context.Context, startDate, endDate string) (*RetentionPreviewResponse, error) {
	from, to, err := parseRetentionRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, func(ctx context.Context) (*repositories.RetentionSliceData, error) {
		return s.repo.VideoWatch().SliceInRange(ctx, nil, from, to)
	})
}

func (s *analyticsService) preview(ctx context.Context, slice func(context.Context) (*repositories.RetentionSliceData, error)) (*RetentionPreviewResponse, error) {
	data, err := slice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute retention slice: %w", err)
	}
	total, err := s.repo.VideoWatch().CountAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count watch sessions: %w", err)
	}
	return &RetentionPreviewResponse{
		WouldDelete: data.Count,
		WouldRetain: total - data.Count,
		OldestAt:    data.OldestAt,
		NewestAt:    data.NewestAt,
	}, nil
}

func (s *analyticsService) DeleteByAge(ctx context.Context, olderThanDays int, confirm bool) (*RetentionResultResponse, error) {
	if olderThanDays < 1 {
		return nil, validator.NewFieldError("older_than_days", "older_than_days must be at least 1")
	}
	if !confirm {
		return nil, validator.NewFieldError("confirm", "confirm must be true to delete watch data")
	}
	cutoff := s.now().AddDate(0, 0, -olderThanDays)
	return s.purge(ctx,
		func(ctx context.Context) (*repositories.RetentionSliceData, error) {
			return s.repo.VideoWatch().SliceOlderThan(ctx, nil, cutoff)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.VideoWatch().DeleteOlderThan(ctx, nil, cutoff)
		})
}

func (s *analyticsService) DeleteByRange(ctx context.Context, startDate, endDate string, confirm bool) (*RetentionResultResponse, error) {
	from, to, err := parseRetentionRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if !confirm {
		return nil, validator.NewFieldError("confirm", "confirm must be true to delete watch data")
	}
	return s.purge(ctx,
		func(ctx context.Context) (*repositories.RetentionSliceData, error) {
			return s.repo.VideoWatch().SliceInRange(ctx, nil, from, to)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.VideoWatch().DeleteInRange(ctx, nil, from, to)
		})
}

// purge snapshots the slice before deleting so the response can report
// the bounds of what was removed. An empty slice deletes nothing.
func (s *analyticsService) purge(ctx context.Context,
	slice func(context.Context) (*repositories.RetentionSliceData, error),
	remove func(context.Context) (int64, error)) (*RetentionResultResponse, error) {

	data, err := slice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute retention slice: %w", err)
	}

	var deleted int64
	if data.Count > 0 {
		deleted, err = remove(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to delete watch sessions: %w", err)
		}
		s.logger.Info("watch sessions deleted", "count", deleted)
	}

	remaining, err := s.repo.VideoWatch().CountAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count watch sessions: %w", err)
	}

	return &RetentionResultResponse{
		DeletedRecords:   deleted,
		OldestAt:         data.OldestAt,
		NewestAt:         data.NewestAt,
		RemainingRecords: remaining,
	}, nil
}

// parseRetentionRange parses inclusive calendar dates into a half-open
// timestamp range.
func parseRetentionRange(startDate, endDate string) (time.Time, time.Time, error) {
	var zero time.Time
	if startDate == "" || endDate == "" {
		return zero, zero, validator.NewFieldError("start_date", "start_date and end_date are both required")
	}
	from, err := time.Parse(validator.DateLayout, startDate)
	if err != nil {
		return zero, zero, validator.NewFieldError("start_date", "start_date must be formatted as YYYY-MM-DD")
	}
	endDay, err := time.Parse(validator.DateLayout, endDate)
	if err != nil {
		return zero, zero, validator.NewFieldError("end_date", "end_date must be formatted as YYYY-MM-DD")
	}
	if endDay.Before(from) {
		return zero, zero, validator.NewFieldError("end_date", "end_date must not be before start_date")
	}
	return from, endDay.AddDate(0, 0, 1), nil
}
