package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

type VideoWatchPostgreSQL struct {
	db *gorm.DB
}

func NewVideoWatchPostgreSQL(db *gorm.DB) repositories.VideoWatchRepository {
	return &VideoWatchPostgreSQL{db: db}
}

func (v *VideoWatchPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return v.db
}

func (v *VideoWatchPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.VideoWatchSession) error {
	if err := v.getDB(tx).WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create watch session: %w", err)
	}
	return nil
}

func (v *VideoWatchPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.VideoWatchSession) error {
	if err := v.getDB(tx).WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("failed to update watch session: %w", err)
	}
	return nil
}

func (v *VideoWatchPostgreSQL) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.VideoWatchSession, error) {
	var session models.VideoWatchSession
	err := v.getDB(tx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ===== READ-SIDE AGGREGATIONS =====

func (v *VideoWatchPostgreSQL) Overview(ctx context.Context, tx *gorm.DB) (*repositories.WatchOverviewData, error) {
	var data repositories.WatchOverviewData
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Select("COALESCE(SUM(watch_count), 0) as total_views, " +
			"COUNT(DISTINCT video_url) as unique_videos, " +
			"COALESCE(SUM(watch_duration_seconds), 0) as total_watch_seconds, " +
			"COALESCE(AVG(completion_percentage), 0) as average_completion, " +
			"COUNT(DISTINCT student_id) as engaged_students, " +
			"COUNT(*) FILTER (WHERE is_completed) as completed_videos").
		Scan(&data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate watch overview: %w", err)
	}
	return &data, nil
}

const questionRollupSelect = "question_id, " +
	"COUNT(*) as sessions, " +
	"COALESCE(SUM(watch_count), 0) as total_views, " +
	"COALESCE(SUM(watch_duration_seconds), 0) as total_watch_seconds, " +
	"COALESCE(AVG(completion_percentage), 0) as average_completion, " +
	"COUNT(DISTINCT student_id) as distinct_students, " +
	"COUNT(*) FILTER (WHERE is_completed) as completed_count"

func (v *VideoWatchPostgreSQL) QuestionRollups(ctx context.Context, tx *gorm.DB) ([]*repositories.QuestionWatchData, error) {
	var rows []*repositories.QuestionWatchData
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Select(questionRollupSelect).
		Group("question_id").
		Order("total_watch_seconds DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate question rollups: %w", err)
	}
	return rows, nil
}

func (v *VideoWatchPostgreSQL) QuestionRollup(ctx context.Context, tx *gorm.DB, questionID uint) (*repositories.QuestionWatchData, error) {
	var data repositories.QuestionWatchData
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Select(questionRollupSelect).
		Where("question_id = ?", questionID).
		Group("question_id").
		Scan(&data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate question rollup: %w", err)
	}
	data.QuestionID = questionID
	return &data, nil
}

const studentRollupSelect = "student_id, " +
	"COUNT(*) as sessions, " +
	"COALESCE(SUM(watch_count), 0) as total_views, " +
	"COALESCE(SUM(watch_duration_seconds), 0) as total_watch_seconds, " +
	"COALESCE(AVG(completion_percentage), 0) as average_completion, " +
	"COUNT(*) FILTER (WHERE is_completed) as completed_count"

func (v *VideoWatchPostgreSQL) StudentRollups(ctx context.Context, tx *gorm.DB) ([]*repositories.StudentWatchData, error) {
	var rows []*repositories.StudentWatchData
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Select(studentRollupSelect).
		Group("student_id").
		Order("total_watch_seconds DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate student rollups: %w", err)
	}
	return rows, nil
}

func (v *VideoWatchPostgreSQL) StudentRollup(ctx context.Context, tx *gorm.DB, studentID string) (*repositories.StudentWatchData, error) {
	var data repositories.StudentWatchData
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Select(studentRollupSelect).
		Where("student_id = ?", studentID).
		Group("student_id").
		Scan(&data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate student rollup: %w", err)
	}
	data.StudentID = studentID
	return &data, nil
}

func (v *VideoWatchPostgreSQL) ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.VideoWatchSession, error) {
	var sessions []*models.VideoWatchSession
	err := v.getDB(tx).WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("last_watched_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by question: %w", err)
	}
	return sessions, nil
}

func (v *VideoWatchPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.VideoWatchSession, error) {
	var sessions []*models.VideoWatchSession
	err := v.getDB(tx).WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("last_watched_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by student: %w", err)
	}
	return sessions, nil
}

func (v *VideoWatchPostgreSQL) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.VideoWatchSession, error) {
	var sessions []*models.VideoWatchSession
	err := v.getDB(tx).WithContext(ctx).
		Order("started_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list watch sessions: %w", err)
	}
	return sessions, nil
}

// BucketSeries groups the watch log into date_trunc buckets, most recent
// first. The granularity enum maps to a fixed unit; caller input never
// reaches the SQL text.
func (v *VideoWatchPostgreSQL) BucketSeries(ctx context.Context, tx *gorm.DB, granularity repositories.BucketGranularity, buckets int) ([]*repositories.WatchBucketData, error) {
	var unit string
	switch granularity {
	case repositories.BucketDay:
		unit = "day"
	case repositories.BucketWeek:
		unit = "week"
	case repositories.BucketMonth:
		unit = "month"
	case repositories.BucketYear:
		unit = "year"
	default:
		return nil, fmt.Errorf("unsupported bucket granularity: %s", granularity)
	}

	if buckets <= 0 {
		buckets = 30
	}

	var rows []*repositories.WatchBucketData
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Select("DATE_TRUNC(?, started_at) as bucket_start, "+
			"COALESCE(SUM(watch_duration_seconds), 0) as total_watch_seconds, "+
			"COUNT(DISTINCT session_id) as distinct_sessions, "+
			"COUNT(DISTINCT student_id) as distinct_students, "+
			"COALESCE(AVG(completion_percentage), 0) as average_completion", unit).
		Group("bucket_start").
		Order("bucket_start DESC").
		Limit(buckets).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bucket series: %w", err)
	}
	return rows, nil
}

// ===== RETENTION SUPPORT =====

func (v *VideoWatchPostgreSQL) SliceOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (*repositories.RetentionSliceData, error) {
	return v.slice(ctx, v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Where("started_at < ?", cutoff))
}

func (v *VideoWatchPostgreSQL) SliceInRange(ctx context.Context, tx *gorm.DB, from, to time.Time) (*repositories.RetentionSliceData, error) {
	return v.slice(ctx, v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Where("started_at >= ? AND started_at < ?", from, to))
}

func (v *VideoWatchPostgreSQL) slice(ctx context.Context, query *gorm.DB) (*repositories.RetentionSliceData, error) {
	var data repositories.RetentionSliceData
	err := query.
		Select("COUNT(*) as count, MIN(started_at) as oldest_at, MAX(started_at) as newest_at").
		Scan(&data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute retention slice: %w", err)
	}
	return &data, nil
}

func (v *VideoWatchPostgreSQL) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	result := v.getDB(tx).WithContext(ctx).
		Where("started_at < ?", cutoff).
		Delete(&models.VideoWatchSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete watch sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (v *VideoWatchPostgreSQL) DeleteInRange(ctx context.Context, tx *gorm.DB, from, to time.Time) (int64, error) {
	result := v.getDB(tx).WithContext(ctx).
		Where("started_at >= ? AND started_at < ?", from, to).
		Delete(&models.VideoWatchSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete watch sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (v *VideoWatchPostgreSQL) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.VideoWatchSession{}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count watch sessions: %w", err)
	}
	return count, nil
}
