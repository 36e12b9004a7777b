package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
)

// ===== SHARED ROW STRUCTS =====

// ExamAdminRow is one row of the admin exam listing with attempt and
// question counts resolved.
type ExamAdminRow struct {
	Exam          *models.Exam `json:"exam"`
	AttemptCount  int64        `json:"attempt_count"`
	QuestionCount int64        `json:"question_count"`
}

// ===== ANALYTICS DATA STRUCTS =====

type WatchOverviewData struct {
	TotalViews        int64   `json:"total_views"`
	UniqueVideos      int64   `json:"unique_videos"`
	TotalWatchSeconds float64 `json:"total_watch_seconds"`
	AverageCompletion float64 `json:"average_completion"`
	EngagedStudents   int64   `json:"engaged_students"`
	CompletedVideos   int64   `json:"completed_videos"`
}

type QuestionWatchData struct {
	QuestionID        uint    `json:"question_id"`
	Sessions          int64   `json:"sessions"`
	TotalViews        int64   `json:"total_views"`
	TotalWatchSeconds float64 `json:"total_watch_seconds"`
	AverageCompletion float64 `json:"average_completion"`
	DistinctStudents  int64   `json:"distinct_students"`
	CompletedCount    int64   `json:"completed_count"`
}

type StudentWatchData struct {
	StudentID         string  `json:"student_id"`
	Sessions          int64   `json:"sessions"`
	TotalViews        int64   `json:"total_views"`
	TotalWatchSeconds float64 `json:"total_watch_seconds"`
	AverageCompletion float64 `json:"average_completion"`
	CompletedCount    int64   `json:"completed_count"`
}

// BucketGranularity is the closed set of series granularities. Values are
// mapped to date_trunc units inside the repository, never interpolated
// from caller input.
type BucketGranularity string

const (
	BucketDay   BucketGranularity = "day"
	BucketWeek  BucketGranularity = "week"
	BucketMonth BucketGranularity = "month"
	BucketYear  BucketGranularity = "year"
)

func (g BucketGranularity) Valid() bool {
	switch g {
	case BucketDay, BucketWeek, BucketMonth, BucketYear:
		return true
	}
	return false
}

type WatchBucketData struct {
	BucketStart       time.Time `json:"bucket_start"`
	TotalWatchSeconds float64   `json:"total_watch_seconds"`
	DistinctSessions  int64     `json:"distinct_sessions"`
	DistinctStudents  int64     `json:"distinct_students"`
	AverageCompletion float64   `json:"average_completion"`
}

// RetentionSliceData describes the rows a retention operation would touch.
type RetentionSliceData struct {
	Count    int64      `json:"count"`
	OldestAt *time.Time `json:"oldest_at"`
	NewestAt *time.Time `json:"newest_at"`
}

// ===== REPOSITORY INTERFACES =====

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// ListWithCounts returns all exams newest first, each annotated with
	// its distinct attempt and question counts.
	ListWithCounts(ctx context.Context, tx *gorm.DB) ([]*ExamAdminRow, error)

	// ListVisibleToStudents returns all non-draft exams newest first.
	ListVisibleToStudents(ctx context.Context, tx *gorm.DB) ([]*models.Exam, error)
}

type ExamQuestionRepository interface {
	// AddQuestions appends association rows preserving the order of
	// questionIDs.
	AddQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error

	// ReplaceQuestions swaps the full question set of an exam. Callers
	// must run it inside a transaction; a partial failure must not leave
	// a mixed old/new set.
	ReplaceQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error

	GetByExamOrdered(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error
}

type QuestionRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	// GetByIDs returns the questions that still exist; ids without a row
	// are silently absent from the result.
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
}

type SubjectRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error)
	List(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error)
}

type ResultRepository interface {
	Create(ctx context.Context, tx *gorm.DB, result *models.ExamResult) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamResult, error)
	GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamResult, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.ExamResult, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamResult, error)
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error
}

type VideoWatchRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.VideoWatchSession) error
	Update(ctx context.Context, tx *gorm.DB, session *models.VideoWatchSession) error
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.VideoWatchSession, error)

	// Read-side aggregations, all non-mutating.
	Overview(ctx context.Context, tx *gorm.DB) (*WatchOverviewData, error)
	QuestionRollups(ctx context.Context, tx *gorm.DB) ([]*QuestionWatchData, error)
	QuestionRollup(ctx context.Context, tx *gorm.DB, questionID uint) (*QuestionWatchData, error)
	StudentRollups(ctx context.Context, tx *gorm.DB) ([]*StudentWatchData, error)
	StudentRollup(ctx context.Context, tx *gorm.DB, studentID string) (*StudentWatchData, error)
	ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.VideoWatchSession, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.VideoWatchSession, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*models.VideoWatchSession, error)
	BucketSeries(ctx context.Context, tx *gorm.DB, granularity BucketGranularity, buckets int) ([]*WatchBucketData, error)

	// Retention support. Range bounds are half open: from inclusive,
	// to exclusive.
	SliceOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (*RetentionSliceData, error)
	SliceInRange(ctx context.Context, tx *gorm.DB, from, to time.Time) (*RetentionSliceData, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteInRange(ctx context.Context, tx *gorm.DB, from, to time.Time) (int64, error)
	CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
}

// UserRepository is read-only; identities live in Casdoor.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetRole(ctx context.Context, id string) (models.UserRole, error)
}
