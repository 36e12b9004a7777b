package services

import (
	"context"
	"time"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

// ===== REQUEST DTOs =====

// Use business validator types
type CreateExamRequest = validator.ExamCreateRequest
type UpdateExamRequest = validator.ExamUpdateRequest
type SubmitExamRequest = validator.SubmitExamRequest
type WatchEventRequest = validator.WatchEventRequest

// ===== EXAM RESPONSE DTOs =====

type ExamResponse struct {
	*models.Exam
}

// ExamDetailResponse carries the exam with its ordered question ids and
// the start/end timestamps decomposed back into date and time halves.
type ExamDetailResponse struct {
	*models.Exam
	QuestionIDs    []uint `json:"question_ids"`
	StartDate      string `json:"start_date"`
	StartTimeOfDay string `json:"start_time_of_day"`
	EndDate        string `json:"end_date"`
	EndTimeOfDay   string `json:"end_time_of_day"`
}

type AdminExamRow struct {
	*models.Exam
	AttemptCount  int64 `json:"attempt_count"`
	QuestionCount int64 `json:"question_count"`
}

// StudentExamRow annotates a visible exam with the calling student's
// prior attempt, if any.
type StudentExamRow struct {
	*models.Exam
	Attempted   bool       `json:"attempted"`
	ResultID    *uint      `json:"result_id,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	AttemptedAt *time.Time `json:"attempted_at,omitempty"`
}

// ===== ATTEMPT RESPONSE DTOs =====

// AttemptQuestion is a question as surfaced to a student: no correct
// answer, no explanation.
type AttemptQuestion struct {
	ID          uint    `json:"id"`
	SubjectID   uint    `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Text        string  `json:"text"`
	OptionA     string  `json:"option_a"`
	OptionB     string  `json:"option_b"`
	OptionC     string  `json:"option_c"`
	OptionD     string  `json:"option_d"`
	VideoURL    *string `json:"video_url,omitempty"`
}

type SubjectQuestionGroup struct {
	SubjectID   uint              `json:"subject_id"`
	SubjectName string            `json:"subject_name"`
	Questions   []AttemptQuestion `json:"questions"`
}

type ExamAttemptView struct {
	ExamID          uint                   `json:"exam_id"`
	Title           string                 `json:"title"`
	DurationMinutes int                    `json:"duration_minutes"`
	TotalQuestions  int                    `json:"total_questions"`
	Questions       []AttemptQuestion      `json:"questions"`
	BySubject       []SubjectQuestionGroup `json:"by_subject"`
}

// AnswerBreakdown is one row of the per-question result breakdown,
// recomputed from the frozen answers map on every read.
type AnswerBreakdown struct {
	QuestionID      uint    `json:"question_id"`
	Text            string  `json:"text"`
	OptionA         string  `json:"option_a"`
	OptionB         string  `json:"option_b"`
	OptionC         string  `json:"option_c"`
	OptionD         string  `json:"option_d"`
	SubmittedAnswer string  `json:"submitted_answer"`
	CorrectAnswer   string  `json:"correct_answer"`
	IsCorrect       bool    `json:"is_correct"`
	VideoURL        *string `json:"video_url,omitempty"`
}

type SubmitExamResponse struct {
	ResultID       uint              `json:"result_id"`
	ExamID         uint              `json:"exam_id"`
	Score          float64           `json:"score"`
	TotalQuestions int               `json:"total_questions"`
	CorrectAnswers int               `json:"correct_answers"`
	Breakdown      []AnswerBreakdown `json:"breakdown"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}

type ResultDetailResponse struct {
	ResultID       uint              `json:"result_id"`
	ExamID         uint              `json:"exam_id"`
	ExamTitle      string            `json:"exam_title"`
	Score          float64           `json:"score"`
	TotalQuestions int               `json:"total_questions"`
	CorrectAnswers int               `json:"correct_answers"`
	Breakdown      []AnswerBreakdown `json:"breakdown"`
	CreatedAt      time.Time         `json:"created_at"`
}

type HistoryItem struct {
	ResultID       uint      `json:"result_id"`
	ExamID         uint      `json:"exam_id"`
	ExamTitle      string    `json:"exam_title"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	CreatedAt      time.Time `json:"created_at"`
}

// ===== VIDEO TRACKING DTOs =====

type WatchSessionResponse struct {
	*models.VideoWatchSession
}

// ===== ANALYTICS DTOs =====

type WatchOverviewResponse struct {
	*repositories.WatchOverviewData
	TotalWatchHours float64 `json:"total_watch_hours"`
}

type QuestionWatchDetailResponse struct {
	Summary  *repositories.QuestionWatchData `json:"summary"`
	Sessions []*models.VideoWatchSession     `json:"sessions"`
}

type StudentWatchDetailResponse struct {
	Summary  *repositories.StudentWatchData `json:"summary"`
	Sessions []*models.VideoWatchSession    `json:"sessions"`
}

type WatchBucket struct {
	BucketStart       time.Time `json:"bucket_start"`
	Label             string    `json:"label"`
	TotalWatchSeconds float64   `json:"total_watch_seconds"`
	TotalWatchHours   float64   `json:"total_watch_hours"`
	DistinctSessions  int64     `json:"distinct_sessions"`
	DistinctStudents  int64     `json:"distinct_students"`
	AverageCompletion float64   `json:"average_completion"`
}

// WatchSeriesResponse holds buckets most recent first and the
// period-over-period growth between the two most recent buckets.
type WatchSeriesResponse struct {
	Granularity      string        `json:"granularity"`
	Buckets          []WatchBucket `json:"buckets"`
	GrowthPercentage float64       `json:"growth_percentage"`
}

type RetentionPreviewResponse struct {
	WouldDelete int64      `json:"would_delete"`
	WouldRetain int64      `json:"would_retain"`
	OldestAt    *time.Time `json:"oldest_at"`
	NewestAt    *time.Time `json:"newest_at"`
}

type RetentionResultResponse struct {
	DeletedRecords   int64      `json:"deleted_records"`
	OldestAt         *time.Time `json:"oldest_at"`
	NewestAt         *time.Time `json:"newest_at"`
	RemainingRecords int64      `json:"remaining_records"`
}

// ===== EXPLANATION DTOs =====

type QuestionExplanationResponse struct {
	QuestionID         uint   `json:"question_id"`
	ExplanationSummary string `json:"explanation_summary"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Get(ctx context.Context, id uint) (*ExamDetailResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	ListForAdmin(ctx context.Context) ([]*AdminExamRow, error)
	ListForStudent(ctx context.Context, studentID string) ([]*StudentExamRow, error)
}

type AttemptService interface {
	GetExamForAttempt(ctx context.Context, examID uint, studentID string) (*ExamAttemptView, error)
	Submit(ctx context.Context, examID uint, studentID string, req *SubmitExamRequest) (*SubmitExamResponse, error)
	GetResult(ctx context.Context, resultID uint, studentID string) (*ResultDetailResponse, error)
	ListHistory(ctx context.Context, studentID string) ([]*HistoryItem, error)
}

type VideoTrackingService interface {
	TrackEvent(ctx context.Context, studentID string, req *WatchEventRequest) (*WatchSessionResponse, error)
}

type AnalyticsService interface {
	// Read-side aggregations
	Overview(ctx context.Context) (*WatchOverviewResponse, error)
	QuestionRollups(ctx context.Context) ([]*repositories.QuestionWatchData, error)
	QuestionDetail(ctx context.Context, questionID uint) (*QuestionWatchDetailResponse, error)
	StudentRollups(ctx context.Context) ([]*repositories.StudentWatchData, error)
	StudentDetail(ctx context.Context, studentID string) (*StudentWatchDetailResponse, error)
	ExportWatchLog(ctx context.Context, format string) ([]byte, string, error)
	TimeSeries(ctx context.Context, granularity string) (*WatchSeriesResponse, error)

	// Retention
	PreviewByAge(ctx context.Context, olderThanDays int) (*RetentionPreviewResponse, error)
	PreviewByRange(ctx context.Context, startDate, endDate string) (*RetentionPreviewResponse, error)
	DeleteByAge(ctx context.Context, olderThanDays int, confirm bool) (*RetentionResultResponse, error)
	DeleteByRange(ctx context.Context, startDate, endDate string, confirm bool) (*RetentionResultResponse, error)
}

type ExplanationService interface {
	GenerateExplanation(ctx context.Context, questionID uint, userID string) (*QuestionExplanationResponse, error)
}
