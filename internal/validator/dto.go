package validator

import (
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
)

// ExamCreateRequest carries the admin payload for creating an exam.
// Date and time halves arrive separately and are combined by the service;
// an empty half yields a null timestamp.
type ExamCreateRequest struct {
	Title           string            `json:"title" validate:"required,min=1,max=200"`
	Description     *string           `json:"description" validate:"omitempty,max=1000"`
	Category        *string           `json:"category" validate:"omitempty,max=100"`
	QuestionIDs     []uint            `json:"question_ids" validate:"required,min=1,dive,required"`
	StartDate       string            `json:"start_date" validate:"omitempty,exam_date"`
	StartTime       string            `json:"start_time" validate:"omitempty,exam_time"`
	EndDate         string            `json:"end_date" validate:"omitempty,exam_date"`
	EndTime         string            `json:"end_time" validate:"omitempty,exam_time"`
	DurationMinutes int               `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	Status          models.ExamStatus `json:"status" validate:"omitempty,exam_status"`
}

// ExamUpdateRequest is a full-replace update; question ids are optional
// and, when present, replace the entire assigned set.
type ExamUpdateRequest struct {
	Title           string            `json:"title" validate:"required,min=1,max=200"`
	Description     *string           `json:"description" validate:"omitempty,max=1000"`
	Category        *string           `json:"category" validate:"omitempty,max=100"`
	QuestionIDs     []uint            `json:"question_ids" validate:"omitempty,dive,required"`
	StartDate       string            `json:"start_date" validate:"omitempty,exam_date"`
	StartTime       string            `json:"start_time" validate:"omitempty,exam_time"`
	EndDate         string            `json:"end_date" validate:"omitempty,exam_date"`
	EndTime         string            `json:"end_time" validate:"omitempty,exam_time"`
	DurationMinutes int               `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	Status          models.ExamStatus `json:"status" validate:"omitempty,exam_status"`
}

type SubmitExamRequest struct {
	Answers map[uint]string `json:"answers" validate:"required,dive,answer_option"`
}

type WatchEventRequest struct {
	SessionID                 string                `json:"session_id" validate:"required,max=100"`
	QuestionID                uint                  `json:"question_id" validate:"required"`
	VideoURL                  string                `json:"video_url" validate:"required,max=500"`
	EventType                 models.WatchEventType `json:"event_type" validate:"required"`
	ExamResultID              *uint                 `json:"exam_result_id"`
	WatchDurationSeconds      float64               `json:"watch_duration_seconds" validate:"omitempty,min=0"`
	VideoTotalDurationSeconds float64               `json:"video_total_duration_seconds" validate:"omitempty,min=0"`
	CompletionPercentage      float64               `json:"completion_percentage" validate:"omitempty,min=0,max=100"`
}

// RetentionRequest selects watch data either by age or by an inclusive
// calendar date range. Exactly one mode applies: older_than_days when
// present, the date range otherwise.
type RetentionRequest struct {
	OlderThanDays *int   `json:"older_than_days" validate:"omitempty,min=1"`
	StartDate     string `json:"start_date" validate:"omitempty,exam_date"`
	EndDate       string `json:"end_date" validate:"omitempty,exam_date"`
	Confirm       bool   `json:"confirm"`
}
