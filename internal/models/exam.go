package models

import (
	"time"
)

type ExamStatus string

const (
	ExamDraft    ExamStatus = "draft"
	ExamActive   ExamStatus = "active"
	ExamArchived ExamStatus = "archived"
)

type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index"`
	Description *string    `json:"description" gorm:"type:text"`
	Category    *string    `json:"category" gorm:"size:100"`
	Status      ExamStatus `json:"status" gorm:"default:draft;index"`

	// Scheduling. Either timestamp may be null while the exam is a draft;
	// both must be set before the exam can become active.
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`

	TotalQuestions int    `json:"total_questions" gorm:"not null;default:0"`
	CreatedBy      string `json:"created_by" gorm:"not null;index;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	Results   []ExamResult   `json:"results,omitempty" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	AttemptCount  int64 `json:"attempt_count" gorm:"-"`
	QuestionCount int64 `json:"question_count" gorm:"-"`
}

// ExamQuestion binds a question to an exam. Position records insertion
// order and drives the order questions are surfaced to students.
type ExamQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ExamID     uint `json:"exam_id" gorm:"not null;index:idx_exam_questions_exam"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`
	Position   int  `json:"position" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`

	Question Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Exam) TableName() string {
	return "exams"
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
