package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamResult is the single attempt record for a (student, exam) pair.
// The unique index turns a concurrent double-submit into a detectable
// duplicate-key conflict instead of a silent second row.
type ExamResult struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_results_student_exam"`
	ExamID    uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_results_student_exam"`

	TotalQuestions int     `json:"total_questions" gorm:"not null"`
	CorrectAnswers int     `json:"correct_answers" gorm:"not null"`
	Score          float64 `json:"score" gorm:"not null"`

	// Answers freezes the submitted choice per question id at submission
	// time, keyed by the decimal question id. The rich per-question
	// breakdown is recomputed on read, never stored.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`

	Exam Exam `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
}

func (ExamResult) TableName() string {
	return "exam_results"
}
