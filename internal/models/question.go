package models

import (
	"time"
)

const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

// ValidOption reports whether letter is one of the four answer choices.
func ValidOption(letter string) bool {
	switch letter {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

type Subject struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:100;uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
}

type Question struct {
	ID         uint  `json:"id" gorm:"primaryKey"`
	SubjectID  uint  `json:"subject_id" gorm:"not null;index"`
	CategoryID *uint `json:"category_id" gorm:"index"`

	Text    string `json:"text" gorm:"not null;type:text"`
	OptionA string `json:"option_a" gorm:"not null;size:500"`
	OptionB string `json:"option_b" gorm:"not null;size:500"`
	OptionC string `json:"option_c" gorm:"not null;size:500"`
	OptionD string `json:"option_d" gorm:"not null;size:500"`

	// One of A, B, C or D.
	CorrectAnswer string `json:"correct_answer" gorm:"not null;size:1"`

	VideoURL *string `json:"video_url" gorm:"size:500"`

	// Generated by the explanation provider; absent until requested.
	ExplanationSummary *string `json:"explanation_summary" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Subject Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}

// OptionText returns the option body for a choice letter, or "" for an
// unknown letter.
func (q *Question) OptionText(letter string) string {
	switch letter {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	}
	return ""
}

func (Subject) TableName() string {
	return "subjects"
}

func (Question) TableName() string {
	return "questions"
}
