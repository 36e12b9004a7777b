package models

import (
	"time"
)

type WatchEventType string

const (
	WatchEventStart    WatchEventType = "start"
	WatchEventProgress WatchEventType = "progress"
	WatchEventEnd      WatchEventType = "end"
)

// CompletionThreshold is the completion percentage at or above which a
// watch session counts as completed. Fixed business rule.
const CompletionThreshold = 90.0

// VideoWatchSession is one continuous engagement record for a student
// viewing one explainer video, keyed by a client-generated session id.
type VideoWatchSession struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	SessionID string `json:"session_id" gorm:"not null;size:100;uniqueIndex"`

	StudentID    string `json:"student_id" gorm:"not null;size:255;index"`
	QuestionID   uint   `json:"question_id" gorm:"not null;index"`
	ExamResultID *uint  `json:"exam_result_id" gorm:"index"`

	VideoURL string `json:"video_url" gorm:"not null;size:500"`

	WatchDurationSeconds      float64 `json:"watch_duration_seconds" gorm:"not null;default:0"`
	VideoTotalDurationSeconds float64 `json:"video_total_duration_seconds" gorm:"not null;default:0"`
	CompletionPercentage      float64 `json:"completion_percentage" gorm:"not null;default:0"`
	WatchCount                int     `json:"watch_count" gorm:"not null;default:1"`
	IsCompleted               bool    `json:"is_completed" gorm:"not null;default:false;index"`

	StartedAt     time.Time `json:"started_at" gorm:"not null;index"`
	LastWatchedAt time.Time `json:"last_watched_at" gorm:"not null"`
}

func (VideoWatchSession) TableName() string {
	return "video_watch_analytics"
}
