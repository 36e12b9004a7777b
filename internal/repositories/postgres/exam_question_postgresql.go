package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

type ExamQuestionPostgreSQL struct {
	db *gorm.DB
}

func NewExamQuestionPostgreSQL(db *gorm.DB) repositories.ExamQuestionRepository {
	return &ExamQuestionPostgreSQL{db: db}
}

func (eq *ExamQuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return eq.db
}

func (eq *ExamQuestionPostgreSQL) AddQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error {
	if len(questionIDs) == 0 {
		return nil
	}

	rows := make([]models.ExamQuestion, 0, len(questionIDs))
	for i, qid := range questionIDs {
		rows = append(rows, models.ExamQuestion{
			ExamID:     examID,
			QuestionID: qid,
			Position:   i + 1,
		})
	}

	if err := eq.getDB(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to add exam questions: %w", err)
	}
	return nil
}

// ReplaceQuestions deletes the existing set and inserts the new one. The
// caller provides the transaction; running it outside one risks a mixed set.
func (eq *ExamQuestionPostgreSQL) ReplaceQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error {
	db := eq.getDB(tx)

	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.ExamQuestion{}).Error; err != nil {
		return fmt.Errorf("failed to clear exam questions: %w", err)
	}

	return eq.AddQuestions(ctx, db, examID, questionIDs)
}

func (eq *ExamQuestionPostgreSQL) GetByExamOrdered(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	var rows []*models.ExamQuestion
	err := eq.getDB(tx).WithContext(ctx).
		Preload("Question").
		Preload("Question.Subject").
		Where("exam_id = ?", examID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return rows, nil
}

func (eq *ExamQuestionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	err := eq.getDB(tx).WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count exam questions: %w", err)
	}
	return count, nil
}

func (eq *ExamQuestionPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	err := eq.getDB(tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.ExamQuestion{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete exam questions: %w", err)
	}
	return nil
}
