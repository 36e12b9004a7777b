package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

func (r *ResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the attempt record. A duplicate (student, exam) pair
// surfaces as gorm.ErrDuplicatedKey via the driver error translator.
func (r *ResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.ExamResult) error {
	return r.getDB(tx).WithContext(ctx).Create(result).Error
}

func (r *ResultPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamResult, error) {
	var result models.ExamResult
	err := r.getDB(tx).WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamResult, error) {
	var result models.ExamResult
	err := r.getDB(tx).WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.ExamResult, error) {
	var results []*models.ExamResult
	err := r.getDB(tx).WithContext(ctx).
		Preload("Exam").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamResult, error) {
	var results []*models.ExamResult
	err := r.getDB(tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exam results: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	err := r.getDB(tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.ExamResult{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete exam results: %w", err)
	}
	return nil
}
