package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := q.getDB(tx).WithContext(ctx).
		Preload("Subject").
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []*models.Question
	err := q.getDB(tx).WithContext(ctx).
		Preload("Subject").
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := q.getDB(tx).WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return nil
}

type SubjectPostgreSQL struct {
	db *gorm.DB
}

func NewSubjectPostgreSQL(db *gorm.DB) repositories.SubjectRepository {
	return &SubjectPostgreSQL{db: db}
}

func (s *SubjectPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SubjectPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error) {
	var subject models.Subject
	err := s.getDB(tx).WithContext(ctx).First(&subject, id).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectPostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error) {
	var subjects []*models.Subject
	err := s.getDB(tx).WithContext(ctx).Order("name ASC").Find(&subjects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}
