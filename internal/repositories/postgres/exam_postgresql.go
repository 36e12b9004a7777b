package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/cache"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

type ExamPostgreSQL struct {
	db    *gorm.DB
	cache *cache.CacheHelper
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:    db,
		cache: cache.NewCacheHelper(redisClient, cache.ExamCacheConfig.Prefix),
	}
}

// getDB returns the transaction DB if provided, otherwise the default DB.
func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := e.getDB(tx).WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	cache.SafeInvalidate(ctx, e.cache, "list:*")
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.getDB(tx).WithContext(ctx).First(&exam, id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := e.getDB(tx).WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}
	cache.SafeInvalidate(ctx, e.cache, fmt.Sprintf("id:%d", exam.ID))
	cache.SafeInvalidate(ctx, e.cache, "list:*")
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := e.getDB(tx).WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeInvalidate(ctx, e.cache, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidate(ctx, e.cache, "list:*")
	return nil
}

func (e *ExamPostgreSQL) ListWithCounts(ctx context.Context, tx *gorm.DB) ([]*repositories.ExamAdminRow, error) {
	db := e.getDB(tx)

	var exams []*models.Exam
	if err := db.WithContext(ctx).Order("created_at DESC").Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	type countRow struct {
		ExamID uint
		Count  int64
	}

	var attemptCounts []countRow
	if err := db.WithContext(ctx).
		Model(&models.ExamResult{}).
		Select("exam_id, COUNT(DISTINCT student_id) as count").
		Group("exam_id").
		Scan(&attemptCounts).Error; err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	var questionCounts []countRow
	if err := db.WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Select("exam_id, COUNT(DISTINCT question_id) as count").
		Group("exam_id").
		Scan(&questionCounts).Error; err != nil {
		return nil, fmt.Errorf("failed to count exam questions: %w", err)
	}

	attemptsByExam := make(map[uint]int64, len(attemptCounts))
	for _, c := range attemptCounts {
		attemptsByExam[c.ExamID] = c.Count
	}
	questionsByExam := make(map[uint]int64, len(questionCounts))
	for _, c := range questionCounts {
		questionsByExam[c.ExamID] = c.Count
	}

	rows := make([]*repositories.ExamAdminRow, 0, len(exams))
	for _, exam := range exams {
		rows = append(rows, &repositories.ExamAdminRow{
			Exam:          exam,
			AttemptCount:  attemptsByExam[exam.ID],
			QuestionCount: questionsByExam[exam.ID],
		})
	}

	return rows, nil
}

func (e *ExamPostgreSQL) ListVisibleToStudents(ctx context.Context, tx *gorm.DB) ([]*models.Exam, error) {
	var exams []*models.Exam
	err := e.getDB(tx).WithContext(ctx).
		Where("status <> ?", models.ExamDraft).
		Order("created_at DESC").
		Find(&exams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visible exams: %w", err)
	}
	return exams, nil
}
