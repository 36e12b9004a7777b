package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates all repository interfaces.
type Repository interface {
	Exam() ExamRepository
	ExamQuestion() ExamQuestionRepository
	Question() QuestionRepository
	Subject() SubjectRepository
	Result() ResultRepository
	VideoWatch() VideoWatchRepository

	// User domain (read-only for this service)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// IsNotFoundError reports whether err is the storage-level missing-row error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err is a storage-level uniqueness
// conflict, e.g. a second result row for the same (student, exam) pair.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
