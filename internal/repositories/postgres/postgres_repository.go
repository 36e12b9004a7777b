package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories/casdoor"
)

// PostgreSQLRepository implements the main Repository interface.
type PostgreSQLRepository struct {
	db          *gorm.DB
	redisClient *redis.Client

	exam         repositories.ExamRepository
	examQuestion repositories.ExamQuestionRepository
	question     repositories.QuestionRepository
	subject      repositories.SubjectRepository
	result       repositories.ResultRepository
	videoWatch   repositories.VideoWatchRepository
	user         repositories.UserRepository
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
}

// NewPostgreSQLRepository creates a new repository with all sub-repositories.
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	repo := &PostgreSQLRepository{
		db:          config.DB,
		redisClient: config.RedisClient,
	}

	repo.exam = NewExamPostgreSQL(config.DB, config.RedisClient)
	repo.examQuestion = NewExamQuestionPostgreSQL(config.DB)
	repo.question = NewQuestionPostgreSQL(config.DB)
	repo.subject = NewSubjectPostgreSQL(config.DB)
	repo.result = NewResultPostgreSQL(config.DB)
	repo.videoWatch = NewVideoWatchPostgreSQL(config.DB)

	// User repository uses Casdoor
	repo.user = casdoor.NewUserCasdoor(config.CasdoorConfig, config.RedisClient)

	return repo
}

func (r *PostgreSQLRepository) Exam() repositories.ExamRepository {
	return r.exam
}

func (r *PostgreSQLRepository) ExamQuestion() repositories.ExamQuestionRepository {
	return r.examQuestion
}

func (r *PostgreSQLRepository) Question() repositories.QuestionRepository {
	return r.question
}

func (r *PostgreSQLRepository) Subject() repositories.SubjectRepository {
	return r.subject
}

func (r *PostgreSQLRepository) Result() repositories.ResultRepository {
	return r.result
}

func (r *PostgreSQLRepository) VideoWatch() repositories.VideoWatchRepository {
	return r.videoWatch
}

func (r *PostgreSQLRepository) User() repositories.UserRepository {
	return r.user
}

// WithTransaction executes fn within a database transaction. Every
// sub-repository of the passed Repository runs on the same transaction.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &PostgreSQLRepository{
			db:          tx,
			redisClient: r.redisClient,
		}

		txRepo.exam = NewExamPostgreSQL(tx, r.redisClient)
		txRepo.examQuestion = NewExamQuestionPostgreSQL(tx)
		txRepo.question = NewQuestionPostgreSQL(tx)
		txRepo.subject = NewSubjectPostgreSQL(tx)
		txRepo.result = NewResultPostgreSQL(tx)
		txRepo.videoWatch = NewVideoWatchPostgreSQL(tx)

		// User repository doesn't participate in transactions (external).
		txRepo.user = r.user

		return fn(txRepo)
	})
}

// Ping checks the health of database and cache connections.
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections.
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface.
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize validates configuration and builds the repository.
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	rm.repo = NewPostgreSQLRepository(rm.config)
	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository manager not initialized")
	}
	return rm.repo.Ping(ctx)
}

func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}
	return rm.repo.Close()
}
