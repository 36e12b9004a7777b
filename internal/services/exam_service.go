package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		logger:    logger,
		validator: v,
	}
}

// combineDateTime joins a date half and a time half into one timestamp.
// Either half missing yields a null timestamp.
func combineDateTime(date, clock string) (*time.Time, error) {
	if date == "" || clock == "" {
		return nil, nil
	}
	t, err := time.Parse(validator.DateLayout+" "+validator.TimeLayout, date+" "+clock)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// splitDateTime is the inverse of combineDateTime.
func splitDateTime(t *time.Time) (date, clock string) {
	if t == nil {
		return "", ""
	}
	return t.Format(validator.DateLayout), t.Format(validator.TimeLayout)
}

func (s *examService) requireAdmin(ctx context.Context, userID, action string) error {
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve role for user %s: %w", userID, err)
	}
	if role != models.RoleAdmin {
		return NewPermissionError(userID, "exam", action, "admin role required")
	}
	return nil
}

// resolveQuestions checks that the referenced questions are distinct
// and still exist.
func (s *examService) resolveQuestions(ctx context.Context, ids []uint) ([]*models.Question, error) {
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, validator.NewFieldError("question_ids", "question_ids must not contain duplicates")
		}
		seen[id] = true
	}

	questions, err := s.repo.Question().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if len(questions) != len(ids) {
		return nil, validator.NewFieldError("question_ids", "one or more referenced questions do not exist")
	}
	return questions, nil
}

// checkActivation enforces the preconditions for moving an exam out of
// draft. It never mutates the exam.
func checkActivation(questionCount int, start, end *time.Time) error {
	if questionCount < 1 {
		return NewPreconditionError("an exam needs at least one question before it can be activated")
	}
	if start == nil || end == nil {
		return NewPreconditionError("start and end date and time must all be set before an exam can be activated")
	}
	return nil
}

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}
	if err := s.requireAdmin(ctx, creatorID, "create"); err != nil {
		return nil, err
	}

	startTime, err := combineDateTime(req.StartDate, req.StartTime)
	if err != nil {
		return nil, validator.NewFieldError("start_date", "invalid start date or time")
	}
	endTime, err := combineDateTime(req.EndDate, req.EndTime)
	if err != nil {
		return nil, validator.NewFieldError("end_date", "invalid end date or time")
	}

	status := req.Status
	if status == "" {
		status = models.ExamDraft
	}
	if status == models.ExamActive {
		if err := checkActivation(len(req.QuestionIDs), startTime, endTime); err != nil {
			return nil, err
		}
	}

	if _, err := s.resolveQuestions(ctx, req.QuestionIDs); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Status:          status,
		StartTime:       startTime,
		EndTime:         endTime,
		DurationMinutes: req.DurationMinutes,
		TotalQuestions:  len(req.QuestionIDs),
		CreatedBy:       creatorID,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Create(ctx, nil, exam); err != nil {
			return fmt.Errorf("failed to create exam: %w", err)
		}
		if err := txRepo.ExamQuestion().AddQuestions(ctx, nil, exam.ID, req.QuestionIDs); err != nil {
			return fmt.Errorf("failed to assign questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exam created",
		"exam_id", exam.ID,
		"status", exam.Status,
		"questions", len(req.QuestionIDs),
		"created_by", creatorID)

	exam.QuestionCount = int64(len(req.QuestionIDs))
	return &ExamResponse{Exam: exam}, nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}
	if err := s.requireAdmin(ctx, userID, "update"); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	startTime, err := combineDateTime(req.StartDate, req.StartTime)
	if err != nil {
		return nil, validator.NewFieldError("start_date", "invalid start date or time")
	}
	endTime, err := combineDateTime(req.EndDate, req.EndTime)
	if err != nil {
		return nil, validator.NewFieldError("end_date", "invalid end date or time")
	}

	exam.Title = req.Title
	exam.Description = req.Description
	exam.Category = req.Category
	exam.StartTime = startTime
	exam.EndTime = endTime
	exam.DurationMinutes = req.DurationMinutes
	if req.Status != "" {
		exam.Status = req.Status
	}

	// The question count after this update, counting the replacement set
	// when one was supplied.
	questionCount := 0
	if req.QuestionIDs != nil {
		questionCount = len(req.QuestionIDs)
	} else {
		count, err := s.repo.ExamQuestion().CountByExam(ctx, nil, id)
		if err != nil {
			return nil, fmt.Errorf("failed to count exam questions: %w", err)
		}
		questionCount = int(count)
	}

	if exam.Status == models.ExamActive {
		if err := checkActivation(questionCount, exam.StartTime, exam.EndTime); err != nil {
			return nil, err
		}
	}

	if req.QuestionIDs != nil {
		if _, err := s.resolveQuestions(ctx, req.QuestionIDs); err != nil {
			return nil, err
		}
	}
	exam.TotalQuestions = questionCount

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Update(ctx, nil, exam); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}
		if req.QuestionIDs != nil {
			if err := txRepo.ExamQuestion().ReplaceQuestions(ctx, nil, exam.ID, req.QuestionIDs); err != nil {
				return fmt.Errorf("failed to replace questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exam updated",
		"exam_id", exam.ID,
		"status", exam.Status,
		"questions_replaced", req.QuestionIDs != nil)

	exam.QuestionCount = int64(questionCount)
	return &ExamResponse{Exam: exam}, nil
}

func (s *examService) Get(ctx context.Context, id uint) (*ExamDetailResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	assignments, err := s.repo.ExamQuestion().GetByExamOrdered(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}
	questionIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		questionIDs = append(questionIDs, a.QuestionID)
	}
	exam.QuestionCount = int64(len(questionIDs))

	startDate, startClock := splitDateTime(exam.StartTime)
	endDate, endClock := splitDateTime(exam.EndTime)

	return &ExamDetailResponse{
		Exam:           exam,
		QuestionIDs:    questionIDs,
		StartDate:      startDate,
		StartTimeOfDay: startClock,
		EndDate:        endDate,
		EndTimeOfDay:   endClock,
	}, nil
}

// Delete removes the exam together with its question assignments and
// result rows, all inside one transaction.
func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	if err := s.requireAdmin(ctx, userID, "delete"); err != nil {
		return err
	}

	if _, err := s.repo.Exam().GetByID(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to load exam: %w", err)
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Result().DeleteByExam(ctx, nil, id); err != nil {
			return fmt.Errorf("failed to delete exam results: %w", err)
		}
		if err := txRepo.ExamQuestion().DeleteByExam(ctx, nil, id); err != nil {
			return fmt.Errorf("failed to delete exam questions: %w", err)
		}
		if err := txRepo.Exam().Delete(ctx, nil, id); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to delete exam: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("exam deleted", "exam_id", id, "deleted_by", userID)
	return nil
}

func (s *examService) ListForAdmin(ctx context.Context) ([]*AdminExamRow, error) {
	rows, err := s.repo.Exam().ListWithCounts(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	result := make([]*AdminExamRow, 0, len(rows))
	for _, row := range rows {
		row.Exam.AttemptCount = row.AttemptCount
		row.Exam.QuestionCount = row.QuestionCount
		result = append(result, &AdminExamRow{
			Exam:          row.Exam,
			AttemptCount:  row.AttemptCount,
			QuestionCount: row.QuestionCount,
		})
	}
	return result, nil
}

func (s *examService) ListForStudent(ctx context.Context, studentID string) ([]*StudentExamRow, error) {
	exams, err := s.repo.Exam().ListVisibleToStudents(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	results, err := s.repo.Result().ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt history: %w", err)
	}
	attempts := make(map[uint]*models.ExamResult, len(results))
	for _, r := range results {
		attempts[r.ExamID] = r
	}

	rows := make([]*StudentExamRow, 0, len(exams))
	for _, exam := range exams {
		row := &StudentExamRow{Exam: exam}
		if r, ok := attempts[exam.ID]; ok {
			row.Attempted = true
			row.ResultID = &r.ID
			score := r.Score
			row.Score = &score
			created := r.CreatedAt
			row.AttemptedAt = &created
		}
		rows = append(rows, row)
	}
	return rows, nil
}
