package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/events"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

const unknownExamTitle = "Unknown Exam"

type attemptService struct {
	repo      repositories.Repository
	publisher events.Publisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAttemptService(repo repositories.Repository, publisher events.Publisher, logger *slog.Logger, v *validator.Validator) AttemptService {
	return &attemptService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

// loadAttemptableExam resolves an exam a student may take. Draft exams
// are indistinguishable from missing ones.
func (s *attemptService) loadAttemptableExam(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}
	if exam.Status == models.ExamDraft {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

// checkNotAttempted returns AlreadyAttemptedError carrying the prior
// score when the student has a result row for this exam.
func (s *attemptService) checkNotAttempted(ctx context.Context, studentID string, examID uint) error {
	prior, err := s.repo.Result().GetByStudentAndExam(ctx, nil, studentID, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to check prior attempt: %w", err)
	}
	return &AlreadyAttemptedError{ResultID: prior.ID, Score: prior.Score}
}

func (s *attemptService) GetExamForAttempt(ctx context.Context, examID uint, studentID string) (*ExamAttemptView, error) {
	exam, err := s.loadAttemptableExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotAttempted(ctx, studentID, examID); err != nil {
		return nil, err
	}

	assignments, err := s.repo.ExamQuestion().GetByExamOrdered(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}
	if len(assignments) == 0 {
		return nil, ErrExamHasNoQuestions
	}

	questions := make([]AttemptQuestion, 0, len(assignments))
	groupIndex := make(map[uint]int)
	groups := make([]SubjectQuestionGroup, 0)
	for _, a := range assignments {
		q := AttemptQuestion{
			ID:          a.Question.ID,
			SubjectID:   a.Question.SubjectID,
			SubjectName: a.Question.Subject.Name,
			Text:        a.Question.Text,
			OptionA:     a.Question.OptionA,
			OptionB:     a.Question.OptionB,
			OptionC:     a.Question.OptionC,
			OptionD:     a.Question.OptionD,
			VideoURL:    a.Question.VideoURL,
		}
		questions = append(questions, q)

		idx, ok := groupIndex[q.SubjectID]
		if !ok {
			idx = len(groups)
			groupIndex[q.SubjectID] = idx
			groups = append(groups, SubjectQuestionGroup{
				SubjectID:   q.SubjectID,
				SubjectName: q.SubjectName,
			})
		}
		groups[idx].Questions = append(groups[idx].Questions, q)
	}

	return &ExamAttemptView{
		ExamID:          exam.ID,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		TotalQuestions:  len(questions),
		Questions:       questions,
		BySubject:       groups,
	}, nil
}

func (s *attemptService) Submit(ctx context.Context, examID uint, studentID string, req *SubmitExamRequest) (*SubmitExamResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	exam, err := s.loadAttemptableExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotAttempted(ctx, studentID, examID); err != nil {
		return nil, err
	}

	assignments, err := s.repo.ExamQuestion().GetByExamOrdered(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}
	if len(assignments) == 0 {
		return nil, ErrExamHasNoQuestions
	}

	total := len(assignments)
	correct := 0
	frozen := make(map[string]string, len(req.Answers))
	for qid, answer := range req.Answers {
		frozen[strconv.FormatUint(uint64(qid), 10)] = strings.ToUpper(answer)
	}
	breakdown := make([]AnswerBreakdown, 0, total)
	for _, a := range assignments {
		submitted := frozen[strconv.FormatUint(uint64(a.QuestionID), 10)]
		row := breakdownRow(&a.Question, submitted)
		if row.IsCorrect {
			correct++
		}
		breakdown = append(breakdown, row)
	}

	answersJSON, err := json.Marshal(frozen)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	result := &models.ExamResult{
		StudentID:      studentID,
		ExamID:         examID,
		TotalQuestions: total,
		CorrectAnswers: correct,
		Score:          float64(correct) / float64(total) * 100,
		Answers:        answersJSON,
	}

	if err := s.repo.Result().Create(ctx, nil, result); err != nil {
		if repositories.IsDuplicateError(err) {
			// Lost a concurrent double-submit race; the winner's row is
			// the attempt of record.
			prior, lookupErr := s.repo.Result().GetByStudentAndExam(ctx, nil, studentID, examID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load winning attempt: %w", lookupErr)
			}
			return nil, &AlreadyAttemptedError{ResultID: prior.ID, Score: prior.Score}
		}
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	s.publishSubmitted(ctx, result)

	s.logger.Info("exam submitted",
		"exam_id", exam.ID,
		"student_id", studentID,
		"score", result.Score,
		"correct", correct,
		"total", total)

	return &SubmitExamResponse{
		ResultID:       result.ID,
		ExamID:         examID,
		Score:          result.Score,
		TotalQuestions: total,
		CorrectAnswers: correct,
		Breakdown:      breakdown,
		SubmittedAt:    result.CreatedAt,
	}, nil
}

func (s *attemptService) publishSubmitted(ctx context.Context, result *models.ExamResult) {
	if s.publisher == nil {
		return
	}
	event := events.ExamSubmittedEvent{
		ResultID:       result.ID,
		ExamID:         result.ExamID,
		StudentID:      result.StudentID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		SubmittedAt:    result.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.TopicExamSubmitted, event); err != nil {
		s.logger.Warn("failed to publish submit event", "result_id", result.ID, "error", err)
	}
}

func (s *attemptService) GetResult(ctx context.Context, resultID uint, studentID string) (*ResultDetailResponse, error) {
	result, err := s.repo.Result().GetByID(ctx, nil, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	if result.StudentID != studentID {
		return nil, NewPermissionError(studentID, "result", "view", "results are visible to their owner only")
	}

	var frozen map[string]string
	if len(result.Answers) > 0 {
		if err := json.Unmarshal(result.Answers, &frozen); err != nil {
			return nil, fmt.Errorf("failed to decode stored answers: %w", err)
		}
	}

	breakdown, err := s.rebuildBreakdown(ctx, result.ExamID, frozen)
	if err != nil {
		return nil, err
	}

	title := unknownExamTitle
	if exam, err := s.repo.Exam().GetByID(ctx, nil, result.ExamID); err == nil {
		title = exam.Title
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	return &ResultDetailResponse{
		ResultID:       result.ID,
		ExamID:         result.ExamID,
		ExamTitle:      title,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		Breakdown:      breakdown,
		CreatedAt:      result.CreatedAt,
	}, nil
}

// rebuildBreakdown rejoins the exam's question set with the frozen
// answer map, one row per assignment in paper order. Questions deleted
// since submission are silently absent; the stored score and counts are
// never touched.
func (s *attemptService) rebuildBreakdown(ctx context.Context, examID uint, frozen map[string]string) ([]AnswerBreakdown, error) {
	assignments, err := s.repo.ExamQuestion().GetByExamOrdered(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}

	breakdown := make([]AnswerBreakdown, 0, len(assignments))
	for _, a := range assignments {
		if a.Question.ID == 0 {
			continue
		}
		breakdown = append(breakdown, breakdownRow(&a.Question, frozen[strconv.FormatUint(uint64(a.QuestionID), 10)]))
	}
	return breakdown, nil
}

func breakdownRow(q *models.Question, submitted string) AnswerBreakdown {
	return AnswerBreakdown{
		QuestionID:      q.ID,
		Text:            q.Text,
		OptionA:         q.OptionA,
		OptionB:         q.OptionB,
		OptionC:         q.OptionC,
		OptionD:         q.OptionD,
		SubmittedAnswer: submitted,
		CorrectAnswer:   q.CorrectAnswer,
		IsCorrect:       submitted != "" && submitted == q.CorrectAnswer,
		VideoURL:        q.VideoURL,
	}
}

func (s *attemptService) ListHistory(ctx context.Context, studentID string) ([]*HistoryItem, error) {
	results, err := s.repo.Result().ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt history: %w", err)
	}

	items := make([]*HistoryItem, 0, len(results))
	for _, r := range results {
		title := r.Exam.Title
		if title == "" {
			title = unknownExamTitle
		}
		items = append(items, &HistoryItem{
			ResultID:       r.ID,
			ExamID:         r.ExamID,
			ExamTitle:      title,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			CorrectAnswers: r.CorrectAnswers,
			CreatedAt:      r.CreatedAt,
		})
	}
	return items, nil
}
