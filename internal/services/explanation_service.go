package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/llm"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

type explanationService struct {
	repo   repositories.Repository
	client llm.Client
	logger *slog.Logger
}

func NewExplanationService(repo repositories.Repository, client llm.Client, logger *slog.Logger) ExplanationService {
	return &explanationService{
		repo:   repo,
		client: client,
		logger: logger,
	}
}

func explanationPrompt(q *models.Question) string {
	var b strings.Builder
	b.WriteString("Explain briefly why the correct answer to the following multiple choice question is correct.\n\n")
	b.WriteString("Question: " + q.Text + "\n")
	b.WriteString("A) " + q.OptionA + "\n")
	b.WriteString("B) " + q.OptionB + "\n")
	b.WriteString("C) " + q.OptionC + "\n")
	b.WriteString("D) " + q.OptionD + "\n")
	b.WriteString("Correct answer: " + q.CorrectAnswer + ") " + q.OptionText(q.CorrectAnswer) + "\n")
	return b.String()
}

// GenerateExplanation asks the configured provider for an explanation
// of the question's correct answer and stores it on the question. An
// existing explanation is returned as is without another provider call.
func (s *explanationService) GenerateExplanation(ctx context.Context, questionID uint, userID string) (*QuestionExplanationResponse, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load question: %w", err)
	}

	if question.ExplanationSummary != nil && *question.ExplanationSummary != "" {
		return &QuestionExplanationResponse{
			QuestionID:         question.ID,
			ExplanationSummary: *question.ExplanationSummary,
		}, nil
	}

	summary, err := s.client.Complete(ctx, explanationPrompt(question))
	if err != nil {
		return nil, mapProviderError(err)
	}
	summary = strings.TrimSpace(summary)

	question.ExplanationSummary = &summary
	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to store explanation: %w", err)
	}

	s.logger.Info("explanation generated",
		"question_id", question.ID,
		"requested_by", userID,
		"length", len(summary))

	return &QuestionExplanationResponse{
		QuestionID:         question.ID,
		ExplanationSummary: summary,
	}, nil
}

func mapProviderError(err error) error {
	if errors.Is(err, llm.ErrTimeout) {
		return &UpstreamError{Provider: "llm", Timeout: true}
	}
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return &UpstreamError{Provider: "llm", Status: pe.StatusCode, Message: pe.Message}
	}
	return &UpstreamError{Provider: "llm", Message: err.Error()}
}
