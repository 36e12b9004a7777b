package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ValidationError represents a single field failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// NewFieldError builds a single-error ValidationErrors for rule checks
// outside struct tags.
func NewFieldError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// Validator wraps go-playground validation with the business rules of
// this service.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerBusinessRules()

	return v
}

// Validate validates a struct and returns field errors, or nil.
func (v *Validator) Validate(s interface{}) ValidationErrors {
	var errs ValidationErrors

	err := v.validate.Struct(s)
	if err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs = append(errs, ValidationError{
				Field:   fieldErr.Field(),
				Message: v.getErrorMessage(fieldErr),
				Value:   fieldErr.Value(),
				Rule:    fieldErr.Tag(),
			})
		}
	}

	return errs
}

func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("exam_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})

	v.validate.RegisterValidation("exam_time", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(TimeLayout, fl.Field().String())
		return err == nil
	})

	v.validate.RegisterValidation("exam_status", func(fl validator.FieldLevel) bool {
		switch models.ExamStatus(fl.Field().String()) {
		case models.ExamDraft, models.ExamActive, models.ExamArchived:
			return true
		}
		return false
	})

	// Answer letters are accepted in either case; the scorer normalizes
	// to upper case.
	v.validate.RegisterValidation("answer_option", func(fl validator.FieldLevel) bool {
		return models.ValidOption(strings.ToUpper(fl.Field().String()))
	})
}

func (v *Validator) getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "exam_date":
		return "must be a date in YYYY-MM-DD format"
	case "exam_time":
		return "must be a time in HH:MM format"
	case "exam_status":
		return "must be one of draft, active, archived"
	case "answer_option":
		return "must be one of A, B, C, D"
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}
