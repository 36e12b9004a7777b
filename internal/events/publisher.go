package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topics published by this service.
const (
	TopicExamSubmitted = "exam.submitted"
	TopicVideoWatched  = "video.watched"
)

// ExamSubmittedEvent is emitted after an attempt is persisted.
type ExamSubmittedEvent struct {
	ResultID       uint      `json:"result_id"`
	ExamID         uint      `json:"exam_id"`
	StudentID      string    `json:"student_id"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// VideoWatchedEvent is emitted after a watch event is recorded.
type VideoWatchedEvent struct {
	SessionID            string    `json:"session_id"`
	StudentID            string    `json:"student_id"`
	QuestionID           uint      `json:"question_id"`
	EventType            string    `json:"event_type"`
	CompletionPercentage float64   `json:"completion_percentage"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// Publisher publishes domain events. Publishing is best effort; callers
// log and continue on failure rather than failing the request.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

type watermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewKafkaPublisher builds a Kafka-backed publisher.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (Publisher, error) {
	pub, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &watermillPublisher{publisher: pub, logger: logger}, nil
}

// NewGoChannelPublisher builds an in-process publisher for local runs
// without a broker.
func NewGoChannelPublisher(logger *slog.Logger) Publisher {
	pub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return &watermillPublisher{publisher: pub, logger: logger}
}

func (p *watermillPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("Event published", "topic", topic, "message_id", msg.UUID)
	return nil
}

func (p *watermillPublisher) Close() error {
	return p.publisher.Close()
}

// MockEventPublisher records events in memory for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	logger *slog.Logger

	Published map[string][]interface{}
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{
		logger:    logger,
		Published: make(map[string][]interface{}),
	}
}

func (m *MockEventPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published[topic] = append(m.Published[topic], payload)
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// Count returns how many events were published to topic.
func (m *MockEventPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published[topic])
}
