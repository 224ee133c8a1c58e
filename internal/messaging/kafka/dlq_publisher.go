package kafka

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

// DLQPublisher отправляет недоставленные outbox-сообщения в dead letter
// topic. Контекст сбоя переносится в Kafka headers, чтобы сообщение
// можно было разобрать и переиграть без распаковки тела.
type DLQPublisher struct {
	producer      *Producer
	topic         string
	originalTopic string
}

// NewDLQPublisher создаёт DLQ-паблишер. originalTopic — topic, в который
// сообщение не удалось доставить.
func NewDLQPublisher(producer *Producer, topic, originalTopic string) *DLQPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	if originalTopic == "" {
		originalTopic = TopicOrderEvents
	}
	return &DLQPublisher{
		producer:      producer,
		topic:         topic,
		originalTopic: originalTopic,
	}
}

func (p *DLQPublisher) PublishDead(event domain.OutboxMessage, publishErr error, attempts int) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	errorMessage := ""
	if publishErr != nil {
		errorMessage = publishErr.Error()
	}
	headers := map[string]string{
		HeaderRetryCount:    strconv.Itoa(attempts),
		HeaderOriginalTopic: p.originalTopic,
		HeaderErrorMessage:  errorMessage,
		HeaderFailedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.PublishRaw(p.topic, key, event.Payload, headers)
}

var _ domain.DeadLetterPublisher = (*DLQPublisher)(nil)
