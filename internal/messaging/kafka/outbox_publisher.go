package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish превращает outbox-запись в типизированный OrderEvent.
// Поля order_number и customer_id поднимаются из payload в конверт,
// остальное уходит в metadata.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	eventType := EventType(event.EventType)
	switch eventType {
	case EventTypeOrderCreated, EventTypeOrderUpdated, EventTypeOrderDeleted:
	default:
		return fmt.Errorf("unknown outbox event type: %s", event.EventType)
	}

	metadata := map[string]interface{}{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &metadata); err != nil {
			return fmt.Errorf("decode outbox payload %s: %w", event.ID, err)
		}
	}
	orderNumber, _ := metadata["order_number"].(string)
	customerID, _ := metadata["customer_id"].(string)
	delete(metadata, "order_id")
	delete(metadata, "order_number")
	delete(metadata, "customer_id")

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.PublishEvent(p.topic, key,
		NewOrderEvent(eventType, event.AggregateID, orderNumber, customerID, metadata))
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
