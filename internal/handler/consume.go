package handler

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/amit918/Bookstore-backend/pkg/kafka"
	"go.uber.org/zap"
)

type saveRentalEvent func(ctx context.Context, event kafka.RentalEvent) error

type Consumer struct {
	saveEventHandler saveRentalEvent
	log              *zap.Logger
	ready            chan bool
}

func NewConsumer(saveEvent saveRentalEvent, log *zap.Logger) *Consumer {
	return &Consumer{
		saveEventHandler: saveEvent,
		log:              log.Named("consumer"),
		ready:            make(chan bool),
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	// Mark the consumer as ready
	close(consumer.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var event kafka.RentalEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				consumer.log.Error("", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}

			if err := consumer.saveEventHandler(context.Background(), event); err != nil {
				consumer.log.Error("consumer.saveEventHandler", zap.Error(err))
				continue
			}

			consumer.log.Debug("Message claimed:", zap.String("value", string(message.Value)), zap.Time("timestamp", message.Timestamp), zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
