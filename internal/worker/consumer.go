package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// errQueueClosed is returned by Start when the broker drops the consumer
var errQueueClosed = errors.New("rabbitmq delivery channel closed")

// setupConsumer starts consuming with manual acks and a bounded prefetch
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.queue.Consume(w.workerID, w.prefetch)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", w.prefetch),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches jobs to worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	closed := w.queue.NotifyClose()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return nil

		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return fmt.Errorf("%w: %v", errQueueClosed, amqpErr)
			}
			return errQueueClosed

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return errQueueClosed
			}

			task, err := parseDelivery(delivery)
			if err != nil {
				w.logger.Error("Rejecting malformed job message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// malformed messages go to the DLQ
				w.nack(task, false)
				continue
			}

			select {
			case w.jobsChan <- task:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", task.JobID),
					slog.Uint64("delivery_tag", task.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				w.nack(task, true)
				return nil
			}
		}
	}
}

func parseDelivery(d amqp.Delivery) (jobTask, error) {
	task := jobTask{DeliveryTag: d.DeliveryTag, Redelivered: d.Redelivered}

	var msg domain.JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return task, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return task, fmt.Errorf("%w: job_id %q is not a UUID", ErrInvalidPayload, msg.JobID)
	}

	task.JobID = msg.JobID
	return task, nil
}
