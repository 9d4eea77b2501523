package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"caffmed-api/internal/model"
)

// PredictionPublisher enqueues prediction records for the persist worker. A
// channel is not safe for concurrent publishing, so publishes share one
// channel under a mutex and reopen it after a failure.
type PredictionPublisher struct {
	conn      *amqp.Connection
	queueName string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPredictionPublisher(conn *amqp.Connection, queueName string) *PredictionPublisher {
	return &PredictionPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *PredictionPublisher) Publish(ctx context.Context, rec model.Prediction) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal prediction payload failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("open rabbitmq channel failed: %w", err)
		}
		if err := declareOn(ch, p.queueName); err != nil {
			_ = ch.Close()
			return err
		}
		p.ch = ch
	}

	if err := p.ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    rec.RequestID,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		_ = p.ch.Close()
		p.ch = nil
		return fmt.Errorf("publish prediction failed: %w", err)
	}
	return nil
}

func (p *PredictionPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
