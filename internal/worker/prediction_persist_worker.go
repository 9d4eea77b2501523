package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"caffmed-api/internal/model"
)

// PredictionStore is the persistence side of the worker.
type PredictionStore interface {
	Create(ctx context.Context, p *model.Prediction) error
}

// PredictionPersistWorker drains the prediction queue into the history store.
type PredictionPersistWorker struct {
	conn      *amqp.Connection
	store     PredictionStore
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPredictionPersistWorker(conn *amqp.Connection, store PredictionStore, queueName string, log *zap.Logger) *PredictionPersistWorker {
	return &PredictionPersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log.Named("persist-worker"),
	}
}

func (w *PredictionPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

// Acknowledger is the subset of amqp.Delivery the worker needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *PredictionPersistWorker) handle(ctx context.Context, d amqp.Delivery) {
	w.process(ctx, d.Body, d)
}

func (w *PredictionPersistWorker) process(ctx context.Context, body []byte, ack Acknowledger) {
	var rec model.Prediction
	if err := json.Unmarshal(body, &rec); err != nil {
		w.log.Error("decode prediction failed", zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}

	if err := w.store.Create(ctx, &rec); err != nil {
		w.log.Error("persist prediction failed", zap.String("request_id", rec.RequestID), zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
}

func (w *PredictionPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
