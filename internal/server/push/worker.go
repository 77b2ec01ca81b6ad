package push

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"

	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/repositories/pushtokens"
)

// Worker consumes queued jobs and sends them to the device backend. A token
// the provider reports as unregistered is deactivated so it is never tried
// again; transient send failures are retried with backoff.
type Worker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	sender Sender
	tokens pushtokens.Repository
	logger logging.Logger
}

func NewWorker(url, queue string, sender Sender, tokens pushtokens.Repository, logger logging.Logger) (*Worker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Worker{
		conn:   conn,
		ch:     ch,
		queue:  queue,
		sender: sender,
		tokens: tokens,
		logger: logger,
	}, nil
}

// Run blocks consuming jobs until the context is cancelled or the channel
// closes. A job is acked even when some sends fail: per-token outcomes are
// handled inside, and redelivering the whole job would duplicate the
// notifications that did go through.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.ch.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	w.logger.Info(ctx, "push worker started", "queue", w.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("push queue channel closed")
			}
			w.handle(ctx, msg.Body)
			if err := msg.Ack(false); err != nil {
				w.logger.Warn(ctx, "push job ack failed", "error", err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.Warn(ctx, "malformed push job dropped", "error", err)
		return
	}

	for _, token := range job.Tokens {
		w.deliver(ctx, &job, token)
	}
}

func (w *Worker) deliver(ctx context.Context, job *Job, token string) {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.sender.Send(ctx, token, job.Title, job.Body, job.Data)
		if errors.Is(err, ErrUnregistered) {
			return err
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrUnregistered):
		if derr := w.tokens.DeactivateByToken(ctx, token); derr != nil {
			w.logger.Warn(ctx, "stale token deactivation failed", "error", derr)
		} else {
			w.logger.Info(ctx, "stale push token deactivated", "user_id", job.UserID)
		}
	case err != nil:
		w.logger.Warn(ctx, "push delivery failed", "user_id", job.UserID, "error", err)
	default:
		if terr := w.tokens.TouchLastUsed(ctx, token, time.Now()); terr != nil {
			w.logger.Warn(ctx, "push token touch failed", "error", terr)
		}
	}
}

func (w *Worker) Close() error {
	if err := w.ch.Close(); err != nil {
		w.conn.Close()
		return err
	}
	return w.conn.Close()
}
