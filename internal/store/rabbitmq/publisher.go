package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// retryDelay is how long a transiently failed job waits on the retry queue
// before dead-lettering back onto the main queue.
const retryDelay = 15 * time.Second

// JobMessage is the queue payload for one reply delivery. Attempt counts
// deliveries of the same job, starting at 1; the worker stops retrying and
// dead-letters once the attempt budget is spent.
type JobMessage struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// Publisher owns the delivery-job topology: the main queue dead-letters to
// the DLQ on final failure, and the retry queue parks transiently failed
// jobs for retryDelay before feeding them back to the main queue.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	main  string
	retry string
	dlq   string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	p := &Publisher{
		conn:  conn,
		ch:    ch,
		main:  queue,
		retry: queue + ".retry",
		dlq:   queue + ".dlq",
	}

	declares := []struct {
		name string
		args amqp.Table
	}{
		{p.dlq, nil},
		{p.retry, amqp.Table{
			"x-message-ttl":             int32(retryDelay / time.Millisecond),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": p.main,
		}},
		{p.main, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": p.dlq,
		}},
	}
	for _, q := range declares {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return p, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishJob enqueues a freshly created delivery job.
func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	return p.publish(ctx, p.main, JobMessage{JobID: jobID, Attempt: 1})
}

// PublishRetry parks a transiently failed job on the retry queue; it comes
// back to the main queue after retryDelay carrying the bumped attempt count.
func (p *Publisher) PublishRetry(ctx context.Context, jobID string, attempt int) error {
	return p.publish(ctx, p.retry, JobMessage{JobID: jobID, Attempt: attempt})
}

func (p *Publisher) publish(ctx context.Context, queue string, msg JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",    // default exchange
		queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
