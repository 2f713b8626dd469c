// Package queue carries manual batch job requests from the API to the worker
// over a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueName is the Redis list key for requested job runs
	QueueName = "jobs:requested"
)

// JobMessage is the message published to the queue
type JobMessage struct {
	RequestID   uuid.UUID `json:"request_id"`
	Job         string    `json:"job"`
	RequestedBy uuid.UUID `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher handles publishing job requests to Redis
type Publisher struct {
	client redis.UniversalClient
}

// NewPublisher creates a new Publisher
func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// PublishJob appends a run request for job to the queue
func (p *Publisher) PublishJob(ctx context.Context, job string, requestedBy uuid.UUID) (*JobMessage, error) {
	msg := &JobMessage{
		RequestID:   uuid.New(),
		Job:         job,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	// RPUSH onto the tail, the worker pops from the head (FIFO)
	if err := p.client.RPush(ctx, QueueName, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish to queue: %w", err)
	}

	return msg, nil
}

// QueueLength returns the current number of messages in the queue
func (p *Publisher) QueueLength(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, QueueName).Result()
}
