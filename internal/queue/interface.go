package queue

import (
	"context"
	"time"
)

// Receipt is a received purge job awaiting settlement. Exactly one of Ack
// or DeadLetter should be called.
type Receipt interface {
	Job() *Job
	Ack() error
	DeadLetter() error
}

// Publisher hands purge jobs to the broker
type Publisher interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is a purge job broker
type JobQueue interface {
	Publisher

	// Consume streams deliveries until ctx is cancelled. prefetchCount bounds
	// the unsettled deliveries held by this consumer.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Delivery, <-chan error, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

// DeadLetterPruner drops dead-lettered jobs older than a retention period
type DeadLetterPruner interface {
	PruneDeadLetters(ctx context.Context, olderThan time.Duration) (int, error)
}
