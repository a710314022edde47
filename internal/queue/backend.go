package queue

import (
	"context"
	"time"
)

// HealthStatus reports whether a Backend can currently serve requests.
type HealthStatus struct {
	Healthy bool
	Detail  string
}

// Backend is the Task Broker + Queue contract. It guarantees at-least-once
// delivery: Ack removes a job permanently, Nack (or a worker crash that
// never acks) makes it eligible for redelivery.
type Backend interface {
	// Enqueue appends job to the tail of the queue. Returns an error
	// wrapping shared.ErrBrokerUnavailable if the backing service cannot be
	// reached.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks up to timeout for a job, moving it into an in-flight
	// list until Ack or Nack. Returns ok=false on timeout with no job
	// available.
	Dequeue(ctx context.Context, timeout time.Duration) (job Job, ok bool, err error)

	// Ack permanently removes a job from the in-flight list.
	Ack(ctx context.Context, requestID string) error

	// Nack returns a job to the head of the queue for redelivery.
	Nack(ctx context.Context, requestID string) error

	// Length reports the number of jobs waiting to be dequeued.
	Length(ctx context.Context) (int64, error)

	// InFlight lists jobs currently dequeued but not yet acked/nacked, for
	// operator visibility (the TUI dashboard's "in-flight jobs" panel).
	InFlight(ctx context.Context) ([]Job, error)

	Health(ctx context.Context) HealthStatus

	Close() error
}
