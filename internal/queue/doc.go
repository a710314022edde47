// Package queue implements the Task Broker + Queue: durable, at-least-once
// FIFO dispatch of job records from the HTTP edge to the worker pool.
//
// [Backend] is deliberately narrow compared to a general-purpose work queue
// (no dead-letter migration, no cursor iteration) because the pipeline's
// only redelivery story is "redo the whole job" -- see [RedisBackend].
package queue
