// Package models defines the domain entities passed between the HTTP edge,
// the task broker, and the job pipeline.
//
//   - [Request] : one accepted job, immutable once enqueued
//   - [UserConfig] : a validated snapshot of recognized download options
//   - [Target] : a concrete item resolved from a Request's input
//   - [ItemOverride] : a per-target format override inside a playlist job
//   - [Session] : the scratch directory and credentials file owned by a pipeline run
//
// None of these are persisted entities with CRUD lifecycles; they are
// transient job state that lives for the duration of one request and is
// carried by value (or by pointer, for Session) between components.
package models
