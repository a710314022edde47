// Package repositories provides atomic sequence generation shared by
// persistence layers that need stable, human-readable ordering independent
// of UUIDs and timestamps.
//
// [NextSequence] is consumed by the job-history ledger (see internal/store)
// to number entries for display and debugging; it is not exposed to clients.
package repositories
