// Package progress implements the process-external, TTL'd progress store:
// a keyed JSON record per in-flight request that workers write to and the
// HTTP edge reads from (and uses to request cancellation).
//
// [RedisStore] is the production backend; [MemoryStore] implements the same
// [Store] interface for tests and for operation without a reachable broker.
package progress
