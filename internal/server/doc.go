// Package server implements the thin HTTP edge described in spec.md §6 and
// §9: it accepts a download request, consults the Quota Tracker, creates a
// Progress Store entry, enqueues a job, and exposes the progress/artifact
// streaming endpoints. It is intentionally narrow -- CSRF, template
// rendering, and anything beyond shape-level request validation are
// out of scope (spec.md §1 "Out of scope, treated as external
// collaborators").
//
// To avoid the routes<->logic import cycle the original Python service had
// (spec.md §9 "Cyclic risk"), this package depends only on the small
// interfaces it defines itself (JobService, Canceller, ArtifactServer),
// satisfied by *Service, which in turn depends on queue.Backend,
// progress.Store, and quota.Tracker.
package server
