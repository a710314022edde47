// Package resolver implements the Media Resolver: turning a Request's raw
// input (or pre-selected targets) into an ordered list of [models.Target]
// values the Download Engine can act on.
//
// Three platforms are modeled as a tagged union rather than compared by
// string: the general video catalog, the music-license-centric catalog used
// for alternate-source resolution, and that catalog's music-specialized
// search frontend. Each carries its own detection predicate and resolver
// implementation.
package resolver
