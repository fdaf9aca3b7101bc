// Package engine implements the live, bounded, bidirectional list engine.
//
// A List keeps an in-memory window of a paginated backend list anchored to
// a specific item, extends it in either direction as sentinels become
// visible, evicts from the far end once the window exceeds its cap, and
// applies pushed create/update/delete events without breaking any of that.
//
// ARCHITECTURE:
//
// Single execution context:
// Every method of a List, and every timer callback it schedules, must run
// on one goroutine. The session package provides that goroutine as a
// loop.Loop and passes it in as the scheduler. Nothing in a List locks.
//
// Suspension points:
// Fetcher.FetchPage and Viewport.Commit are the only blocking calls. After
// each one the List checks its generation, so a Reset issued from inside a
// commit callback drops the stale completion instead of mutating a torn
// down window.
//
// Load sequence (LoadTop / LoadBottom):
//  1. Record the extreme id at the load end as the restore anchor
//  2. Freeze the viewport if it implements Freezer
//  3. Fetch the next page beyond the extreme
//  4. Append, commit, reduce to the cap (evicting from the opposite end)
//  5. Scroll the recorded id back to the edge matching the load end
//  6. Thaw
//
// The relative order of eviction and restore is Config.EvictBeforeRestore.
//
// Errors:
// Only fetch failures reach the caller (ErrCodeFetchFailed). They leave the
// window untouched and clear the in-flight flag so a later trigger can
// retry. Everything else (missing anchors, out of order events, viewport
// commit failures) is repaired and logged.
package engine
