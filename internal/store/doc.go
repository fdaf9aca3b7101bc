// Package store provides the reference backends a list engine pages
// through: a SQLite store for servers and an in-memory store for
// simulations and tests.
//
// Both backends implement the same contracts:
//
// Cursor pages (FetchPage):
//   - No anchor, Top: the newest page. No anchor, Bottom: the oldest page.
//   - Anchor without hash: items strictly beyond the anchor in the
//     requested direction.
//   - Anchor with hash: a page centred on the anchor, including it when it
//     still exists.
//   - Items are always returned in ascending id order. Exhausted reports
//     that nothing lies beyond the page in the requested direction.
//
// Numbered pages (FetchNumbered, FetchCount, FetchCountFiltered):
//   - Offset/limit over the display order (newest first, or oldest first)
//     with the authoritative count.
//
// Event log (EventsSince, LatestSeq):
//   - Every Create, Update and Delete appends an event with a strictly
//     increasing sequence number, so a pushing transport can resume from
//     the last delivered seq.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - Single connection: SQLite allows one writer
package store
