// Package loop provides the single cooperative execution context that a
// list instance runs on.
//
// Every mutation of a window or page cache happens inside a task run by
// Loop.Run on one goroutine: UI callbacks, debounced timer callbacks, and
// live events are all posted to the same FIFO queue, so a live event can
// never interleave with a half-finished load or eviction.
//
// Thread-safety model:
//   - Post(), Do(), Stop(), AfterFunc(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Do() must not be called from inside a task (it would wait on itself)
package loop
