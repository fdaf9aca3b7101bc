// Package pager implements the numbered-page cache used by small, finite
// dialogs: one page of a list at a time, addressed by page number, with
// the total count driving the pagination controls.
//
// A Cache is not windowed and never restores scroll positions. It shares
// the create/update/delete reconciliation contract of the cursor list, so
// live events keep it consistent while it is open.
//
// A Cache is not safe for concurrent use; the owning session drives it
// from its loop goroutine.
package pager
