// Package transport serves a list backend over HTTP and consumes it from
// the other side.
//
// Routes (all JSON unless noted):
//
//	GET    /v1/lists/{list}/items         cursor page (anchor, direction, has_hash, page_size, filter)
//	POST   /v1/lists/{list}/items         create an item ({"fields": {...}})
//	GET    /v1/lists/{list}/pages         numbered page (offset, limit, newest_first, filter)
//	GET    /v1/lists/{list}/count         item count (filter)
//	GET    /v1/lists/{list}/count-before  items before a probe (probe, newest_first, filter)
//	GET    /v1/lists/{list}/events        live events as text/event-stream
//	PUT    /v1/items/{id}                 replace an item's fields
//	DELETE /v1/items/{id}                 delete an item
//	GET    /metrics                       Prometheus exposition
//
// The event stream sets the SSE id to the event seq. A client that
// reconnects with Last-Event-ID first receives every event it missed.
package transport
