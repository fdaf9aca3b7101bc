package item

// PageRequest asks a backend for one cursor page.
//
// With a nil Anchor the newest page is returned for Top and the oldest page
// for Bottom. With an Anchor and HasHash=false the page holds the items
// strictly beyond the anchor in Direction. With HasHash=true the page is
// centred on the anchor and includes it when it still exists.
type PageRequest struct {
	ListID    string `json:"list_id"`
	Anchor    *ID    `json:"anchor,omitempty"`
	Direction End    `json:"direction"`
	HasHash   bool   `json:"has_hash"`
	PageSize  int    `json:"page_size"`
	Filter    Filter `json:"filter,omitempty"`
}

// Page is an ordered batch of items (ascending id) plus an end-of-data flag
// for the requested direction.
type Page struct {
	Items     []Item `json:"items"`
	Exhausted bool   `json:"exhausted"`
}

// Query addresses an offset/limit page of a list for numbered pagination.
type Query struct {
	ListID      string `json:"list_id"`
	Filter      Filter `json:"filter,omitempty"`
	NewestFirst bool   `json:"newest_first"`
	Offset      int    `json:"offset"`
	Limit       int    `json:"limit"`
}

// Numbered is one numbered page together with the authoritative total.
type Numbered struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

// CountResult reports how many items precede a probe in display order and
// whether the probe exists at all.
type CountResult struct {
	Count int  `json:"count"`
	Found bool `json:"found"`
}
