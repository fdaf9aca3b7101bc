package engine

import "github.com/roach88/listsync/internal/item"

// State is the read-only view of a list handed to the renderer.
type State struct {
	ListID string `json:"list_id"`

	// Items is the window in id order. It is a copy; mutating it has no
	// effect on the list.
	Items []item.Item `json:"items"`

	// IsFirstLoad is true until the first successful initial load, and
	// again after Reset.
	IsFirstLoad bool `json:"is_first_load"`

	// Loading is true while a page fetch is in flight.
	Loading bool `json:"loading"`

	Direction     item.End `json:"direction"`
	ReachedTop    bool     `json:"reached_top"`
	ReachedBottom bool     `json:"reached_bottom"`

	// Revision increases with every commit.
	Revision int64 `json:"revision"`

	// Err is the last fetch failure, cleared by the next successful load.
	Err error `json:"-"`

	// Cycle labels the load cycle that produced the window.
	Cycle string `json:"cycle,omitempty"`
}

// IDs returns the ids of the items in the state.
func (s State) IDs() []item.ID {
	return item.IDs(s.Items)
}
