// Package harness runs scripted list scenarios against the engine and the
// numbered-page cache, and records what they did as a deterministic trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: initial_load_newest_page
//	description: "A fresh list shows the newest page"
//	list:
//	  page_size: 5
//	  max_items: 10
//	seed:
//	  from: 1
//	  to: 20
//	flow:
//	  - invoke: initial_load
//	    expect:
//	      window: [16, 17, 18, 19, 20]
//	  - invoke: create
//	    args: { fields: { title: "new" } }
//	    expect:
//	      outcome: applied
//	assertions:
//	  - type: window
//	    window: [16, 17, 18, 19, 20, 21]
//	  - type: trace_count
//	    op: create
//	    count: 1
//
// Every step runs on the calling goroutine with a manual scheduler, so
// timers only fire when a step advances virtual time. Live writes go to an
// in-memory backend and the resulting event is delivered to the list (and
// to the numbered-page cache when it is open) before the next step.
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
