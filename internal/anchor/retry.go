package anchor

import "fmt"

// DefaultRetries is how many times a missing anchor triggers a full reload
// with the default anchor.
const DefaultRetries = 1

// RetryBudget bounds anchor-not-found recovery so a purged anchor can never
// cause an endless reload loop.
type RetryBudget struct {
	max  int
	used int
}

// NewRetryBudget creates a budget allowing max retries.
func NewRetryBudget(max int) *RetryBudget {
	if max < 0 {
		max = 0
	}
	return &RetryBudget{max: max}
}

// Take consumes one retry, or returns RetriesExhaustedError.
func (b *RetryBudget) Take(listID string) error {
	if b.used >= b.max {
		return &RetriesExhaustedError{ListID: listID, Used: b.used, Limit: b.max}
	}
	b.used++
	return nil
}

// Reset refills the budget. Called once an anchor is found.
func (b *RetryBudget) Reset() { b.used = 0 }

// Used returns how many retries have been taken.
func (b *RetryBudget) Used() int { return b.used }

// Max returns the configured limit.
func (b *RetryBudget) Max() int { return b.max }

// RetriesExhaustedError is returned once the anchor has been missing on
// every allowed attempt.
type RetriesExhaustedError struct {
	ListID string
	Used   int
	Limit  int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("anchor for list %s not found after %d of %d retries", e.ListID, e.Used, e.Limit)
}
