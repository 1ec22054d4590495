package catalogue

import "fmt"

// DefaultLikeRetries is the default number of times a like is retried after
// a transient store failure.
const DefaultLikeRetries = 3

// retryBudget counts attempts of one call and enforces a maximum number of
// retries. Each call gets its own budget.
type retryBudget struct {
	max     int // Maximum retries after the first attempt
	retries int // Retries used so far
}

func newRetryBudget(max int) *retryBudget {
	if max < 0 {
		max = 0
	}
	return &retryBudget{max: max}
}

// Spend consumes one retry. Returns an error wrapping cause once the budget
// is exhausted.
func (b *retryBudget) Spend(cause error) error {
	if b.retries >= b.max {
		return fmt.Errorf("gave up after %d retries: %w", b.retries, cause)
	}
	b.retries++
	return nil
}

// Used returns the number of retries consumed.
func (b *retryBudget) Used() int {
	return b.retries
}
