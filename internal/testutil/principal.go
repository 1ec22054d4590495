package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/brickbook/internal/ir"
)

// Principal returns a deterministic principal for test number n.
//
// Principal(1) is "00000000-0000-0000-0000-000000000001", so golden files
// and log assertions stay stable across runs.
func Principal(n int) ir.Principal {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

// PrincipalSequence hands out Principal(1), Principal(2), ... in order.
//
// Thread-safety: PrincipalSequence is safe for concurrent use via internal
// mutex, so concurrent likers in a test each get a distinct principal.
type PrincipalSequence struct {
	mu   sync.Mutex
	next int
}

// NewPrincipalSequence creates a sequence whose first Next() is Principal(1).
func NewPrincipalSequence() *PrincipalSequence {
	return &PrincipalSequence{}
}

// Next returns the next principal.
func (s *PrincipalSequence) Next() ir.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return Principal(s.next)
}
