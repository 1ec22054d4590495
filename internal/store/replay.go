package store

import (
	"context"
	"fmt"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/patch"
)

// BuildingAt reconstructs a building as it was right after revision was
// committed. Revision 0 is the state before any logged change.
//
// Whitelisted fields are rebuilt by undoing, newest first, the reverse patch
// of every entry committed after revision. likes_total is taken from the last
// counter entry at or before revision, since counter entries carry no reverse
// patch.
//
// The current row and the log are read in one transaction, so both come
// from the same snapshot.
//
// Returns NOT_FOUND if the building does not exist or revision is neither 0
// nor one of the building's log ids.
func (s *Store) BuildingAt(ctx context.Context, id, revision int64) (ir.Building, error) {
	const op = "building at"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Building{}, classify(op, id, "begin tx", err)
	}
	defer tx.Rollback() // Read-only; never committed

	current, err := readBuilding(ctx, tx, id)
	if err != nil {
		return ir.Building{}, err
	}
	entries, err := readHistory(ctx, tx, id)
	if err != nil {
		return ir.Building{}, err
	}

	if revision != 0 && !containsRevision(entries, revision) {
		return ir.Building{}, NewNotFoundError(op, id, fmt.Sprintf("revision %d", revision))
	}

	state := current
	state.RevisionID = revision
	state.LikesTotal = 0

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.ID <= revision {
			break
		}
		if e.Revertible() {
			state.Fields = patch.Apply(state.Fields, e.Reverse)
		}
	}

	for _, e := range entries {
		if e.ID > revision {
			break
		}
		if total, ok := e.Forward[ir.FieldLikesTotal].(ir.Int); ok {
			state.LikesTotal = int64(total)
		}
	}

	return state, nil
}

func containsRevision(entries []ir.LogEntry, revision int64) bool {
	for _, e := range entries {
		if e.ID == revision {
			return true
		}
	}
	return false
}
