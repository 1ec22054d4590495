package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/patch"
)

// UpdateBuilding is the optimistic update protocol.
//
// Within one transaction it:
//  1. reads the building filtered by (id, expectedRevision) while holding the
//     write lock (BEGIN IMMEDIATE, the SQLite equivalent of SELECT ... FOR UPDATE)
//  2. diffs the stored fields against proposed over the whitelist
//  3. appends a log entry with the forward/reverse patch
//  4. applies the forward patch and sets revision_id to the new log_id,
//     again scoped by (id, expectedRevision)
//
// The revision filter and the row lock overlap on purpose: the lock keeps the
// critical section exclusive and the revision check turns a stale caller into
// a CONFLICT instead of a silent overwrite. Exactly one caller can commit per
// (id, expectedRevision); every other caller gets CONFLICT and must reload.
//
// proposed must already be stripped of read-only keys; any other key outside
// the whitelist is ignored by the diff. An empty diff commits nothing and
// returns the stored building unchanged (no log entry, same revision).
func (s *Store) UpdateBuilding(
	ctx context.Context,
	id, expectedRevision int64,
	proposed ir.Object,
	principal ir.Principal,
) (ir.Building, error) {
	const op = "update"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Building{}, classify(op, id, "begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	// Step 1: lock and read under the expected revision
	row := tx.QueryRowContext(ctx, `
		SELECT `+buildingColumns+`
		FROM buildings b
		WHERE b.building_id = ? AND b.revision_id = ?
	`, id, expectedRevision)
	stored, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Building{}, conflictFor(ctx, tx, op, id, expectedRevision)
	}
	if err != nil {
		return ir.Building{}, classify(op, id, "select for update", err)
	}

	// Step 2: diff
	p := patch.Diff(stored.Fields, proposed, patch.Buildings)
	if p.Empty() {
		if err := tx.Commit(); err != nil {
			return ir.Building{}, classify(op, id, "commit (no-op)", err)
		}
		return stored, nil
	}

	// Step 3: append log entry
	logID, err := appendLog(ctx, tx, id, principal, p.Forward, p.Reverse)
	if err != nil {
		return ir.Building{}, classify(op, id, "append log", err)
	}

	// Step 4: apply forward patch, guarded by the expected revision
	setClause, args, err := updateAssignments(p.Forward)
	if err != nil {
		return ir.Building{}, NewValidationError(op, id, "%v", err)
	}
	args = append(args, logID, id, expectedRevision)
	result, err := tx.ExecContext(ctx, `
		UPDATE buildings
		SET `+setClause+`, revision_id = ?
		WHERE building_id = ? AND revision_id = ?
	`, args...)
	if err != nil {
		return ir.Building{}, classify(op, id, "apply patch", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ir.Building{}, classify(op, id, "rows affected", err)
	}
	if rowsAffected != 1 {
		return ir.Building{}, conflictFor(ctx, tx, op, id, expectedRevision)
	}

	if err := tx.Commit(); err != nil {
		return ir.Building{}, classify(op, id, "commit", err)
	}

	stored.Fields = patch.Apply(stored.Fields, p.Forward)
	stored.RevisionID = logID
	return stored, nil
}

// LikeBuilding is the contention counter protocol.
//
// There is no expected revision: every like is an independent fact, so
// concurrent likes from different principals all commit. Within one
// serializable transaction it:
//  1. records the (building, principal) fact; a duplicate fails the UNIQUE
//     constraint and is reported as ALREADY_ACTED
//  2. recomputes likes_total from the fact table, never from the cached column
//  3. appends a log entry whose forward patch is the new total (no reverse)
//  4. writes likes_total and revision_id unconditionally
//
// SQLite transactions are serializable. A lock timeout surfaces as TRANSIENT
// and the whole call can be retried unchanged.
func (s *Store) LikeBuilding(ctx context.Context, id int64, principal ir.Principal) (ir.Building, error) {
	const op = "like"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return ir.Building{}, classify(op, id, "begin tx", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM buildings WHERE building_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Building{}, NewNotFoundError(op, id, "building")
	}
	if err != nil {
		return ir.Building{}, classify(op, id, "select building", err)
	}

	// Step 1: record the fact
	_, err = tx.ExecContext(ctx, `
		INSERT INTO building_user_likes (building_id, user_id)
		VALUES (?, ?)
	`, id, principal.String())
	if isUniqueViolation(err) {
		return ir.Building{}, &MutationError{
			Kind:       KindAlreadyActed,
			Op:         op,
			BuildingID: id,
			Message:    fmt.Sprintf("user %s already likes this building", principal),
		}
	}
	if err != nil {
		return ir.Building{}, classify(op, id, "insert like", err)
	}

	// Step 2: recount
	total, err := countLikes(ctx, tx, id)
	if err != nil {
		return ir.Building{}, classify(op, id, "recount", err)
	}

	// Step 3: derived log entry
	forward := ir.Object{ir.FieldLikesTotal: ir.Int(total)}
	logID, err := appendLog(ctx, tx, id, principal, forward, nil)
	if err != nil {
		return ir.Building{}, classify(op, id, "append log", err)
	}

	// Step 4: unconditional write; this path owns likes_total
	_, err = tx.ExecContext(ctx, `
		UPDATE buildings
		SET likes_total = ?, revision_id = ?
		WHERE building_id = ?
	`, total, logID, id)
	if err != nil {
		return ir.Building{}, classify(op, id, "update counter", err)
	}

	b, err := readBuilding(ctx, tx, id)
	if err != nil {
		return ir.Building{}, classify(op, id, "read back", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Building{}, classify(op, id, "commit", err)
	}
	return b, nil
}

// appendLog inserts one revision log entry and returns its log_id.
// A nil reverse patch is stored as NULL.
func appendLog(ctx context.Context, q querier, buildingID int64, principal ir.Principal, forward, reverse ir.Object) (int64, error) {
	forwardJSON, err := marshalPatch(forward)
	if err != nil {
		return 0, err
	}
	reverseJSON, err := marshalReversePatch(reverse)
	if err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO logs (building_id, user_id, forward_patch, reverse_patch)
		VALUES (?, ?, ?, ?)
	`, buildingID, principal.String(), forwardJSON, reverseJSON)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// updateAssignments builds "col = ?, ..." for a forward patch, in canonical
// key order. Only whitelisted keys can reach this point, so column names are
// never taken from untrusted input.
func updateAssignments(forward ir.Object) (string, []any, error) {
	keys := forward.SortedKeys()
	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+3)
	for _, k := range keys {
		spec, ok := ir.LookupField(k)
		if !ok {
			return "", nil, fmt.Errorf("field %q is not writable", k)
		}
		v, err := columnValue(spec, forward[k])
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, spec.Name+" = ?")
		args = append(args, v)
	}
	return strings.Join(parts, ", "), args, nil
}

// conflictFor builds the CONFLICT error, looking up the stored revision so
// the caller knows what to reload. A missing building is reported as a
// conflict with revision 0: the protocol cannot tell a wrong id from a
// revision that will never match.
func conflictFor(ctx context.Context, q querier, op string, id, expected int64) error {
	var current int64
	err := q.QueryRowContext(ctx, `SELECT revision_id FROM buildings WHERE building_id = ?`, id).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return classify(op, id, "read current revision", err)
	}
	return newConflictError(op, id, expected, current)
}
