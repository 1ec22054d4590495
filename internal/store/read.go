package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/brickbook/internal/ir"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a protocol transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// buildingColumns is the SELECT list shared by every building read:
// the four read-only columns followed by the whitelist in column order.
var buildingColumns = func() string {
	cols := []string{"b.building_id", "b.geometry_id", "b.revision_id", "b.likes_total"}
	for _, f := range ir.BuildingFields {
		cols = append(cols, "b."+f.Name)
	}
	return strings.Join(cols, ", ")
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuilding(row rowScanner) (ir.Building, error) {
	var b ir.Building
	fieldDests := make([]any, len(ir.BuildingFields))
	for i, f := range ir.BuildingFields {
		fieldDests[i] = columnDest(f)
	}

	dest := append([]any{&b.ID, &b.GeometryID, &b.RevisionID, &b.LikesTotal}, fieldDests...)
	if err := row.Scan(dest...); err != nil {
		return ir.Building{}, err
	}

	b.Fields = make(ir.Object, len(ir.BuildingFields))
	for i, f := range ir.BuildingFields {
		v, err := fieldValue(f, fieldDests[i])
		if err != nil {
			return ir.Building{}, fmt.Errorf("scan building %d: %w", b.ID, err)
		}
		b.Fields[f.Name] = v
	}
	return b, nil
}

func queryBuildings(ctx context.Context, q querier, query string, args ...any) ([]ir.Building, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query buildings", 0, "query", err)
	}
	defer rows.Close()

	buildings := []ir.Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query buildings", 0, "iterate", err)
	}
	return buildings, nil
}

// Building returns the current state of a building.
// Returns a NOT_FOUND MutationError if it does not exist.
func (s *Store) Building(ctx context.Context, id int64) (ir.Building, error) {
	return readBuilding(ctx, s.db, id)
}

func readBuilding(ctx context.Context, q querier, id int64) (ir.Building, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+buildingColumns+`
		FROM buildings b
		WHERE b.building_id = ?
	`, id)
	b, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Building{}, NewNotFoundError("read building", id, "building")
	}
	if err != nil {
		return ir.Building{}, classify("read building", id, "select", err)
	}
	return b, nil
}

// BuildingsByReference returns buildings whose external reference of the
// given kind equals value, ordered by building_id.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) BuildingsByReference(ctx context.Context, kind ir.ReferenceKind, value ir.Value) ([]ir.Building, error) {
	column, ok := ir.ValidReferenceKinds[kind]
	if !ok {
		return nil, NewValidationError("find by reference", 0, "unknown reference kind %q", kind)
	}
	spec, _ := ir.LookupField(column)
	arg, err := columnValue(spec, value)
	if err != nil {
		return nil, NewValidationError("find by reference", 0, "%v", err)
	}

	return queryBuildings(ctx, s.db, `
		SELECT `+buildingColumns+`
		FROM buildings b
		WHERE b.`+column+` = ?
		ORDER BY b.building_id ASC
	`, arg)
}

// BuildingsNear returns buildings whose footprint bounding box contains the
// point, ordered by building_id.
func (s *Store) BuildingsNear(ctx context.Context, p ir.Point) ([]ir.Building, error) {
	return queryBuildings(ctx, s.db, `
		SELECT `+buildingColumns+`
		FROM buildings b
		JOIN geometries g ON g.geometry_id = b.geometry_id
		WHERE g.min_lng <= ? AND g.max_lng >= ?
		  AND g.min_lat <= ? AND g.max_lat >= ?
		ORDER BY b.building_id ASC
	`, p.Lng, p.Lng, p.Lat, p.Lat)
}

const logColumns = "log_id, building_id, user_id, forward_patch, reverse_patch, log_timestamp"

func scanLogEntry(row rowScanner) (ir.LogEntry, error) {
	var (
		e       ir.LogEntry
		userID  string
		forward string
		reverse sql.NullString
	)
	if err := row.Scan(&e.ID, &e.BuildingID, &userID, &forward, &reverse, &e.LoggedAt); err != nil {
		return ir.LogEntry{}, err
	}

	principal, err := ir.ParsePrincipal(userID)
	if err != nil {
		return ir.LogEntry{}, fmt.Errorf("log %d: %w", e.ID, err)
	}
	e.UserID = principal

	if e.Forward, err = unmarshalPatch(forward); err != nil {
		return ir.LogEntry{}, fmt.Errorf("log %d: %w", e.ID, err)
	}
	if reverse.Valid {
		if e.Reverse, err = unmarshalPatch(reverse.String); err != nil {
			return ir.LogEntry{}, fmt.Errorf("log %d: %w", e.ID, err)
		}
	}
	return e, nil
}

// History returns the revision log of a building, oldest first.
// Ordering is by log_id, never by timestamp.
// Returns an empty slice (not nil) if the building was never changed.
func (s *Store) History(ctx context.Context, buildingID int64) ([]ir.LogEntry, error) {
	return readHistory(ctx, s.db, buildingID)
}

func readHistory(ctx context.Context, q querier, buildingID int64) ([]ir.LogEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM logs
		WHERE building_id = ?
		ORDER BY log_id ASC
	`, buildingID)
	if err != nil {
		return nil, classify("history", buildingID, "query", err)
	}
	defer rows.Close()

	entries := []ir.LogEntry{}
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, classify("history", buildingID, "scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("history", buildingID, "iterate", err)
	}
	return entries, nil
}

// LogEntry returns a single revision log entry.
func (s *Store) LogEntry(ctx context.Context, logID int64) (ir.LogEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM logs WHERE log_id = ?`, logID)
	e, err := scanLogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.LogEntry{}, NewNotFoundError("read log", 0, fmt.Sprintf("log entry %d", logID))
	}
	if err != nil {
		return ir.LogEntry{}, classify("read log", 0, fmt.Sprintf("log entry %d", logID), err)
	}
	return e, nil
}

// CountLikes returns the number of recorded likes for a building.
func (s *Store) CountLikes(ctx context.Context, buildingID int64) (int64, error) {
	return countLikes(ctx, s.db, buildingID)
}

func countLikes(ctx context.Context, q querier, buildingID int64) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM building_user_likes WHERE building_id = ?
	`, buildingID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}
