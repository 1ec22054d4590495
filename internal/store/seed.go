package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/brickbook/internal/ir"
)

// Seed inserts geometries and buildings in a single transaction.
//
// This is the creation path: buildings start at revision 0 with no log
// entry and no likes, whatever RevisionID or LikesTotal the input carries.
// Existing ids make the whole seed fail; nothing is inserted in that case.
// Strings are stored NFC normalized, the same form saves compare against.
func (s *Store) Seed(ctx context.Context, geometries []ir.Geometry, buildings []ir.Building) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, g := range geometries {
		if err := insertGeometry(ctx, tx, g); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for _, b := range buildings {
		if err := insertBuilding(ctx, tx, b); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

func insertGeometry(ctx context.Context, q querier, g ir.Geometry) error {
	if g.MinLng > g.MaxLng || g.MinLat > g.MaxLat {
		return fmt.Errorf("geometry %d: inverted bounding box", g.ID)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO geometries (geometry_id, min_lng, min_lat, max_lng, max_lat)
		VALUES (?, ?, ?, ?, ?)
	`, g.ID, g.MinLng, g.MinLat, g.MaxLng, g.MaxLat)
	if err != nil {
		return fmt.Errorf("insert geometry %d: %w", g.ID, err)
	}
	return nil
}

func insertBuilding(ctx context.Context, q querier, b ir.Building) error {
	cols := []string{"building_id", "geometry_id"}
	args := []any{b.ID, b.GeometryID}

	for _, spec := range ir.BuildingFields {
		v, ok := b.Fields[spec.Name]
		if !ok {
			continue
		}
		arg, err := columnValue(spec, ir.Normalize(v))
		if err != nil {
			return fmt.Errorf("insert building %d: %w", b.ID, err)
		}
		cols = append(cols, spec.Name)
		args = append(args, arg)
	}
	for k := range b.Fields {
		if _, ok := ir.LookupField(k); !ok {
			return fmt.Errorf("insert building %d: unknown field %q", b.ID, k)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	_, err := q.ExecContext(ctx, `
		INSERT INTO buildings (`+strings.Join(cols, ", ")+`)
		VALUES (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("insert building %d: %w", b.ID, err)
	}
	return nil
}
