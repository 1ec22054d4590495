package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedBuilding inserts one building built by testutil.Fixture.
func seedBuilding(t *testing.T, s *Store, id int64, fields ir.Object) {
	t.Helper()
	g, b := testutil.Fixture(id, fields)
	if err := s.Seed(context.Background(), []ir.Geometry{g}, []ir.Building{b}); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
}

// countLogs returns the number of log rows for a building.
func countLogs(t *testing.T, s *Store, buildingID int64) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM logs WHERE building_id = ?", buildingID).Scan(&n); err != nil {
		t.Fatalf("count logs: %v", err)
	}
	return n
}
