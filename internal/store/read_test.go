package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/testutil"
)

func TestBuilding_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Building(context.Background(), 1)

	assert.True(t, IsNotFound(err))
}

func TestBuilding_UnsetFieldsAreNull(t *testing.T) {
	s := createTestStore(t)
	seedBuilding(t, s, 1, ir.Object{"location_town": ir.String("Leeds")})

	b, err := s.Building(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, b.Fields, len(ir.BuildingFields))
	assert.Equal(t, ir.String("Leeds"), b.Fields["location_town"])
	assert.Equal(t, ir.Null{}, b.Fields["date_year"])
	assert.Equal(t, int64(1), b.GeometryID)
}

func TestBuildingsByReference(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, ir.Object{"ref_toid": ir.String("osgb1000"), "ref_osm_id": ir.Int(9007199254740993)})
	seedBuilding(t, s, 2, ir.Object{"ref_toid": ir.String("osgb2000")})

	byTOID, err := s.BuildingsByReference(ctx, ir.ReferenceTOID, ir.String("osgb2000"))
	require.NoError(t, err)
	require.Len(t, byTOID, 1)
	assert.Equal(t, int64(2), byTOID[0].ID)

	// Above 2^53: must match exactly, no float rounding.
	byOSM, err := s.BuildingsByReference(ctx, ir.ReferenceOSM, ir.Int(9007199254740993))
	require.NoError(t, err)
	require.Len(t, byOSM, 1)
	assert.Equal(t, ir.Int(9007199254740993), byOSM[0].Fields["ref_osm_id"])

	none, err := s.BuildingsByReference(ctx, ir.ReferenceTOID, ir.String("missing"))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestBuildingsByReference_InvalidInput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BuildingsByReference(ctx, ir.ReferenceKind("uprn"), ir.String("1"))
	assert.True(t, IsValidation(err))

	_, err = s.BuildingsByReference(ctx, ir.ReferenceOSM, ir.String("not-a-number"))
	assert.True(t, IsValidation(err))
}

func TestBuildingsNear(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)
	seedBuilding(t, s, 5, nil)

	found, err := s.BuildingsNear(ctx, testutil.Centre(5))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(5), found[0].ID)

	none, err := s.BuildingsNear(ctx, ir.Point{Lng: -120, Lat: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistory_EmptyForUnchangedBuilding(t *testing.T) {
	s := createTestStore(t)
	seedBuilding(t, s, 1, nil)

	history, err := s.History(context.Background(), 1)
	require.NoError(t, err)

	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestLogEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	b, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"location_name": ir.String("Corn Exchange")}, testutil.Principal(3))
	require.NoError(t, err)

	e, err := s.LogEntry(ctx, b.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.BuildingID)
	assert.Equal(t, testutil.Principal(3), e.UserID)
	assert.NotEmpty(t, e.LoggedAt)

	_, err = s.LogEntry(ctx, b.RevisionID+100)
	assert.True(t, IsNotFound(err))
}

func TestSeed_NormalizesStrings(t *testing.T) {
	s := createTestStore(t)
	seedBuilding(t, s, 1, ir.Object{
		"location_name":     ir.String("Cafe\u0301"),
		"date_source_links": ir.Array{ir.String("cafe\u0301.html")},
	})

	b, err := s.Building(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ir.String("Caf\u00e9"), b.Fields["location_name"])
	assert.Equal(t, ir.Array{ir.String("caf\u00e9.html")}, b.Fields["date_source_links"])

	// Echoing the stored record back is not a change.
	same, err := s.UpdateBuilding(context.Background(), 1, 0, b.Fields, testutil.Principal(1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), same.RevisionID)
	assert.Equal(t, 0, countLogs(t, s, 1))
}

func TestReads_CanceledContextIsTransient(t *testing.T) {
	s := createTestStore(t)
	seedBuilding(t, s, 1, nil)
	_, err := s.UpdateBuilding(context.Background(), 1, 0, ir.Object{"date_year": ir.Int(1900)}, testutil.Principal(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		read func() error
	}{
		{"Building", func() error { _, err := s.Building(ctx, 1); return err }},
		{"BuildingAt", func() error { _, err := s.BuildingAt(ctx, 1, 0); return err }},
		{"History", func() error { _, err := s.History(ctx, 1); return err }},
		{"LogEntry", func() error { _, err := s.LogEntry(ctx, 1); return err }},
		{"BuildingsNear", func() error { _, err := s.BuildingsNear(ctx, testutil.Centre(1)); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read()
			require.Error(t, err)
			assert.True(t, IsTransient(err), "got kind %s: %v", KindOf(err), err)
		})
	}
}

func TestSeed_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	g2, b2 := testutil.Fixture(2, nil)
	g1dup, b1dup := testutil.Fixture(1, nil)
	err := s.Seed(ctx, []ir.Geometry{g2, g1dup}, []ir.Building{b2, b1dup})
	require.Error(t, err)

	_, err = s.Building(ctx, 2)
	assert.True(t, IsNotFound(err), "seed must insert nothing when any row fails")
}

func TestSeed_RejectsUnknownField(t *testing.T) {
	s := createTestStore(t)
	g, b := testutil.Fixture(1, ir.Object{"roof_colour": ir.String("red")})

	err := s.Seed(context.Background(), []ir.Geometry{g}, []ir.Building{b})

	assert.Error(t, err)
}
