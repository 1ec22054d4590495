package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/testutil"
)

func TestUpdateBuilding_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, ir.Object{"size_storeys_core": ir.Int(3)})
	alice := testutil.Principal(1)

	b, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"size_storeys_core": ir.Int(4)}, alice)
	require.NoError(t, err)

	assert.Equal(t, ir.Int(4), b.Fields["size_storeys_core"])
	assert.Greater(t, b.RevisionID, int64(0))

	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	history, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, b.RevisionID, history[0].ID)
	assert.Equal(t, alice, history[0].UserID)
	assert.Equal(t, ir.Object{"size_storeys_core": ir.Int(4)}, history[0].Forward)
	assert.Equal(t, ir.Object{"size_storeys_core": ir.Int(3)}, history[0].Reverse)
}

// Record at R5 with storeys 3; A moves it to storeys 4; B, still at R5,
// is rejected and the record stays at A's revision.
func TestUpdateBuilding_StaleRevisionScenario(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, ir.Object{"size_storeys_core": ir.Int(1)})
	editor := testutil.Principal(9)

	// Walk the record to a non-trivial revision first.
	var r5 int64
	for i := int64(2); i <= 3; i++ {
		b, err := s.UpdateBuilding(ctx, 1, r5, ir.Object{"size_storeys_core": ir.Int(i)}, editor)
		require.NoError(t, err)
		r5 = b.RevisionID
	}

	a, err := s.UpdateBuilding(ctx, 1, r5, ir.Object{"size_storeys_core": ir.Int(4)}, testutil.Principal(1))
	require.NoError(t, err)
	r6 := a.RevisionID
	assert.Greater(t, r6, r5)

	_, err = s.UpdateBuilding(ctx, 1, r5, ir.Object{"size_storeys_core": ir.Int(5)}, testutil.Principal(2))
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.True(t, errors.Is(err, ErrConflict))

	var me *MutationError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, r6, me.CurrentRevision)

	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, r6, stored.RevisionID)
	assert.Equal(t, ir.Int(4), stored.Fields["size_storeys_core"])

	history, err := s.History(ctx, 1)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, ir.Object{"size_storeys_core": ir.Int(4)}, last.Forward)
	assert.Equal(t, ir.Object{"size_storeys_core": ir.Int(3)}, last.Reverse)
	assert.Equal(t, 3, countLogs(t, s, 1))
}

func TestUpdateBuilding_UnknownBuildingIsConflict(t *testing.T) {
	s := createTestStore(t)

	_, err := s.UpdateBuilding(context.Background(), 404, 0, ir.Object{"date_year": ir.Int(1900)}, testutil.Principal(1))

	assert.True(t, IsConflict(err), "got %v", err)
}

func TestUpdateBuilding_NoChangeWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, ir.Object{"location_name": ir.String("Mill")})

	b, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"location_name": ir.String("Mill")}, testutil.Principal(1))
	require.NoError(t, err)

	assert.Equal(t, int64(0), b.RevisionID)
	assert.Equal(t, 0, countLogs(t, s, 1))
}

func TestUpdateBuilding_IgnoresNonWhitelistedKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	b, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{
		"likes_total":  ir.Int(1000),
		"not_a_column": ir.String("x"),
		"date_year":    ir.Int(1851),
	}, testutil.Principal(1))
	require.NoError(t, err)

	assert.Equal(t, int64(0), b.LikesTotal)
	assert.Equal(t, ir.Int(1851), b.Fields["date_year"])

	history, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ir.Object{"date_year": ir.Int(1851)}, history[0].Forward)
	assert.Equal(t, ir.Object{"date_year": ir.Null{}}, history[0].Reverse)
}

func TestUpdateBuilding_ArrayFieldRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)
	links := ir.Array{ir.String("https://example.org/a"), ir.String("https://example.org/b")}

	_, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"date_source_links": links}, testutil.Principal(1))
	require.NoError(t, err)

	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, links, stored.Fields["date_source_links"])
}

func TestUpdateBuilding_InvalidKindRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	_, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"date_year": ir.String("eighteen fifty")}, testutil.Principal(1))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	// The log append happened inside the transaction and must be gone.
	assert.Equal(t, 0, countLogs(t, s, 1))
	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.RevisionID)
}

func TestUpdateBuilding_CanceledContextHasNoEffect(t *testing.T) {
	s := createTestStore(t)
	seedBuilding(t, s, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"date_year": ir.Int(1900)}, testutil.Principal(1))
	require.Error(t, err)

	assert.Equal(t, 0, countLogs(t, s, 1))
}

func TestUpdateBuilding_ConcurrentSameRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, ir.Object{"size_storeys_core": ir.Int(1)})
	const n = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
		others    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpdateBuilding(ctx, 1, 0, ir.Object{"size_storeys_core": ir.Int(int64(100 + i))}, testutil.Principal(i+1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case IsConflict(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, countLogs(t, s, 1))

	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	history, err := s.History(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, history[0].ID, stored.RevisionID)
}

func TestUpdateBuilding_LinearHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	rev := int64(0)
	var revisions []int64
	for year := int64(1900); year < 1905; year++ {
		b, err := s.UpdateBuilding(ctx, 1, rev, ir.Object{"date_year": ir.Int(year)}, testutil.Principal(1))
		require.NoError(t, err)
		assert.Greater(t, b.RevisionID, rev)
		rev = b.RevisionID
		revisions = append(revisions, rev)
	}

	history, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, len(revisions))
	for i, e := range history {
		assert.Equal(t, revisions[i], e.ID)
	}
}

func TestLikeBuilding_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	b, err := s.LikeBuilding(ctx, 1, testutil.Principal(1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), b.LikesTotal)
	assert.Greater(t, b.RevisionID, int64(0))

	history, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ir.Object{"likes_total": ir.Int(1)}, history[0].Forward)
	assert.Nil(t, history[0].Reverse)
	assert.False(t, history[0].Revertible())
}

func TestLikeBuilding_AlreadyLiked(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)
	alice := testutil.Principal(1)

	first, err := s.LikeBuilding(ctx, 1, alice)
	require.NoError(t, err)

	_, err = s.LikeBuilding(ctx, 1, alice)
	require.Error(t, err)
	assert.True(t, IsAlreadyActed(err))
	assert.True(t, errors.Is(err, ErrAlreadyLiked))
	assert.False(t, IsConflict(err))
	assert.False(t, IsTransient(err))

	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
	assert.Equal(t, 1, countLogs(t, s, 1))
}

func TestLikeBuilding_UnknownBuilding(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LikeBuilding(context.Background(), 404, testutil.Principal(1))

	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestLikeBuilding_ConcurrentDistinctPrincipals(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)
	const n = 25
	principals := testutil.NewPrincipalSequence()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.LikeBuilding(ctx, 1, principals.Next())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := s.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.LikesTotal)
	assert.Equal(t, n, countLogs(t, s, 1))

	likes, err := s.CountLikes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(n), likes)
}

func TestLikeBuilding_RecountsFromFacts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	// Corrupt the cached counter; the next like must not build on it.
	_, err := s.db.Exec("UPDATE buildings SET likes_total = 999 WHERE building_id = 1")
	require.NoError(t, err)

	b, err := s.LikeBuilding(ctx, 1, testutil.Principal(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.LikesTotal)
}

func TestLikeAndUpdate_Interleave(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedBuilding(t, s, 1, nil)

	liked, err := s.LikeBuilding(ctx, 1, testutil.Principal(1))
	require.NoError(t, err)

	// A like advances the revision, so an editor holding revision 0 is stale.
	_, err = s.UpdateBuilding(ctx, 1, 0, ir.Object{"date_year": ir.Int(1900)}, testutil.Principal(2))
	assert.True(t, IsConflict(err))

	b, err := s.UpdateBuilding(ctx, 1, liked.RevisionID, ir.Object{"date_year": ir.Int(1900)}, testutil.Principal(2))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.LikesTotal)
	assert.Greater(t, b.RevisionID, liked.RevisionID)
}
