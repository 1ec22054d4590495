package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/roach88/brickbook/internal/catalogue"
	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/store"
	"github.com/roach88/brickbook/internal/testutil"
)

// Harness runs scenarios against a real catalogue service backed by a fresh
// in-memory store. Principals are deterministic (testutil.Principal), and
// revision ids in a fresh store are 1, 2, 3... so traces are reproducible.
type Harness struct {
	store   *store.Store
	service *catalogue.Service
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Seed fixtures
//  3. Execute steps, checking each outcome
//  4. Evaluate assertions and collect final history
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		service: catalogue.New(st,
			catalogue.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
			catalogue.WithRetryBackoff(time.Millisecond),
		),
	}

	if err := Seed(ctx, st, &scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to seed fixtures: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute steps[%d]: %w", i, err)
		}
	}

	if err := h.evaluateAssertions(ctx, scenario.Assertions, result); err != nil {
		return nil, fmt.Errorf("failed to evaluate assertions: %w", err)
	}
	return result, nil
}

// Seeder is the store surface Seed needs. *store.Store implements it.
type Seeder interface {
	Seed(ctx context.Context, geometries []ir.Geometry, buildings []ir.Building) error
}

// Seed inserts a fixture set. Buildings whose geometry is not listed get a
// generated footprint with the same id.
func Seed(ctx context.Context, s Seeder, set *FixtureSet) error {
	geometries, buildings, err := set.Build()
	if err != nil {
		return err
	}
	return s.Seed(ctx, geometries, buildings)
}

// Build converts the fixture set into store records.
func (set *FixtureSet) Build() ([]ir.Geometry, []ir.Building, error) {
	geometries := append([]ir.Geometry(nil), set.Geometries...)
	known := make(map[int64]bool, len(geometries))
	for _, g := range geometries {
		known[g.ID] = true
	}

	buildings := make([]ir.Building, 0, len(set.Buildings))
	for _, fb := range set.Buildings {
		gid := fb.GeometryID
		if gid == 0 {
			gid = fb.ID
		}
		if !known[gid] {
			g, _ := testutil.Fixture(gid, nil)
			geometries = append(geometries, g)
			known[gid] = true
		}

		fields, err := ir.ObjectFromMap(fb.Fields)
		if err != nil {
			return nil, nil, fmt.Errorf("building %d: %w", fb.ID, err)
		}
		buildings = append(buildings, ir.Building{ID: fb.ID, GeometryID: gid, Fields: fields})
	}
	return geometries, buildings, nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	revision, err := h.resolveRevision(ctx, step)
	if err != nil {
		return err
	}

	if step.Parallel > 1 {
		return h.executeParallel(ctx, index, step, revision, result)
	}

	b, err := h.apply(ctx, step, step.User, revision)
	outcome := outcomeOf(err)

	event := TraceEvent{
		Step:     index,
		Action:   step.Action,
		Building: step.Building,
		User:     step.User,
		Outcome:  outcome,
	}
	if err == nil {
		event.Revision = b.RevisionID
	}
	result.AddTrace(event)

	if outcome != step.Expect {
		result.AddError(fmt.Sprintf("steps[%d] %s building %d: expected %s, got %s (%v)",
			index, step.Action, step.Building, step.Expect, outcome, err))
		return nil
	}
	if step.Result != nil {
		for _, msg := range compareFields(b.Attributes(), step.Result) {
			result.AddError(fmt.Sprintf("steps[%d] %s building %d: %s", index, step.Action, step.Building, msg))
		}
	}
	return nil
}

// executeParallel runs step.Parallel copies of a step at once, all against
// the same expected revision. Copy i acts as user step.User+i.
func (h *Harness) executeParallel(ctx context.Context, index int, step Step, revision int64, result *Result) error {
	outcomes := make([]string, step.Parallel)

	var wg sync.WaitGroup
	for i := 0; i < step.Parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.apply(ctx, step, step.User+i, revision)
			outcomes[i] = outcomeOf(err)
		}(i)
	}
	wg.Wait()

	counts := make(map[string]int)
	for _, o := range outcomes {
		counts[o]++
	}
	result.AddTrace(TraceEvent{
		Step:     index,
		Action:   step.Action,
		Building: step.Building,
		User:     step.User,
		Parallel: step.Parallel,
		Counts:   counts,
	})

	if !maps.Equal(counts, step.ExpectCounts) {
		result.AddError(fmt.Sprintf("steps[%d] %s building %d: expected outcomes %v, got %v",
			index, step.Action, step.Building, step.ExpectCounts, counts))
	}
	return nil
}

// resolveRevision returns the step's explicit revision, or the building's
// current revision. A missing building resolves to 0 so the step itself
// reports the outcome.
func (h *Harness) resolveRevision(ctx context.Context, step Step) (int64, error) {
	if step.Revision != nil {
		return *step.Revision, nil
	}
	if step.Action == ActionLike {
		return 0, nil
	}
	b, err := h.service.Building(ctx, step.Building)
	if store.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return b.RevisionID, nil
}

func (h *Harness) apply(ctx context.Context, step Step, user int, revision int64) (ir.Building, error) {
	principal := testutil.Principal(user)

	switch step.Action {
	case ActionSave:
		fields, err := ir.ObjectFromMap(step.Fields)
		if err != nil {
			return ir.Building{}, store.NewValidationError("save", step.Building, "%v", err)
		}
		fields[ir.FieldRevisionID] = ir.Int(revision)
		return h.service.SaveBuilding(ctx, step.Building, fields, principal)
	case ActionLike:
		return h.service.LikeBuilding(ctx, step.Building, principal)
	case ActionRevert:
		return h.service.RevertChange(ctx, step.Building, step.LogID, revision, principal)
	default:
		return ir.Building{}, fmt.Errorf("unknown action %q", step.Action)
	}
}

// outcomeOf maps an error to the scenario outcome vocabulary.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch store.KindOf(err) {
	case store.KindConflict:
		return OutcomeConflict
	case store.KindAlreadyActed:
		return OutcomeAlreadyLiked
	case store.KindValidation:
		return OutcomeValidation
	case store.KindNotFound:
		return OutcomeNotFound
	case store.KindTransient:
		return OutcomeTransient
	default:
		return OutcomeError
	}
}
