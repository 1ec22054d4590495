package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/brickbook/internal/ir"
)

// AssertionError is returned when a final-state assertion fails.
type AssertionError struct {
	Building int64
	Field    string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "building %d: %s\n", e.Building, e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions checks every assertion, recording failures on result
// and collecting the final history of each asserted building for the trace
// snapshot. Only store failures are returned as errors.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) error {
	for _, a := range assertions {
		b, err := h.service.Building(ctx, a.Building)
		if err != nil {
			result.AddError(fmt.Sprintf("building %d: %v", a.Building, err))
			continue
		}

		for _, msg := range compareFields(b.Attributes(), a.Fields) {
			result.AddError(fmt.Sprintf("building %d: %s", a.Building, msg))
		}

		if a.Revision != nil && b.RevisionID != *a.Revision {
			result.AddError((&AssertionError{
				Building: a.Building,
				Field:    ir.FieldRevisionID,
				Expected: fmt.Sprint(*a.Revision),
				Actual:   fmt.Sprint(b.RevisionID),
			}).Error())
		}

		if a.LikesTotal != nil {
			// The cached counter must agree with the fact table.
			facts, err := h.store.CountLikes(ctx, a.Building)
			if err != nil {
				return err
			}
			if b.LikesTotal != *a.LikesTotal || facts != *a.LikesTotal {
				result.AddError((&AssertionError{
					Building: a.Building,
					Field:    ir.FieldLikesTotal,
					Expected: fmt.Sprint(*a.LikesTotal),
					Actual:   fmt.Sprintf("%d (recorded likes: %d)", b.LikesTotal, facts),
				}).Error())
			}
		}

		history, err := h.service.History(ctx, a.Building)
		if err != nil {
			return err
		}
		result.History[a.Building] = history

		if a.LogLength != nil && len(history) != *a.LogLength {
			result.AddError((&AssertionError{
				Building: a.Building,
				Field:    "log_length",
				Expected: fmt.Sprint(*a.LogLength),
				Actual:   fmt.Sprint(len(history)),
			}).Error())
		}
	}
	return nil
}

// compareFields checks that actual holds every expected key with an equal
// value (subset match). Returns one message per mismatch, in key order.
func compareFields(actual ir.Object, expected map[string]any) []string {
	if len(expected) == 0 {
		return nil
	}
	want, err := ir.ObjectFromMap(expected)
	if err != nil {
		return []string{fmt.Sprintf("invalid expected fields: %v", err)}
	}

	var msgs []string
	for _, k := range want.SortedKeys() {
		got, ok := actual[k]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("field %q: not present", k))
			continue
		}
		if !ir.Equal(got, want[k]) {
			msgs = append(msgs, fmt.Sprintf("field %q: expected %s, got %s", k, render(want[k]), render(got)))
		}
	}
	return msgs
}

func render(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
