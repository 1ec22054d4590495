package catalogue

import (
	"slices"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/store"
)

// Proposal is a validated save request: the expected revision and the
// whitelisted fields the caller wants to write.
type Proposal struct {
	ExpectedRevision int64
	Fields           ir.Object
}

// ParseProposal checks a proposed record before any transaction starts.
//
// The proposal must carry revision_id. Read-only keys are stripped; a
// building_id that disagrees with id is rejected. Every remaining key must
// be whitelisted and hold a value of the field's kind. Strings are NFC
// normalized so visually identical input never produces a spurious change.
func ParseProposal(id int64, proposed ir.Object) (Proposal, error) {
	const op = "save"

	rev, ok := proposed[ir.FieldRevisionID]
	if !ok {
		return Proposal{}, store.NewValidationError(op, id, "missing %s", ir.FieldRevisionID)
	}
	expected, ok := rev.(ir.Int)
	if !ok || expected < 0 {
		return Proposal{}, store.NewValidationError(op, id, "%s must be a non-negative integer", ir.FieldRevisionID)
	}

	if v, ok := proposed[ir.FieldBuildingID]; ok && !ir.Equal(v, ir.Int(id)) {
		return Proposal{}, store.NewValidationError(op, id, "%s does not match the addressed building", ir.FieldBuildingID)
	}

	fields := make(ir.Object, len(proposed))
	for k, v := range proposed {
		if slices.Contains(ir.ReadOnlyFields, k) {
			continue
		}
		spec, ok := ir.LookupField(k)
		if !ok {
			return Proposal{}, store.NewValidationError(op, id, "field %q is not editable", k)
		}
		if !spec.Kind.Accepts(v) {
			return Proposal{}, store.NewValidationError(op, id, "field %q expects %s", k, spec.Kind)
		}
		fields[k] = ir.Normalize(v)
	}

	return Proposal{ExpectedRevision: int64(expected), Fields: fields}, nil
}
