// Package patch computes field-level forward/reverse diffs between two
// versions of a record.
//
// Diff is a pure function: it never mutates its inputs and the returned
// objects are freshly allocated, so a Patch can be handed to the store
// without any ownership concerns.
package patch

import (
	"github.com/roach88/brickbook/internal/ir"
)

// Whitelist is the fixed set of keys eligible for patch tracking.
type Whitelist map[string]struct{}

// NewWhitelist builds a whitelist from keys.
func NewWhitelist(keys ...string) Whitelist {
	wl := make(Whitelist, len(keys))
	for _, k := range keys {
		wl[k] = struct{}{}
	}
	return wl
}

// Contains reports whether key is whitelisted.
func (wl Whitelist) Contains(key string) bool {
	_, ok := wl[key]
	return ok
}

// Buildings is the whitelist of the building catalogue.
var Buildings = NewWhitelist(ir.FieldNames()...)

// Patch is a forward/reverse pair. Forward holds the new value of every
// changed key, Reverse the old one. Both always have the same key set.
type Patch struct {
	Forward ir.Object
	Reverse ir.Object
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.Forward) == 0
}

// Invert swaps forward and reverse.
func (p Patch) Invert() Patch {
	return Patch{Forward: p.Reverse, Reverse: p.Forward}
}

// Diff compares every key of next against old. A key is included only when
// it is whitelisted and its value differs by strict equality. Keys missing
// from next are left untouched; arrays are compared and replaced wholesale.
//
// A missing key in old counts as Null, so setting a never-set field yields
// reverse = {key: null}.
func Diff(old, next ir.Object, wl Whitelist) Patch {
	p := Patch{Forward: ir.Object{}, Reverse: ir.Object{}}
	for key, newVal := range next {
		if !wl.Contains(key) {
			continue
		}
		oldVal, ok := old[key]
		if !ok {
			oldVal = ir.Null{}
		}
		if newVal == nil {
			newVal = ir.Null{}
		}
		if ir.Equal(oldVal, newVal) {
			continue
		}
		p.Forward[key] = newVal
		p.Reverse[key] = oldVal
	}
	return p
}

// Apply returns a copy of base with every key of changes overwritten.
func Apply(base ir.Object, changes ir.Object) ir.Object {
	out := base.Clone()
	for k, v := range changes {
		out[k] = v
	}
	return out
}
