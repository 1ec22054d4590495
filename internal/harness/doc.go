// Package harness runs YAML conformance scenarios against the catalogue.
//
// A scenario seeds buildings, then runs save, like and revert steps through
// catalogue.Service on a fresh in-memory store, checking each outcome:
//
//	name: stale-save-conflicts
//	fixtures:
//	  buildings:
//	    - building_id: 1
//	      fields: {size_storeys_core: 3}
//	steps:
//	  - {action: save, building: 1, user: 1, revision: 0, fields: {size_storeys_core: 4}, expect: ok}
//	  - {action: save, building: 1, user: 2, revision: 0, fields: {size_storeys_core: 5}, expect: conflict}
//	assertions:
//	  - {building: 1, fields: {size_storeys_core: 4}, revision: 1, log_length: 1}
//
// Users are numbered; user N acts as testutil.Principal(N) and user 0 is the
// nil principal. A fresh store assigns revision ids 1, 2, 3..., so scenarios
// can name revisions literally. A step with parallel: N fires N copies at
// once against one expected revision and checks expect_counts instead of
// expect.
//
// The result trace plus the final revision log of every asserted building
// can be compared against golden files (see RunWithGolden).
package harness
