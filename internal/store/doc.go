// Package store provides SQLite-backed durable storage for the building
// catalogue and its revision log.
//
// The store holds:
//   - Buildings: the mutable source of truth, one row per record
//   - Logs: append-only forward/reverse patches, one per committed change
//   - Likes: one fact row per (building, user)
//   - Geometries: footprint bounding boxes for proximity reads
//
// # Mutation Protocols
//
// Only two code paths write a building:
//
// UpdateBuilding (optimistic update): the caller supplies the revision it
// last read. The row is read under the write lock filtered by that revision,
// the whitelist diff is logged, and the UPDATE is scoped by the same
// (building_id, revision_id) pair. A stale revision is a CONFLICT.
//
// LikeBuilding (contention counter): no expected revision. The like fact is
// inserted under a UNIQUE constraint, the total is recounted from the fact
// table and written unconditionally.
//
// Both paths append exactly one log entry per commit and set revision_id to
// that entry's log_id. Failures roll back the whole transaction and surface
// as a *MutationError (see errors.go).
//
// # Critical Patterns
//
// Logical identity: log_id is the only ordering key. log_timestamp exists
// for display and is never used to order or compare revisions.
//
// Deterministic query results: every multi-row read has an ORDER BY on an
// integer id.
//
// Append-only log: UPDATE and DELETE on logs are rejected by triggers.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: every transaction takes the write lock up front
package store
