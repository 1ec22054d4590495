// Package ir provides the canonical value and record types for brickbook.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float Values - numeric fields are int64 so equality is exact
//     (geometry coordinates are plain float64 and never enter a patch)
//   - Patch blobs are serialized with MarshalCanonical (RFC 8785)
//   - All JSON tags use snake_case
//   - Revision ids and log ids are store-assigned sequence numbers, never
//     wall-clock timestamps
package ir
