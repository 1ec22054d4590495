// Package catalogue is the service boundary for building records.
//
// It sits between transports (HTTP, CLI, scenario harness) and the store:
//   - SaveBuilding validates a proposed record, strips read-only keys and
//     submits it through the optimistic update protocol
//   - LikeBuilding runs the counter protocol, retrying transient failures
//   - RevertChange undoes one logged change by submitting its reverse patch
//     as an ordinary update
//
// Conflicts are never retried here. A caller that receives CONFLICT must
// reload the record and decide how to merge.
//
// Every operation records a span, a Prometheus outcome counter and a
// structured log line.
package catalogue
