package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// Principal identifies the user acting on a record.
type Principal = uuid.UUID

// ParsePrincipal parses a principal id. The nil UUID is rejected because it
// cannot be attributed to anyone in the revision log.
func ParsePrincipal(s string) (Principal, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid principal %q: %w", s, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid principal %q: nil uuid", s)
	}
	return id, nil
}

// Building is the current state of one catalogue record.
// Fields holds every whitelisted field; unset fields are Null.
type Building struct {
	ID         int64  `json:"building_id"`
	GeometryID int64  `json:"geometry_id"`
	RevisionID int64  `json:"revision_id"` // log_id of the last change, 0 if never edited
	LikesTotal int64  `json:"likes_total"`
	Fields     Object `json:"fields"`
}

// Attributes flattens the record into a single object, read-only keys
// included, the shape clients receive and send back.
func (b Building) Attributes() Object {
	out := b.Fields.Clone()
	out[FieldBuildingID] = Int(b.ID)
	out[FieldGeometryID] = Int(b.GeometryID)
	out[FieldRevisionID] = Int(b.RevisionID)
	out[FieldLikesTotal] = Int(b.LikesTotal)
	return out
}

// LogEntry is one immutable row of the revision log.
// Reverse is nil for counter entries, which only summarize the new total.
type LogEntry struct {
	ID         int64     `json:"log_id"`
	BuildingID int64     `json:"building_id"`
	UserID     Principal `json:"user_id"`
	Forward    Object    `json:"forward_patch"`
	Reverse    Object    `json:"reverse_patch,omitempty"`
	LoggedAt   string    `json:"log_timestamp,omitempty"` // display only, ordering uses ID
}

// Revertible reports whether the entry carries a reverse patch.
func (e LogEntry) Revertible() bool {
	return e.Reverse != nil
}

// Geometry is the bounding box of a building footprint, in WGS84 degrees.
type Geometry struct {
	ID     int64   `json:"geometry_id" yaml:"geometry_id"`
	MinLng float64 `json:"min_lng" yaml:"min_lng"`
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLng float64 `json:"max_lng" yaml:"max_lng"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
}

// Point is a WGS84 coordinate used by proximity lookups.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// ReferenceKind names an external identifier a building can be looked up by.
type ReferenceKind string

const (
	ReferenceTOID ReferenceKind = "toid"
	ReferenceOSM  ReferenceKind = "osm"
)

// ValidReferenceKinds maps each reference kind to its backing field.
var ValidReferenceKinds = map[ReferenceKind]string{
	ReferenceTOID: "ref_toid",
	ReferenceOSM:  "ref_osm_id",
}
