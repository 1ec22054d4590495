package ir

// Read-only keys. Clients may echo them back but they are never writable
// through the update protocol.
const (
	FieldBuildingID = "building_id"
	FieldGeometryID = "geometry_id"
	FieldRevisionID = "revision_id"
	FieldLikesTotal = "likes_total"
)

// FieldKind is the value kind a whitelisted column accepts.
type FieldKind string

const (
	KindString      FieldKind = "string"
	KindInt         FieldKind = "int"
	KindStringArray FieldKind = "string_array"
)

// FieldSpec describes one whitelisted column of the buildings table.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// BuildingFields is the fixed whitelist, in column order.
var BuildingFields = []FieldSpec{
	{"location_name", KindString},
	{"location_number", KindInt},
	{"location_street", KindString},
	{"location_town", KindString},
	{"location_postcode", KindString},
	{"date_year", KindInt},
	{"date_lower", KindInt},
	{"date_upper", KindInt},
	{"date_source", KindString},
	{"date_source_links", KindStringArray},
	{"facade_year", KindInt},
	{"size_storeys_core", KindInt},
	{"size_storeys_attic", KindInt},
	{"size_storeys_basement", KindInt},
	{"size_height_apex", KindInt},
	{"ref_toid", KindString},
	{"ref_osm_id", KindInt},
}

// ReadOnlyFields lists keys stripped from proposals before diffing.
var ReadOnlyFields = []string{
	FieldBuildingID,
	FieldGeometryID,
	FieldRevisionID,
	FieldLikesTotal,
}

// FieldNames returns the whitelisted field names in column order.
func FieldNames() []string {
	names := make([]string, len(BuildingFields))
	for i, f := range BuildingFields {
		names[i] = f.Name
	}
	return names
}

// LookupField returns the field definition for name, if it is whitelisted.
func LookupField(name string) (FieldSpec, bool) {
	for _, f := range BuildingFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Accepts reports whether v is a legal value for the field kind.
// Null is always accepted and clears the field.
func (k FieldKind) Accepts(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case String:
		return k == KindString
	case Int:
		return k == KindInt
	case Array:
		if k != KindStringArray {
			return false
		}
		for _, e := range val {
			if _, ok := e.(String); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EmptyFields returns an object with every whitelisted field set to Null.
func EmptyFields() Object {
	obj := make(Object, len(BuildingFields))
	for _, f := range BuildingFields {
		obj[f.Name] = Null{}
	}
	return obj
}
