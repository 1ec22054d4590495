package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/brickbook/internal/ir"
)

// marshalPatch converts a patch object to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal patches are stored byte-identically.
func marshalPatch(p ir.Object) (string, error) {
	if p == nil {
		p = ir.Object{}
	}
	data, err := ir.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("marshal patch: %w", err)
	}
	return string(data), nil
}

// marshalReversePatch is marshalPatch for the nullable reverse_patch column.
func marshalReversePatch(p ir.Object) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalPatch(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// unmarshalPatch parses canonical JSON TEXT back into an object.
// Integers go through json.Number so values above 2^53 keep full precision.
func unmarshalPatch(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}
	return obj, nil
}

// columnValue converts a field value into the driver value for its column.
// Arrays are stored as canonical JSON text.
func columnValue(spec ir.FieldSpec, v ir.Value) (any, error) {
	if !spec.Kind.Accepts(v) {
		return nil, fmt.Errorf("field %q: %T is not a valid %s", spec.Name, v, spec.Kind)
	}
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Array:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", spec.Name, err)
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("field %q: unsupported value %T", spec.Name, v)
	}
}

// columnDest returns a scan destination suited to the column kind.
func columnDest(spec ir.FieldSpec) any {
	if spec.Kind == ir.KindInt {
		return new(sql.NullInt64)
	}
	return new(sql.NullString)
}

// fieldValue converts a scanned column back into a field value.
func fieldValue(spec ir.FieldSpec, dest any) (ir.Value, error) {
	switch d := dest.(type) {
	case *sql.NullInt64:
		if !d.Valid {
			return ir.Null{}, nil
		}
		return ir.Int(d.Int64), nil
	case *sql.NullString:
		if !d.Valid {
			return ir.Null{}, nil
		}
		if spec.Kind == ir.KindStringArray {
			var arr ir.Array
			if err := json.Unmarshal([]byte(d.String), &arr); err != nil {
				return nil, fmt.Errorf("field %q: %w", spec.Name, err)
			}
			return arr, nil
		}
		return ir.String(d.String), nil
	default:
		return nil, fmt.Errorf("field %q: unexpected scan destination %T", spec.Name, dest)
	}
}
