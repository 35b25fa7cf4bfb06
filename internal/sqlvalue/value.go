// Package sqlvalue implements the closed tagged variant that every decoded
// JSON scalar is mapped into before it reaches the SQL engine, per spec §9:
// "Dynamic-typed JSON scalars map to a closed tagged variant {Null, Bool,
// I64, F64, Text, Blob}; all downstream code works only with that variant."
package sqlvalue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/proofrock/sqliterg/internal/apperr"
)

type Tag int

const (
	TagNull Tag = iota
	TagBool
	TagI64
	TagF64
	TagText
	TagBlob
)

// Value is the closed variant. Only one of the typed fields is meaningful,
// selected by Tag.
type Value struct {
	Tag  Tag
	Bool bool
	I64  int64
	F64  float64
	Text string
	Blob []byte
}

// FromJSON converts a decoded JSON scalar (as produced by encoding/json into
// an `any`) into the closed variant. Strings beginning with "base64:" are
// treated as blobs; this mirrors the request/response contract's "blob as
// base64" rule from spec §3 Connection/§4.3.
func FromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{Tag: TagNull}, nil
	case bool:
		return Value{Tag: TagBool, Bool: t}, nil
	case string:
		if decoded, ok := decodeBlobString(t); ok {
			return Value{Tag: TagBlob, Blob: decoded}, nil
		}
		return Value{Tag: TagText, Text: t}, nil
	case json.Number:
		return numberFromJSONNumber(t)
	case float64:
		// Only reached if a caller decoded without UseNumber; handled for
		// completeness but loses precision past 2^53 (see numberFromJSONNumber).
		return numberToValue(t)
	default:
		return Value{}, apperr.BadRequest("unsupported parameter value type %T", v)
	}
}

const blobPrefix = "base64:"

func decodeBlobString(s string) ([]byte, bool) {
	if len(s) <= len(blobPrefix) || s[:len(blobPrefix)] != blobPrefix {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(s[len(blobPrefix):])
	if err != nil {
		return nil, false
	}
	return decoded, true
}

// numberFromJSONNumber resolves the open question noted in spec §9 without
// losing precision: a json.Number that parses as an int64 is an INTEGER,
// exactly, across the full int64 range; only numbers that don't (fractional,
// or too large for int64) fall back to the float64/REAL path, which is
// inherently lossy past 2^53 but is the best available representation for a
// value outside int64's range.
func numberFromJSONNumber(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return Value{Tag: TagI64, I64: i}, nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, apperr.BadRequest("invalid numeric value %q", n.String())
	}
	return numberToValue(f)
}

// numberToValue is the float64 fallback for numbers that aren't representable
// as int64 (fractional, or out of int64's range): a fractional JSON number
// always becomes REAL; an integral-but-out-of-range one fails BadRequest.
func numberToValue(f float64) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{Tag: TagF64, F64: f}, nil
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return Value{}, apperr.BadRequest("integer value %v overflows 64-bit range", f)
	}
	return Value{Tag: TagI64, I64: int64(f)}, nil
}

// Driver returns the value in the shape database/sql expects as a bind
// argument, translating Bool to the INTEGER 0/1 the engine stores (the
// string "true"/"false" round-trip in spec §8 is a read-side concern of the
// column's declared type, handled by dbengine's normalizeScanned for
// BOOL/BOOLEAN columns, not by the bind).
func (v Value) Driver() any {
	switch v.Tag {
	case TagNull:
		return nil
	case TagBool:
		if v.Bool {
			return int64(1)
		}
		return int64(0)
	case TagI64:
		return v.I64
	case TagF64:
		return v.F64
	case TagText:
		return v.Text
	case TagBlob:
		return v.Blob
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Tag {
	case TagNull:
		return "NULL"
	case TagBool:
		return fmt.Sprintf("%v", v.Bool)
	case TagI64:
		return fmt.Sprintf("%d", v.I64)
	case TagF64:
		return fmt.Sprintf("%v", v.F64)
	case TagText:
		return v.Text
	case TagBlob:
		return fmt.Sprintf("<%d bytes>", len(v.Blob))
	default:
		return ""
	}
}
