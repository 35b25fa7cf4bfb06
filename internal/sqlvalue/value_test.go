package sqlvalue_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/sqlvalue"
)

func TestFromJSONScalars(t *testing.T) {
	v, err := sqlvalue.FromJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagNull, v.Tag)

	v, err = sqlvalue.FromJSON(true)
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagBool, v.Tag)
	assert.True(t, v.Bool)

	v, err = sqlvalue.FromJSON("hello")
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagText, v.Tag)
	assert.Equal(t, "hello", v.Text)
}

func TestFromJSONBlob(t *testing.T) {
	v, err := sqlvalue.FromJSON("base64:aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, sqlvalue.TagBlob, v.Tag)
	assert.Equal(t, "hello", string(v.Blob))
}

func TestFromJSONIntegralNumber(t *testing.T) {
	v, err := sqlvalue.FromJSON(float64(42))
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagI64, v.Tag)
	assert.EqualValues(t, 42, v.I64)
}

func TestFromJSONFractionalNumber(t *testing.T) {
	v, err := sqlvalue.FromJSON(3.14)
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagF64, v.Tag)
	assert.InDelta(t, 3.14, v.F64, 1e-9)
}

func TestFromJSONIntegerOverflowIsBadRequest(t *testing.T) {
	_, err := sqlvalue.FromJSON(1e19)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.As(err).Kind)
}

// TestFromJSONNumberPreservesFullInt64Range guards against the float64
// decode path (53 bits of integer precision) silently corrupting large
// int64 binds. A decoder using UseNumber() (as handlers.decodeJSON does)
// hands FromJSON a json.Number instead, which must round-trip exactly.
func TestFromJSONNumberPreservesFullInt64Range(t *testing.T) {
	v, err := sqlvalue.FromJSON(json.Number("9223372036854775807"))
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagI64, v.Tag)
	assert.EqualValues(t, 9223372036854775807, v.I64)

	v, err = sqlvalue.FromJSON(json.Number("123456789012345678"))
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagI64, v.Tag)
	assert.EqualValues(t, 123456789012345678, v.I64)
}

func TestFromJSONNumberFractionalFallsBackToFloat(t *testing.T) {
	v, err := sqlvalue.FromJSON(json.Number("3.14"))
	require.NoError(t, err)
	assert.Equal(t, sqlvalue.TagF64, v.Tag)
	assert.InDelta(t, 3.14, v.F64, 1e-9)
}

func TestFromJSONUnsupportedType(t *testing.T) {
	_, err := sqlvalue.FromJSON(struct{}{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.As(err).Kind)
}

func TestDriverConvertsBoolToInteger(t *testing.T) {
	v := sqlvalue.Value{Tag: sqlvalue.TagBool, Bool: true}
	assert.Equal(t, int64(1), v.Driver())

	v = sqlvalue.Value{Tag: sqlvalue.TagBool, Bool: false}
	assert.Equal(t, int64(0), v.Driver())
}
