package apperr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofrock/sqliterg/internal/apperr"
)

func TestStatusMapping(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindBadRequest:   http.StatusBadRequest,
		apperr.KindForbidden:    http.StatusConflict,
		apperr.KindUnauthorized: http.StatusUnauthorized,
		apperr.KindNotFound:     http.StatusNotFound,
		apperr.KindConflict:     http.StatusConflict,
		apperr.KindBusy:         http.StatusServiceUnavailable,
		apperr.KindEngine:       http.StatusInternalServerError,
		apperr.KindFatal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, apperr.Status(kind))
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := apperr.Wrap(apperr.KindEngine, "writing backup", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "writing backup")
}

func TestWithIndex(t *testing.T) {
	err := apperr.BadRequest("bad item")
	annotated := err.WithIndex(3)

	assert.Equal(t, -1, err.Index, "original is not mutated")
	assert.Equal(t, 3, annotated.Index)
}

func TestAsWrapsUnclassifiedErrors(t *testing.T) {
	raw := errors.New("some driver error")
	got := apperr.As(raw)

	require.NotNil(t, got)
	assert.Equal(t, apperr.KindEngine, got.Kind)
	assert.ErrorIs(t, got, raw)
}

func TestAsPassesThroughClassifiedErrors(t *testing.T) {
	original := apperr.Forbidden("nope")
	got := apperr.As(original)
	assert.Same(t, original, got)
}
