package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	meta := MetadataFor(CodeCapacity)
	assert.Equal(t, http.StatusConflict, meta.HTTPStatus)
	assert.True(t, meta.DetailsAllowed)

	meta = MetadataFor(CodeStateConflict)
	assert.Equal(t, http.StatusUnprocessableEntity, meta.HTTPStatus)

	meta = MetadataFor(CodeDependency)
	assert.True(t, meta.Retryable)
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(CodeDependency, cause, "storage unavailable")
	require.NotNil(t, err)
	assert.Equal(t, CodeDependency, err.Code())
	assert.ErrorIs(t, err, cause)
}

func TestAsUnwrapsNestedError(t *testing.T) {
	inner := New(CodeCapacity, "product out of capacity").WithDetails(map[string]any{"remaining": 0})
	wrapped := Wrap(CodeInternal, inner, "place order")

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInternal, typed.Code())

	typed = As(inner)
	require.NotNil(t, typed)
	assert.Equal(t, CodeCapacity, typed.Code())
	assert.NotNil(t, typed.Details())
}

func TestAsNonTypedError(t *testing.T) {
	assert.Nil(t, As(errors.New("plain")))
	assert.Nil(t, As(nil))
}

func TestDumpCollectsChain(t *testing.T) {
	cause := errors.New("root")
	err := Wrap(CodeDependency, cause, "outer")
	dump := Dump(err)
	assert.Equal(t, CodeDependency, dump.Code)
	assert.Len(t, dump.Chain, 2)
}
