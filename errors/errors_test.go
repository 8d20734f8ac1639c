package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(CodeNotFound, "property %s missing", "p-1").
		WithMetadata("table", "propiedades", "empresa_id", "e-1").
		WithCause(goerrors.New("no rows"))

	assert.Equal(t, "code=404, message=property p-1 missing, metadata={empresa_id=e-1, table=propiedades}, cause=no rows", err.Error())
}

func TestWithMetadataClones(t *testing.T) {
	base := New(CodeInvalidInput, "bad email")
	assert.Same(t, base, base.WithMetadata("odd"))

	withMeta := base.WithMetadata("field", "email")
	assert.NotSame(t, base, withMeta)
	assert.Nil(t, base.Metadata)
	assert.Equal(t, "email", withMeta.Metadata["field"])
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("init: %w", RetryableFetch(goerrors.New("dial tcp: timeout")))

	assert.True(t, Is(err, ErrRetryableFetch))
	assert.False(t, Is(err, ErrUnauthenticated))
	assert.True(t, Is(Unauthenticated("user %s signed out", "u1"), ErrUnauthenticated))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeUnknown, "ignored"))

	cause := goerrors.New("boom")
	err := Wrap(cause, CodeFetchFailed, "fetch properties")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeFetchFailed, Code(err))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := goerrors.New("plain")
	e := FromError(plain)
	assert.Equal(t, CodeUnknown, e.Code)
	assert.ErrorIs(t, e, plain)

	wrapped := fmt.Errorf("outer: %w", StaleSession("expired at %d", 10))
	assert.Equal(t, CodeStaleSession, FromError(wrapped).Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrStaleSession))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthenticated))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrRetryableFetch))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(goerrors.New("x")))
}
