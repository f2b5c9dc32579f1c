package hostcoreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsAndClassifies(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(Database, cause)
	require.Error(t, err)

	assert.Equal(t, Database, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, cause))
}

func TestNewReturnsNilForNilErr(t *testing.T) {
	assert.NoError(t, New(Internal, nil))
}

func TestNewRetryableOverridesDefault(t *testing.T) {
	err := NewRetryable(Database, false, errors.New("unique constraint violated"))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, Database, KindOf(err))
}

func TestKindOfUnclassifiedErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestAsExtractsWrappedError(t *testing.T) {
	wrapped := New(Cryptographic, errors.New("bad signature"))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, Cryptographic, e.Kind)
	assert.False(t, e.Retryable)
}
