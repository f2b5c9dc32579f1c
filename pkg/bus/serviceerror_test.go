package bus

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceErrorRendersAsJSON(t *testing.T) {
	err := NewServiceError("authcallout", "AUTH.validate", "nonce already used")

	var decoded ServiceError
	require.NoError(t, json.Unmarshal([]byte(err.Error()), &decoded))
	assert.Equal(t, "authcallout", decoded.Service)
	assert.Equal(t, "AUTH.validate", decoded.Endpoint)
	assert.Equal(t, "nonce already used", decoded.Message)
}

func TestWrapServiceErrorFoldsCauseIntoMessage(t *testing.T) {
	cause := errors.New("signature verification failed")
	err := WrapServiceError("authcallout", "$SYS.REQ.USER.AUTH", cause)

	assert.Contains(t, err.Error(), "signature verification failed")
	assert.True(t, errors.Is(err, cause))
}
