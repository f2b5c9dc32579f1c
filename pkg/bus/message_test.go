package bus

import (
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	values, err := encodeMessage("INVENTORY.abc123.update", []byte("payload"), map[string]string{"job_id": "j1"})
	require.NoError(t, err)

	xm := redis.XMessage{ID: "1-0", Values: values}
	msg, err := decodeMessage(xm)
	require.NoError(t, err)

	assert.Equal(t, "INVENTORY.abc123.update", msg.Subject)
	assert.Equal(t, []byte("payload"), msg.Body)
	assert.Equal(t, "j1", msg.Headers["job_id"])
	assert.Empty(t, msg.ReplyOverride)
}

func TestDecodeMessageExtractsReplyOverrideHeader(t *testing.T) {
	values, err := encodeMessage("work", []byte("go"), map[string]string{"reply_override": "REPLY.x"})
	require.NoError(t, err)

	msg, err := decodeMessage(redis.XMessage{ID: "2-0", Values: values})
	require.NoError(t, err)
	assert.Equal(t, "REPLY.x", msg.ReplyOverride)
}
