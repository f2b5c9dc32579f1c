package hostagent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayConsumerNameSanitizesKey(t *testing.T) {
	assert.Equal(t, "hc_http_gw_app-1_2_3", gatewayConsumerName("app-1.2:3"))
	assert.Equal(t, "hc_http_gw_plain-app_1", gatewayConsumerName("plain-app_1"))
}

func TestDecodeBucketEntryRoundTrip(t *testing.T) {
	entry := GatewayEntry{
		Key:             "app-1",
		DesiredState:    "Running",
		HcHttpGwURLBase: "http://localhost:8090",
		InstalledAppID:  "app-1",
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	decoded, err := decodeBucketEntry(map[string]interface{}{"entry": string(raw)})
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestDecodeBucketEntryRejectsMissingField(t *testing.T) {
	_, err := decodeBucketEntry(map[string]interface{}{})
	require.Error(t, err)
}
