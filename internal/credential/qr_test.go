package credential

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateQRToken(t *testing.T) {
	a, err := GenerateQRToken()
	require.NoError(t, err)
	b, err := GenerateQRToken()
	require.NoError(t, err)

	assert.Len(t, a, qrTokenBytes*2, "hex encoding doubles the byte length")
	assert.NotEqual(t, a, b)
}

func TestRenderQRRoundTrip(t *testing.T) {
	payload := QRPayload{
		Token:         "deadbeef",
		EventID:       "b3c95a2e-1fd4-4f3a-9d17-8a6f0c2d4e5f",
		EventTitle:    "DevCon",
		WalletAddress: "0xabc",
		Timestamp:     "2026-08-30T12:00:00Z",
	}
	dataURL, png, err := RenderQR(payload)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
	assert.NotEmpty(t, png)

	decoded, err := DecodeQRImage(dataURL)
	require.NoError(t, err)
	assert.Equal(t, png, decoded)
}

func TestParsePayload(t *testing.T) {
	raw, err := json.Marshal(QRPayload{Token: "tok", EventID: "e1"})
	require.NoError(t, err)

	p, err := ParsePayload(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "tok", p.Token)

	_, err = ParsePayload(`{"eventId":"e1"}`)
	assert.Error(t, err, "payload without token is unusable")

	_, err = ParsePayload("not json")
	assert.Error(t, err)
}
