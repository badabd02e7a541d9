package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialUnionValidation(t *testing.T) {
	var c Credential

	err := json.Unmarshal([]byte(`{"kind":"qr"}`), &c)
	assert.Error(t, err, "qr tag without qr payload is unrepresentable")

	err = json.Unmarshal([]byte(`{"kind":"proof"}`), &c)
	assert.Error(t, err, "proof tag without proof payload is unrepresentable")

	err = json.Unmarshal([]byte(`{"kind":"badge"}`), &c)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`null`), &c)
	require.NoError(t, err)
	assert.True(t, c.None())
}

func TestCredentialNoneMarshalsAsNull(t *testing.T) {
	raw, err := json.Marshal(Credential{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestQRCredentialRoundTrip(t *testing.T) {
	in := NewQRCredential(&QRCredential{Token: "tok", Image: "data:image/png;base64,aGk=", Delivered: true})
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Credential
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, CredentialQR, out.Kind)
	assert.Equal(t, "tok", out.QR.Token)
	assert.True(t, out.QR.Delivered)
	assert.Nil(t, out.Proof)
}

func TestApprovalModeValid(t *testing.T) {
	assert.True(t, ApprovalModeQR.Valid())
	assert.True(t, ApprovalModeWallet.Valid())
	assert.False(t, ApprovalMode("email").Valid())
}
