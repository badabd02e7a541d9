package chain

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waas-labs/backend/internal/models"
)

func validCalldata() models.Calldata {
	return models.Calldata{
		PA: []string{"1", "2"},
		PB: [][]string{{"3", "4"}, {"5", "6"}},
		PC: []string{"7", "8"},
		PubSignals: []string{
			"1111", // commitment
			"2222", // nullifier
			"3333", // event id
			"2222", // expected nullifier
		},
	}
}

func TestVerifyAndRegisterCalldata(t *testing.T) {
	data, err := VerifyAndRegisterCalldata(validCalldata())
	require.NoError(t, err)

	parsed, err := WhitelistRegistryMetaData.GetAbi()
	require.NoError(t, err)
	selector := parsed.Methods["verifyAndRegister"].ID
	assert.Equal(t, hex.EncodeToString(selector), hex.EncodeToString(data[:4]))

	// 12 static uint256 words after the selector
	assert.Len(t, data, 4+12*32)
}

func TestVerifyAndRegisterCalldataRejectsBadShapes(t *testing.T) {
	cd := validCalldata()
	cd.PubSignals = cd.PubSignals[:3]
	_, err := VerifyAndRegisterCalldata(cd)
	assert.Error(t, err, "the verifier takes exactly four public signals")

	cd = validCalldata()
	cd.PA = []string{"1"}
	_, err = VerifyAndRegisterCalldata(cd)
	assert.Error(t, err)

	cd = validCalldata()
	cd.PB = cd.PB[:1]
	_, err = VerifyAndRegisterCalldata(cd)
	assert.Error(t, err)

	cd = validCalldata()
	cd.PC[0] = "not-a-number"
	_, err = VerifyAndRegisterCalldata(cd)
	assert.Error(t, err)
}
