package zkproof

import (
	"math/big"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWalletCaseInsensitive(t *testing.T) {
	a := HashWallet("0xAbCdEf1234567890aBcDeF1234567890AbCdEf12")
	b := HashWallet("0xabcdef1234567890abcdef1234567890abcdef12")
	assert.Zero(t, a.Cmp(b), "wallet hash must not depend on address casing")
}

func TestHashWalletPrefixOptional(t *testing.T) {
	a := HashWallet("0xabcdef1234567890abcdef1234567890abcdef12")
	b := HashWallet("abcdef1234567890abcdef1234567890abcdef12")
	assert.Zero(t, a.Cmp(b))
}

func TestDerivedValuesFitField(t *testing.T) {
	wallet := "0x1234567890abcdef1234567890abcdef12345678"
	eventID := uuid.New()
	walletHash := HashWallet(wallet)
	numericID := NumericEventID(eventID)

	for name, v := range map[string]*big.Int{
		"wallet hash":      walletHash,
		"admin secret":     AdminSecret("0xAdmin", eventID.String()),
		"numeric event id": numericID,
		"nullifier":        Nullifier(walletHash, numericID),
	} {
		assert.Negative(t, v.Cmp(ecc.BN254.ScalarField()), "%s must fit the scalar field", name)
		assert.Positive(t, v.Sign(), "%s must be positive", name)
	}
}

func TestNullifierStableAcrossCalls(t *testing.T) {
	walletHash := HashWallet("0xAAAA567890abcdef1234567890abcdef12345678")
	numericID := NumericEventID(uuid.New())

	first := Nullifier(walletHash, numericID)
	second := Nullifier(walletHash, numericID)
	assert.Zero(t, first.Cmp(second), "nullifier must be reproducible for re-approval")
}

func TestNullifierDistinctPerEvent(t *testing.T) {
	walletHash := HashWallet("0xAAAA567890abcdef1234567890abcdef12345678")
	a := Nullifier(walletHash, NumericEventID(uuid.New()))
	b := Nullifier(walletHash, NumericEventID(uuid.New()))
	assert.NotZero(t, a.Cmp(b))
}

func TestNumericEventID(t *testing.T) {
	id := uuid.MustParse("b3c95a2e-1fd4-4f3a-9d17-8a6f0c2d4e5f")
	n := NumericEventID(id)

	// last 12 hex chars of the uuid
	want, ok := new(big.Int).SetString("8a6f0c2d4e5f", 16)
	require.True(t, ok)
	assert.Zero(t, want.Cmp(n))
}

func TestAdminSecretScopedToAdminAndEvent(t *testing.T) {
	eventID := uuid.New().String()
	otherEvent := uuid.New().String()
	assert.NotZero(t, AdminSecret("0xadmin1", eventID).Cmp(AdminSecret("0xadmin2", eventID)))
	assert.NotZero(t, AdminSecret("0xadmin1", eventID).Cmp(AdminSecret("0xadmin1", otherEvent)))
	assert.Zero(t, AdminSecret("0xADMIN1", eventID).Cmp(AdminSecret("0xadmin1", eventID)))
}

func TestMockCommitmentBoundToTimestamp(t *testing.T) {
	walletHash := HashWallet("0x1234567890abcdef1234567890abcdef12345678")
	numericID := NumericEventID(uuid.New())

	t0 := time.Unix(1700000000, 0)
	t1 := time.Unix(1700000001, 0)
	assert.Zero(t, MockCommitment(walletHash, numericID, t0).Cmp(MockCommitment(walletHash, numericID, t0)))
	assert.NotZero(t, MockCommitment(walletHash, numericID, t0).Cmp(MockCommitment(walletHash, numericID, t1)))
}
