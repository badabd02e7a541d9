// Package zkproof derives the commitment and nullifier values bound to an
// approval and drives the Groth16 proving oracle, falling back to a mock
// artifact when the compiled circuit is absent.
package zkproof

import (
	"crypto/sha256"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// adminSecretTag domain-separates the derived approval secret.
const adminSecretTag = "waas-secret"

// truncateToField keeps the leading 31 bytes of a digest, safely below the
// BN254 scalar field modulus (248 < 254 bits).
func truncateToField(sum [32]byte) *big.Int {
	return new(big.Int).SetBytes(sum[:31])
}

// HashWallet maps a wallet address to a field element. The address is
// lower-cased and stripped of its 0x prefix before hashing, so mixed-case
// forms of the same address derive identical values.
func HashWallet(address string) *big.Int {
	clean := strings.TrimPrefix(strings.ToLower(address), "0x")
	sum := sha256.Sum256([]byte(clean))
	return truncateToField(sum)
}

// AdminSecret derives the per-(admin, event) approval secret used as a
// private witness. It is never persisted, logged, or returned to clients;
// its lifetime is the approval call that derives it.
func AdminSecret(adminActor, eventID string) *big.Int {
	data := strings.ToLower(adminActor) + "-" + eventID + "-" + adminSecretTag
	sum := sha256.Sum256([]byte(data))
	return truncateToField(sum)
}

// NumericEventID reduces an event UUID to a field element by taking the last
// 12 hex characters. Lossy across arbitrarily many events; the verifier keys
// nullifiers by (eventId, nullifier) so a collision only merges two events'
// nullifier namespaces.
func NumericEventID(eventID uuid.UUID) *big.Int {
	hex := strings.ReplaceAll(eventID.String(), "-", "")
	n, _ := new(big.Int).SetString(hex[len(hex)-12:], 16)
	return n
}

// Nullifier derives the replay-detection value for (walletHash, eventID).
// It deliberately excludes the timestamp and admin secret: repeated
// derivations for the same pair are bit-identical, even across a revoke.
func Nullifier(walletHash, numericEventID *big.Int) *big.Int {
	data := "nullifier-" + walletHash.String() + "-" + numericEventID.String()
	sum := sha256.Sum256([]byte(data))
	return truncateToField(sum)
}

// MockCommitment is the local commitment formula used when no real proof is
// produced. Same field width and encoding as the circuit's commitment output;
// only the credential's IsMock flag tells them apart.
func MockCommitment(walletHash, numericEventID *big.Int, at time.Time) *big.Int {
	data := walletHash.String() + "-" + numericEventID.String() + "-" + strconv.FormatInt(at.Unix(), 10)
	sum := sha256.Sum256([]byte(data))
	return truncateToField(sum)
}
