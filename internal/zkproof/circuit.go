package zkproof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// ApprovalCircuit proves that a commitment binds (walletHash, adminSecret,
// eventId, timestamp) without revealing the private witnesses. The nullifier
// is a public input constrained only to equal the verifier's expected slot;
// its derivation happens outside the circuit so it stays identical between
// real and mock artifacts.
//
// Public signal order matches the verifier ABI:
// [commitment, nullifier, eventId, expectedNullifier].
type ApprovalCircuit struct {
	WalletHash  frontend.Variable `gnark:",secret"`
	AdminSecret frontend.Variable `gnark:",secret"`
	Timestamp   frontend.Variable `gnark:",secret"`

	Commitment        frontend.Variable `gnark:",public"`
	Nullifier         frontend.Variable `gnark:",public"`
	EventID           frontend.Variable `gnark:",public"`
	ExpectedNullifier frontend.Variable `gnark:",public"`
}

// Define implements frontend.Circuit.
func (c *ApprovalCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.WalletHash, c.AdminSecret, c.EventID, c.Timestamp)
	api.AssertIsEqual(c.Commitment, h.Sum())
	api.AssertIsEqual(c.Nullifier, c.ExpectedNullifier)
	return nil
}
