package zkproof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	frmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waas-labs/backend/internal/models"
)

var (
	// ErrLocalVerification means a generated proof failed its own
	// verification key check. Fatal to the attempt; an unverifiable proof
	// is never returned.
	ErrLocalVerification = errors.New("generated proof failed local verification")
	// ErrOracleUnavailable means the compiled circuit or keys are missing.
	ErrOracleUnavailable = errors.New("proving artifacts unavailable")
)

// ArtifactPaths locates the proving oracle's compiled artifacts on disk.
// Absence of any file means "use mock".
type ArtifactPaths struct {
	ConstraintSystem string
	ProvingKey       string
	VerifyingKey     string
}

// Prover generates approval proofs against the compiled ApprovalCircuit,
// or structurally identical mock artifacts when the circuit is not built.
// Artifacts are loaded once and shared across calls.
type Prover struct {
	paths  ArtifactPaths
	logger *zap.Logger

	loadOnce sync.Once
	ccs      constraint.ConstraintSystem
	pk       groth16.ProvingKey
	vk       groth16.VerifyingKey
	loadErr  error
}

// NewProver creates a prover over the given artifact paths.
func NewProver(paths ArtifactPaths, logger *zap.Logger) *Prover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prover{paths: paths, logger: logger}
}

// Ready reports whether all proving artifacts exist on disk.
func (p *Prover) Ready() bool {
	for _, f := range []string{p.paths.ConstraintSystem, p.paths.ProvingKey, p.paths.VerifyingKey} {
		if _, err := os.Stat(f); err != nil {
			return false
		}
	}
	return true
}

func (p *Prover) artifacts() (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	p.loadOnce.Do(func() {
		load := func(path string, v io.ReaderFrom) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
			}
			defer f.Close()
			if _, err := v.ReadFrom(f); err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return nil
		}
		ccs := groth16.NewCS(ecc.BN254)
		pk := groth16.NewProvingKey(ecc.BN254)
		vk := groth16.NewVerifyingKey(ecc.BN254)
		if p.loadErr = load(p.paths.ConstraintSystem, ccs); p.loadErr != nil {
			return
		}
		if p.loadErr = load(p.paths.ProvingKey, pk); p.loadErr != nil {
			return
		}
		if p.loadErr = load(p.paths.VerifyingKey, vk); p.loadErr != nil {
			return
		}
		p.ccs, p.pk, p.vk = ccs, pk, vk
	})
	return p.ccs, p.pk, p.vk, p.loadErr
}

// GenerateApprovalProof produces the proof credential for an approval: a real
// Groth16 proof when the circuit is built, otherwise a mock with the same
// shape. The admin secret derived here never leaves this call stack.
func (p *Prover) GenerateApprovalProof(ctx context.Context, walletAddress string, eventID uuid.UUID, adminActor string) (*models.ProofCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	walletHash := HashWallet(walletAddress)
	numericEventID := NumericEventID(eventID)
	nullifier := Nullifier(walletHash, numericEventID)

	if !p.Ready() {
		p.logger.Warn("circuit not compiled, returning mock proof",
			zap.String("event_id", eventID.String()))
		return mockCredential(walletHash, numericEventID, nullifier, now), nil
	}

	ccs, pk, vk, err := p.artifacts()
	if err != nil {
		return nil, err
	}

	adminSecret := AdminSecret(adminActor, eventID.String())
	timestamp := big.NewInt(now.Unix())
	commitment := commitmentHash(walletHash, adminSecret, numericEventID, timestamp)

	assignment := &ApprovalCircuit{
		WalletHash:        walletHash,
		AdminSecret:       adminSecret,
		Timestamp:         timestamp,
		Commitment:        commitment,
		Nullifier:         nullifier,
		EventID:           numericEventID,
		ExpectedNullifier: nullifier,
	}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	proof, err := groth16.Prove(ccs, pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocalVerification, err)
	}

	signals := []string{commitment.String(), nullifier.String(), numericEventID.String(), nullifier.String()}
	points, calldata, err := solidityCalldata(proof, signals)
	if err != nil {
		return nil, err
	}

	p.logger.Info("approval proof generated",
		zap.String("event_id", eventID.String()),
		zap.String("nullifier", nullifier.String()))

	return &models.ProofCredential{
		Proof:          points,
		PublicSignals:  signals,
		Calldata:       calldata,
		Commitment:     commitment.String(),
		Nullifier:      nullifier.String(),
		NumericEventID: numericEventID.String(),
		GeneratedAt:    now,
	}, nil
}

// commitmentHash is the native counterpart of the circuit's MiMC commitment:
// each input is absorbed as a 32-byte field element in circuit order.
func commitmentHash(walletHash, adminSecret, eventID, timestamp *big.Int) *big.Int {
	h := frmimc.NewMiMC()
	for _, v := range []*big.Int{walletHash, adminSecret, eventID, timestamp} {
		var e fr.Element
		e.SetBigInt(v)
		b := e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func feString(e *fp.Element) string {
	return e.BigInt(new(big.Int)).String()
}

// solidityCalldata extracts the proof points in both the snarkjs proof shape
// and the verifier contract's argument order. G2 coordinate pairs are swapped
// for the contract (A1 before A0), as the EVM pairing precompile expects.
func solidityCalldata(proof groth16.Proof, signals []string) (models.ProofPoints, models.Calldata, error) {
	bn254Proof, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return models.ProofPoints{}, models.Calldata{}, fmt.Errorf("unexpected proof type %T", proof)
	}
	ar, bs, krs := &bn254Proof.Ar, &bn254Proof.Bs, &bn254Proof.Krs

	points := models.ProofPoints{
		PiA: []string{feString(&ar.X), feString(&ar.Y), "1"},
		PiB: [][]string{
			{feString(&bs.X.A0), feString(&bs.X.A1)},
			{feString(&bs.Y.A0), feString(&bs.Y.A1)},
			{"1", "0"},
		},
		PiC:      []string{feString(&krs.X), feString(&krs.Y), "1"},
		Protocol: "groth16",
	}
	calldata := models.Calldata{
		PA: []string{feString(&ar.X), feString(&ar.Y)},
		PB: [][]string{
			{feString(&bs.X.A1), feString(&bs.X.A0)},
			{feString(&bs.Y.A1), feString(&bs.Y.A0)},
		},
		PC:         []string{feString(&krs.X), feString(&krs.Y)},
		PubSignals: signals,
	}
	return points, calldata, nil
}

// mockCredential mirrors the real artifact's shape: same four public signals,
// zeroed proof points, flagged via IsMock only.
func mockCredential(walletHash, numericEventID, nullifier *big.Int, now time.Time) *models.ProofCredential {
	commitment := MockCommitment(walletHash, numericEventID, now)
	signals := []string{commitment.String(), nullifier.String(), numericEventID.String(), nullifier.String()}
	return &models.ProofCredential{
		Proof: models.ProofPoints{
			PiA:      []string{"0", "0", "1"},
			PiB:      [][]string{{"0", "0"}, {"0", "0"}, {"1", "0"}},
			PiC:      []string{"0", "0", "1"},
			Protocol: "groth16",
		},
		PublicSignals: signals,
		Calldata: models.Calldata{
			PA:         []string{"0", "0"},
			PB:         [][]string{{"0", "0"}, {"0", "0"}},
			PC:         []string{"0", "0"},
			PubSignals: signals,
		},
		Commitment:     commitment.String(),
		Nullifier:      nullifier.String(),
		NumericEventID: numericEventID.String(),
		IsMock:         true,
		GeneratedAt:    now,
	}
}
