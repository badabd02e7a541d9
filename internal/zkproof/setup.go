package zkproof

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// CompileAndSetup compiles the ApprovalCircuit and writes the constraint
// system, proving key and verifying key to the given paths. Groth16 setup
// here is a development convenience; a production deployment would use a
// ceremony-produced key pair.
func CompileAndSetup(paths ArtifactPaths) error {
	var circuit ApprovalCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}
	write := func(path string, v io.WriterTo) error {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = v.WriteTo(f)
		return err
	}
	if err := write(paths.ConstraintSystem, ccs); err != nil {
		return fmt.Errorf("write constraint system: %w", err)
	}
	if err := write(paths.ProvingKey, pk); err != nil {
		return fmt.Errorf("write proving key: %w", err)
	}
	if err := write(paths.VerifyingKey, vk); err != nil {
		return fmt.Errorf("write verifying key: %w", err)
	}
	return nil
}
