// Package chain talks to the WhitelistRegistry contract: it packs calldata
// for the on-chain Groth16 verifier and reads registry state over JSON-RPC.
// The contract performs the verification itself; this client never re-runs
// the pairing check.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/waas-labs/backend/internal/models"
)

// WhitelistRegistryMetaData contains all meta data concerning the WhitelistRegistry contract.
var WhitelistRegistryMetaData = &bind.MetaData{
	ABI: "[{\"inputs\":[{\"internalType\":\"uint256[2]\",\"name\":\"_pA\",\"type\":\"uint256[2]\"},{\"internalType\":\"uint256[2][2]\",\"name\":\"_pB\",\"type\":\"uint256[2][2]\"},{\"internalType\":\"uint256[2]\",\"name\":\"_pC\",\"type\":\"uint256[2]\"},{\"internalType\":\"uint256[4]\",\"name\":\"_pubSignals\",\"type\":\"uint256[4]\"}],\"name\":\"verifyAndRegister\",\"outputs\":[{\"internalType\":\"bool\",\"name\":\"\",\"type\":\"bool\"}],\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"nullifier\",\"type\":\"uint256\"}],\"name\":\"isNullifierUsed\",\"outputs\":[{\"internalType\":\"bool\",\"name\":\"\",\"type\":\"bool\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"commitment\",\"type\":\"uint256\"}],\"name\":\"hasCommitment\",\"outputs\":[{\"internalType\":\"bool\",\"name\":\"\",\"type\":\"bool\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[],\"name\":\"getVerifiedCount\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"}]",
}

// Registry is a read client for the WhitelistRegistry contract.
type Registry struct {
	client  *ethclient.Client
	address common.Address
	abi     *abi.ABI
}

// NewRegistry dials the RPC endpoint and binds the contract address.
func NewRegistry(rpcURL, contractAddress string) (*Registry, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	parsed, err := WhitelistRegistryMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	return &Registry{
		client:  client,
		address: common.HexToAddress(contractAddress),
		abi:     parsed,
	}, nil
}

// Close releases the RPC connection.
func (r *Registry) Close() {
	r.client.Close()
}

// VerifyAndRegisterCalldata packs the calldata a wallet submits to
// verifyAndRegister. The decimal strings come straight off the stored
// credential.
func VerifyAndRegisterCalldata(cd models.Calldata) ([]byte, error) {
	parsed, err := WhitelistRegistryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	pA, err := bigPair(cd.PA)
	if err != nil {
		return nil, fmt.Errorf("pA: %w", err)
	}
	if len(cd.PB) != 2 {
		return nil, fmt.Errorf("expected 2 pB pairs, got %d", len(cd.PB))
	}
	var pB [2][2]*big.Int
	for i, pair := range cd.PB {
		p, err := bigPair(pair)
		if err != nil {
			return nil, fmt.Errorf("pB[%d]: %w", i, err)
		}
		pB[i] = p
	}
	pC, err := bigPair(cd.PC)
	if err != nil {
		return nil, fmt.Errorf("pC: %w", err)
	}
	var signals [4]*big.Int
	if len(cd.PubSignals) != 4 {
		return nil, fmt.Errorf("expected 4 public signals, got %d", len(cd.PubSignals))
	}
	for i, s := range cd.PubSignals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("public signal %d is not a decimal integer", i)
		}
		signals[i] = v
	}

	return parsed.Pack("verifyAndRegister", pA, pB, pC, signals)
}

// IsNullifierUsed reports whether the registry has already consumed a
// nullifier, i.e. a proof for this wallet and event was accepted on chain.
func (r *Registry) IsNullifierUsed(ctx context.Context, nullifier string) (bool, error) {
	n, ok := new(big.Int).SetString(nullifier, 10)
	if !ok {
		return false, fmt.Errorf("nullifier is not a decimal integer")
	}
	return r.callBool(ctx, "isNullifierUsed", n)
}

// HasCommitment reports whether a commitment is registered.
func (r *Registry) HasCommitment(ctx context.Context, commitment string) (bool, error) {
	c, ok := new(big.Int).SetString(commitment, 10)
	if !ok {
		return false, fmt.Errorf("commitment is not a decimal integer")
	}
	return r.callBool(ctx, "hasCommitment", c)
}

// VerifiedCount returns the registry's total of accepted proofs.
func (r *Registry) VerifiedCount(ctx context.Context) (*big.Int, error) {
	data, err := r.abi.Pack("getVerifiedCount")
	if err != nil {
		return nil, err
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getVerifiedCount: %w", err)
	}
	vals, err := r.abi.Unpack("getVerifiedCount", out)
	if err != nil {
		return nil, err
	}
	count, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getVerifiedCount result type %T", vals[0])
	}
	return count, nil
}

// ConfirmTransaction fetches the receipt for a claimed verification
// transaction and returns its block number. A missing or failed receipt is
// an error.
func (r *Registry) ConfirmTransaction(ctx context.Context, txHash string) (uint64, error) {
	receipt, err := r.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return 0, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt.Status != 1 {
		return 0, fmt.Errorf("transaction %s reverted", txHash)
	}
	return receipt.BlockNumber.Uint64(), nil
}

func (r *Registry) callBool(ctx context.Context, method string, args ...any) (bool, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return false, err
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := r.abi.Unpack(method, out)
	if err != nil {
		return false, err
	}
	b, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s result type %T", method, vals[0])
	}
	return b, nil
}

func bigPair(pair []string) ([2]*big.Int, error) {
	var out [2]*big.Int
	if len(pair) != 2 {
		return out, fmt.Errorf("expected 2 coordinates, got %d", len(pair))
	}
	for i, s := range pair {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return out, fmt.Errorf("coordinate %d is not a decimal integer", i)
		}
		out[i] = v
	}
	return out, nil
}
