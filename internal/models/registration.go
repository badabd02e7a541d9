package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "pending"
	StatusApproved  RegistrationStatus = "approved"
	StatusRejected  RegistrationStatus = "rejected"
	StatusCancelled RegistrationStatus = "cancelled"
	StatusRevoked   RegistrationStatus = "revoked"
)

// CancelledBy actors for the cancellation record.
const (
	CancelledByUser  = "user"
	CancelledByAdmin = "admin"
)

// CredentialKind tags the credential union.
type CredentialKind string

const (
	CredentialNone  CredentialKind = ""
	CredentialQR    CredentialKind = "qr"
	CredentialProof CredentialKind = "proof"
)

// QRCredential is the scannable credential for qr-mode events.
type QRCredential struct {
	Token     string `json:"token"`
	Image     string `json:"image"`               // base64 PNG data URL
	ImageURL  string `json:"image_url,omitempty"` // public URL when image hosting is configured
	Delivered bool   `json:"delivered"`
}

// ProofPoints is a Groth16 proof in snarkjs-compatible shape.
type ProofPoints struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
}

// Calldata packs the proof in the argument order the verifier contract expects.
type Calldata struct {
	PA         []string   `json:"pA"`
	PB         [][]string `json:"pB"`
	PC         []string   `json:"pC"`
	PubSignals []string   `json:"pubSignals"`
}

// ProofCredential is the proof artifact for wallet-mode events.
type ProofCredential struct {
	Proof          ProofPoints `json:"proof"`
	PublicSignals  []string    `json:"public_signals"`
	Calldata       Calldata    `json:"calldata"`
	Commitment     string      `json:"commitment"`
	Nullifier      string      `json:"nullifier"`
	NumericEventID string      `json:"numeric_event_id"`
	IsMock         bool        `json:"is_mock"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

// Credential is a tagged union: none, QR, or proof. At most one of the
// pointers is set; which one is recorded by Kind so "QR fields present
// while mode=wallet" is unrepresentable.
type Credential struct {
	Kind  CredentialKind
	QR    *QRCredential
	Proof *ProofCredential
}

// None reports whether no credential is held.
func (c Credential) None() bool { return c.Kind == CredentialNone }

// NewQRCredential wraps a QR credential in the union.
func NewQRCredential(qr *QRCredential) Credential {
	return Credential{Kind: CredentialQR, QR: qr}
}

// NewProofCredential wraps a proof credential in the union.
func NewProofCredential(p *ProofCredential) Credential {
	return Credential{Kind: CredentialProof, Proof: p}
}

type credentialJSON struct {
	Kind  CredentialKind   `json:"kind"`
	QR    *QRCredential    `json:"qr,omitempty"`
	Proof *ProofCredential `json:"proof,omitempty"`
}

// MarshalJSON encodes the union as {"kind":...} or null when empty.
func (c Credential) MarshalJSON() ([]byte, error) {
	if c.None() {
		return []byte("null"), nil
	}
	return json.Marshal(credentialJSON{Kind: c.Kind, QR: c.QR, Proof: c.Proof})
}

// UnmarshalJSON decodes the union, validating the tag against the payload.
func (c *Credential) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*c = Credential{}
		return nil
	}
	var raw credentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case CredentialNone:
		*c = Credential{}
	case CredentialQR:
		if raw.QR == nil {
			return fmt.Errorf("credential kind %q without qr payload", raw.Kind)
		}
		*c = Credential{Kind: CredentialQR, QR: raw.QR}
	case CredentialProof:
		if raw.Proof == nil {
			return fmt.Errorf("credential kind %q without proof payload", raw.Kind)
		}
		*c = Credential{Kind: CredentialProof, Proof: raw.Proof}
	default:
		return fmt.Errorf("unknown credential kind %q", raw.Kind)
	}
	return nil
}

// ExternalVerification records acceptance of a proof by the on-chain
// verifier. Verified transitions false to true exactly once.
type ExternalVerification struct {
	Verified    bool       `json:"verified"`
	TxHash      string     `json:"tx_hash,omitempty"`
	BlockNumber int64      `json:"block_number,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// Cancellation records who ended the registration and why.
type Cancellation struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
	By     string    `json:"by"` // "user" or "admin"
}

// Registration is one wallet's claim against one event.
type Registration struct {
	ID            uuid.UUID            `json:"id"`
	EventID       uuid.UUID            `json:"event_id"`
	WalletAddress string               `json:"wallet_address"`
	Email         string               `json:"email,omitempty"`
	Status        RegistrationStatus   `json:"status"`
	AdminNote     string               `json:"admin_note,omitempty"`
	Credential    Credential           `json:"credential"`
	Verification  ExternalVerification `json:"external_verification"`
	Cancellation  *Cancellation        `json:"cancellation,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
