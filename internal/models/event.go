package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalMode controls which credential branch issuance takes.
// Fixed at event creation, never inferred at approval time.
type ApprovalMode string

const (
	ApprovalModeQR     ApprovalMode = "qr"
	ApprovalModeWallet ApprovalMode = "wallet"
)

// Valid reports whether m is a known approval mode.
func (m ApprovalMode) Valid() bool {
	return m == ApprovalModeQR || m == ApprovalModeWallet
}

// Event is an attendable event accepting whitelist registrations.
type Event struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Place        string       `json:"place"`
	Date         string       `json:"date"`
	Fee          string       `json:"fee"`
	ApprovalMode ApprovalMode `json:"approval_mode"`
	CreatedBy    uuid.UUID    `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
