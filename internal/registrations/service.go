// Package registrations owns the registration lifecycle: the pending ->
// approved -> {rejected, cancelled, revoked} state machine, credential
// issuance on approval, the invalidation rules on revoke, and the idempotent
// recording of external verification results.
package registrations

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waas-labs/backend/internal/credential"
	"github.com/waas-labs/backend/internal/models"
)

// qrApprovedNote replaces the admin's message for QR approvals, matching the
// email the registrant is about to receive.
const qrApprovedNote = "Please check your email for QR code"

// Store is the registration persistence surface the lifecycle needs. All
// transition methods are compare-and-set: they report false when the
// registration was not in the required source state.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	ApproveFromPending(ctx context.Context, id uuid.UUID, note string, cred models.Credential) (bool, error)
	AttachProofCredential(ctx context.Context, id uuid.UUID, cred models.Credential) (bool, error)
	RejectFromPending(ctx context.Context, id uuid.UUID, note string) (bool, error)
	CancelFrom(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	RevokeFromApproved(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	RecordVerification(ctx context.Context, id uuid.UUID, txHash string, blockNumber int64) (bool, error)
	GetApprovedByQRToken(ctx context.Context, token string, eventID uuid.UUID) (*models.Registration, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}

// EventStore resolves the owning event.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Issuer mints the credential for an approval.
type Issuer interface {
	Issue(ctx context.Context, event *models.Event, reg *models.Registration, adminActor string) (credential.IssueResult, error)
}

// Mailer delivers a QR credential synchronously. Nil-able.
type Mailer interface {
	SendQRCredential(ctx context.Context, reg *models.Registration, event *models.Event) error
}

// DeliveryQueue enqueues a QR delivery retry for the worker. Nil-able.
type DeliveryQueue interface {
	EnqueueQRDelivery(ctx context.Context, registrationID, eventID uuid.UUID, recipient string) error
}

// ReceiptConfirmer checks a claimed transaction on the chain. Nil-able;
// confirmation is advisory.
type ReceiptConfirmer interface {
	ConfirmTransaction(ctx context.Context, txHash string) (blockNumber uint64, err error)
}

// Service is the registration lifecycle.
type Service struct {
	store  Store
	events EventStore
	issuer Issuer
	mailer Mailer
	queue  DeliveryQueue
	chain  ReceiptConfirmer
	logger *zap.Logger
}

// NewService creates the lifecycle service. mailer, queue and chain may be
// nil when the corresponding collaborator is not configured.
func NewService(store Store, events EventStore, issuer Issuer, mailer Mailer, queue DeliveryQueue, chain ReceiptConfirmer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, issuer: issuer, mailer: mailer, queue: queue, chain: chain, logger: logger}
}

// Submit creates a pending registration for a wallet against an event.
func (s *Service) Submit(ctx context.Context, eventID uuid.UUID, wallet, email string) (*models.Registration, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	reg := &models.Registration{EventID: eventID, WalletAddress: wallet, Email: email}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, err
	}
	reg.Status = models.StatusPending
	return reg, nil
}

// ApproveOutcome is the result of an approval. ProofErr is the
// partial-success signal: non-nil means the transition to approved committed
// but the proof path failed, so no credential was stored.
type ApproveOutcome struct {
	Registration *models.Registration
	ProofErr     error
}

// Approve transitions a pending registration to approved, minting its
// credential first. The conditional update on status is the single commit
// point, so a racing revoke or cancel cannot interleave. A proof-path
// failure degrades to approved-without-credential rather than blocking the
// admin's decision.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, admin *models.User, message string) (*ApproveOutcome, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.StatusPending {
		return nil, ErrInvalidState
	}
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}

	res, err := s.issuer.Issue(ctx, event, reg, admin.AdminActor())
	if err != nil {
		return nil, err
	}

	note := message
	if event.ApprovalMode == models.ApprovalModeQR {
		note = qrApprovedNote
	}

	ok, err := s.store.ApproveFromPending(ctx, id, note, res.Credential)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.ApprovalMode == models.ApprovalModeQR && updated.Email != "" {
		s.deliverQR(ctx, updated, event)
	}

	s.logger.Info("registration approved",
		zap.String("registration_id", id.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("mode", string(event.ApprovalMode)),
		zap.Bool("credential_issued", !updated.Credential.None()))

	return &ApproveOutcome{Registration: updated, ProofErr: res.ProofErr}, nil
}

// deliverQR attempts one synchronous send; any failure is left to the retry
// sweep and, when a queue is wired, a queued retry job. With no mailer
// configured the job is still enqueued: the process has no SMTP credentials
// and a standalone delivery worker (cmd/worker) is expected to consume the
// queue.
func (s *Service) deliverQR(ctx context.Context, reg *models.Registration, event *models.Event) {
	if s.mailer != nil {
		if err := s.mailer.SendQRCredential(ctx, reg, event); err == nil {
			if err := s.store.MarkDelivered(ctx, reg.ID); err != nil {
				s.logger.Error("mark delivered failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
			} else if reg.Credential.Kind == models.CredentialQR {
				reg.Credential.QR.Delivered = true
			}
			return
		} else {
			s.logger.Warn("qr email send failed, leaving for retry", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
	if s.queue != nil {
		if err := s.queue.EnqueueQRDelivery(ctx, reg.ID, event.ID, reg.Email); err != nil {
			s.logger.Warn("enqueue qr delivery failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
}

// Reject transitions a pending registration to rejected.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, message string) (*models.Registration, error) {
	ok, err := s.store.RejectFromPending(ctx, id, message)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id)
	}
	return s.store.GetByID(ctx, id)
}

// Cancel ends a pending or approved registration on the owner's request.
// The caller's wallet must match the registration's (case-insensitive).
// An approved registration's credential and verification record are cleared.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, wallet, reason string) (*models.Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(reg.WalletAddress, wallet) {
		return nil, ErrUnauthorized
	}
	ok, err := s.store.CancelFrom(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	return s.store.GetByID(ctx, id)
}

// Revoke invalidates an approved registration. Whatever credential existed
// (QR token or proof) becomes permanently unusable: the credential is
// cleared and the verified flag reset, regardless of branch.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, reason string) (*models.Registration, error) {
	ok, err := s.store.RevokeFromApproved(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id)
	}
	s.logger.Info("registration revoked", zap.String("registration_id", id.String()), zap.String("reason", reason))
	return s.store.GetByID(ctx, id)
}

// RecordExternalVerification records that the on-chain verifier accepted the
// registration's proof. Requires ownership and an approved proof credential.
// Idempotent: a second call is a no-op success returning the originally
// recorded transaction (first write wins).
func (s *Service) RecordExternalVerification(ctx context.Context, id uuid.UUID, wallet, txHash string, blockNumber int64) (*models.Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(reg.WalletAddress, wallet) {
		return nil, ErrUnauthorized
	}
	if reg.Verification.Verified {
		return reg, nil
	}
	if reg.Status != models.StatusApproved || reg.Credential.Kind != models.CredentialProof {
		return nil, ErrInvalidState
	}

	if s.chain != nil {
		if block, err := s.chain.ConfirmTransaction(ctx, txHash); err != nil {
			s.logger.Warn("could not confirm verification tx",
				zap.Error(err), zap.String("tx_hash", txHash))
		} else if int64(block) != blockNumber {
			s.logger.Warn("claimed block differs from receipt",
				zap.String("tx_hash", txHash),
				zap.Int64("claimed", blockNumber),
				zap.Uint64("receipt", block))
		}
	}

	ok, err := s.store.RecordVerification(ctx, id, txHash, blockNumber)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race: re-read and treat an already-verified record as the
		// idempotent success case.
		reg, err = s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if reg.Verification.Verified {
			return reg, nil
		}
		return nil, ErrInvalidState
	}
	return s.store.GetByID(ctx, id)
}

// RetryProof regenerates the proof credential for an approved wallet-mode
// registration left without one by an oracle outage.
func (s *Service) RetryProof(ctx context.Context, id uuid.UUID, admin *models.User) (*models.Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.StatusApproved || !reg.Credential.None() {
		return nil, ErrInvalidState
	}
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if event.ApprovalMode != models.ApprovalModeWallet {
		return nil, ErrInvalidState
	}
	res, err := s.issuer.Issue(ctx, event, reg, admin.AdminActor())
	if err != nil {
		return nil, err
	}
	if res.ProofErr != nil {
		return nil, res.ProofErr
	}
	ok, err := s.store.AttachProofCredential(ctx, id, res.Credential)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	return s.store.GetByID(ctx, id)
}

// VerifyQR checks a presented token against an event: valid only while an
// approved registration holds a QR credential with that token.
func (s *Service) VerifyQR(ctx context.Context, token string, eventID uuid.UUID) (*models.Registration, *models.Event, error) {
	reg, err := s.store.GetApprovedByQRToken(ctx, token, eventID)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	return reg, event, nil
}

// transitionFailure distinguishes a missing registration from one in the
// wrong state after a conditional update matched no row.
func (s *Service) transitionFailure(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidState
}
