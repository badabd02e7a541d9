package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waas-labs/backend/internal/models"
)

const regColumns = `id, event_id, wallet_address, email, status, admin_note, credential,
	verified, tx_hash, block_number, verified_at,
	cancellation_reason, cancelled_at, cancelled_by, created_at, updated_at`

// Repository handles registration persistence. Status transitions are
// conditional UPDATEs (WHERE status = expected), so concurrent operations on
// one registration linearize: at most one of a racing approve/revoke applies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		reg        models.Registration
		credRaw    []byte
		cancReason *string
		cancBy     *string
		cancAt     *time.Time
	)
	err := row.Scan(&reg.ID, &reg.EventID, &reg.WalletAddress, &reg.Email, &reg.Status, &reg.AdminNote, &credRaw,
		&reg.Verification.Verified, &reg.Verification.TxHash, &reg.Verification.BlockNumber, &reg.Verification.VerifiedAt,
		&cancReason, &cancAt, &cancBy, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(credRaw) > 0 {
		if err := json.Unmarshal(credRaw, &reg.Credential); err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
	}
	if cancBy != nil {
		reg.Cancellation = &models.Cancellation{By: *cancBy}
		if cancReason != nil {
			reg.Cancellation.Reason = *cancReason
		}
		if cancAt != nil {
			reg.Cancellation.At = *cancAt
		}
	}
	return &reg, nil
}

// Create inserts a pending registration (unique per event+wallet).
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (id, event_id, wallet_address, email)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, status, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, reg.EventID, reg.WalletAddress, reg.Email).
		Scan(&reg.ID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations WHERE id = $1`
	return scanRegistration(r.pool.QueryRow(ctx, q, id))
}

// ListByEvent returns all registrations for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations WHERE event_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, eventID)
}

// ListPendingByEvent returns pending registrations for an event, newest first.
func (r *Repository) ListPendingByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations WHERE event_id = $1 AND status = 'pending' ORDER BY created_at DESC`
	return r.list(ctx, q, eventID)
}

// ListByWallet returns a wallet's registrations across events.
func (r *Repository) ListByWallet(ctx context.Context, wallet string) ([]*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations WHERE LOWER(wallet_address) = LOWER($1) ORDER BY created_at DESC`
	return r.list(ctx, q, wallet)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.Registration, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// ApproveFromPending transitions pending -> approved, storing the credential
// and admin note. Returns false when the registration was not pending.
func (r *Repository) ApproveFromPending(ctx context.Context, id uuid.UUID, note string, cred models.Credential) (bool, error) {
	var credRaw any
	if !cred.None() {
		raw, err := json.Marshal(cred)
		if err != nil {
			return false, fmt.Errorf("encode credential: %w", err)
		}
		credRaw = raw
	}
	const q = `UPDATE registrations
		SET status = 'approved', admin_note = $2, credential = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, id, note, credRaw)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AttachProofCredential stores a proof credential on an approved registration
// that has none (proof retry after an oracle outage).
func (r *Repository) AttachProofCredential(ctx context.Context, id uuid.UUID, cred models.Credential) (bool, error) {
	credRaw, err := json.Marshal(cred)
	if err != nil {
		return false, fmt.Errorf("encode credential: %w", err)
	}
	const q = `UPDATE registrations
		SET credential = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'approved' AND credential IS NULL`
	tag, err := r.pool.Exec(ctx, q, id, credRaw)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RejectFromPending transitions pending -> rejected with the admin's message.
func (r *Repository) RejectFromPending(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	const q = `UPDATE registrations
		SET status = 'rejected', admin_note = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, id, note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelFrom transitions pending/approved -> cancelled on the owner's behalf,
// clearing any credential and verification record.
func (r *Repository) CancelFrom(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	const q = `UPDATE registrations
		SET status = 'cancelled', credential = NULL,
			verified = FALSE, tx_hash = '', block_number = 0, verified_at = NULL,
			cancellation_reason = $2, cancelled_at = NOW(), cancelled_by = 'user', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'approved')`
	tag, err := r.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeFromApproved transitions approved -> revoked. Unconditionally clears
// the credential and the verified flag: nothing redeemable survives.
func (r *Repository) RevokeFromApproved(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	const q = `UPDATE registrations
		SET status = 'revoked', credential = NULL,
			verified = FALSE, tx_hash = '', block_number = 0, verified_at = NULL,
			cancellation_reason = $2, cancelled_at = NOW(), cancelled_by = 'admin', updated_at = NOW()
		WHERE id = $1 AND status = 'approved'`
	tag, err := r.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordVerification sets the external verification result exactly once, and
// only while an approved proof credential exists. Returns false when the
// preconditions do not hold (already verified included).
func (r *Repository) RecordVerification(ctx context.Context, id uuid.UUID, txHash string, blockNumber int64) (bool, error) {
	const q = `UPDATE registrations
		SET verified = TRUE, tx_hash = $2, block_number = $3, verified_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'approved' AND verified = FALSE AND credential->>'kind' = 'proof'`
	tag, err := r.pool.Exec(ctx, q, id, txHash, blockNumber)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetApprovedByQRToken resolves a QR token presented at the door for an
// event. Only approved registrations match: a revoked credential's token no
// longer resolves because revoke cleared the credential column.
func (r *Repository) GetApprovedByQRToken(ctx context.Context, token string, eventID uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations
		WHERE event_id = $1 AND status = 'approved'
			AND credential->>'kind' = 'qr' AND credential->'qr'->>'token' = $2`
	return scanRegistration(r.pool.QueryRow(ctx, q, eventID, token))
}

// MarkDelivered flags the QR credential as emailed.
func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE registrations
		SET credential = jsonb_set(credential, '{qr,delivered}', 'true'), updated_at = NOW()
		WHERE id = $1 AND credential->>'kind' = 'qr'`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// ListUndeliveredQR returns approved QR registrations with a contact email
// whose credential has not been delivered yet (retry sweep input).
func (r *Repository) ListUndeliveredQR(ctx context.Context) ([]*models.Registration, error) {
	q := `SELECT ` + regColumns + ` FROM registrations
		WHERE status = 'approved' AND email <> ''
			AND credential->>'kind' = 'qr' AND credential->'qr'->>'delivered' = 'false'
		ORDER BY updated_at`
	return r.list(ctx, q)
}
