package registrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waas-labs/backend/internal/credential"
	"github.com/waas-labs/backend/internal/models"
)

// fakeStore is an in-memory Store applying the same conditional-transition
// rules as the SQL layer.
type fakeStore struct {
	regs map[uuid.UUID]*models.Registration
}

func newFakeStore() *fakeStore {
	return &fakeStore{regs: make(map[uuid.UUID]*models.Registration)}
}

func (s *fakeStore) Create(_ context.Context, reg *models.Registration) error {
	reg.ID = uuid.New()
	reg.Status = models.StatusPending
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = reg.CreatedAt
	cp := *reg
	s.regs[reg.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, ok := s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (s *fakeStore) ApproveFromPending(_ context.Context, id uuid.UUID, note string, cred models.Credential) (bool, error) {
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.StatusPending {
		return false, nil
	}
	reg.Status = models.StatusApproved
	reg.AdminNote = note
	reg.Credential = cred
	return true, nil
}

func (s *fakeStore) AttachProofCredential(_ context.Context, id uuid.UUID, cred models.Credential) (bool, error) {
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.StatusApproved || !reg.Credential.None() {
		return false, nil
	}
	reg.Credential = cred
	return true, nil
}

func (s *fakeStore) RejectFromPending(_ context.Context, id uuid.UUID, note string) (bool, error) {
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.StatusPending {
		return false, nil
	}
	reg.Status = models.StatusRejected
	reg.AdminNote = note
	return true, nil
}

func (s *fakeStore) CancelFrom(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	reg, ok := s.regs[id]
	if !ok || (reg.Status != models.StatusPending && reg.Status != models.StatusApproved) {
		return false, nil
	}
	reg.Status = models.StatusCancelled
	reg.Credential = models.Credential{}
	reg.Verification = models.ExternalVerification{}
	reg.Cancellation = &models.Cancellation{Reason: reason, At: time.Now(), By: models.CancelledByUser}
	return true, nil
}

func (s *fakeStore) RevokeFromApproved(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.StatusApproved {
		return false, nil
	}
	reg.Status = models.StatusRevoked
	reg.Credential = models.Credential{}
	reg.Verification = models.ExternalVerification{}
	reg.Cancellation = &models.Cancellation{Reason: reason, At: time.Now(), By: models.CancelledByAdmin}
	return true, nil
}

func (s *fakeStore) RecordVerification(_ context.Context, id uuid.UUID, txHash string, blockNumber int64) (bool, error) {
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.StatusApproved || reg.Verification.Verified || reg.Credential.Kind != models.CredentialProof {
		return false, nil
	}
	now := time.Now()
	reg.Verification = models.ExternalVerification{Verified: true, TxHash: txHash, BlockNumber: blockNumber, VerifiedAt: &now}
	return true, nil
}

func (s *fakeStore) GetApprovedByQRToken(_ context.Context, token string, eventID uuid.UUID) (*models.Registration, error) {
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.Status == models.StatusApproved &&
			reg.Credential.Kind == models.CredentialQR && reg.Credential.QR.Token == token {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) MarkDelivered(_ context.Context, id uuid.UUID) error {
	reg, ok := s.regs[id]
	if !ok {
		return ErrNotFound
	}
	if reg.Credential.Kind == models.CredentialQR {
		reg.Credential.QR.Delivered = true
	}
	return nil
}

type fakeEvents struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	return e, nil
}

// fakeIssuer mints deterministic credentials and can simulate an oracle
// outage.
type fakeIssuer struct {
	proofErr error
	calls    int
}

func (f *fakeIssuer) Issue(_ context.Context, event *models.Event, reg *models.Registration, _ string) (credential.IssueResult, error) {
	f.calls++
	if event.ApprovalMode == models.ApprovalModeQR {
		return credential.IssueResult{Credential: models.NewQRCredential(&models.QRCredential{
			Token: "token-" + reg.ID.String(),
			Image: "data:image/png;base64,aGk=",
		})}, nil
	}
	if f.proofErr != nil {
		return credential.IssueResult{ProofErr: f.proofErr}, nil
	}
	return credential.IssueResult{Credential: models.NewProofCredential(&models.ProofCredential{
		Nullifier:     "42",
		PublicSignals: []string{"1", "42", "7", "42"},
		GeneratedAt:   time.Now(),
	})}, nil
}

type fakeMailer struct {
	sent    int
	sendErr error
}

func (f *fakeMailer) SendQRCredential(context.Context, *models.Registration, *models.Event) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent++
	return nil
}

type fakeQueue struct {
	jobs int
}

func (f *fakeQueue) EnqueueQRDelivery(context.Context, uuid.UUID, uuid.UUID, string) error {
	f.jobs++
	return nil
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	issuer *fakeIssuer
	mailer *fakeMailer
	queue  *fakeQueue
	event  *models.Event
	admin  *models.User
}

func newFixture(t *testing.T, mode models.ApprovalMode) *fixture {
	t.Helper()
	event := &models.Event{ID: uuid.New(), Title: "DevCon", Place: "Lisbon", Date: "2026-10-01", ApprovalMode: mode}
	store := newFakeStore()
	issuer := &fakeIssuer{}
	mailer := &fakeMailer{}
	q := &fakeQueue{}
	svc := NewService(store, &fakeEvents{events: map[uuid.UUID]*models.Event{event.ID: event}}, issuer, mailer, q, nil, nil)
	return &fixture{
		svc: svc, store: store, issuer: issuer, mailer: mailer, queue: q,
		event: event,
		admin: &models.User{ID: uuid.New(), Email: "admin@waas.local", Role: models.RoleAdmin, WalletAddress: "0xadmin"},
	}
}

func (f *fixture) submit(t *testing.T, wallet string) *models.Registration {
	t.Helper()
	reg, err := f.svc.Submit(context.Background(), f.event.ID, wallet, "alice@example.com")
	require.NoError(t, err)
	return reg
}

const wallet = "0xAbCd567890abcdef1234567890abcdef12345678"

func TestApproveQRIssuesCredentialAndEmails(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)

	out, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "welcome")
	require.NoError(t, err)
	require.Nil(t, out.ProofErr)

	got := out.Registration
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, models.CredentialQR, got.Credential.Kind)
	assert.NotEmpty(t, got.Credential.QR.Token)
	assert.Equal(t, "Please check your email for QR code", got.AdminNote)
	assert.Equal(t, 1, f.mailer.sent)
}

func TestApproveWalletIssuesProof(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	reg := f.submit(t, wallet)

	out, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "gm")
	require.NoError(t, err)
	require.Nil(t, out.ProofErr)

	got := out.Registration
	assert.Equal(t, models.CredentialProof, got.Credential.Kind)
	assert.Equal(t, "gm", got.AdminNote)
	assert.Zero(t, f.mailer.sent, "wallet mode sends no email")
}

func TestApproveProofFailureIsPartialSuccess(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	f.issuer.proofErr = errors.New("oracle down")
	reg := f.submit(t, wallet)

	out, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err, "oracle outage must not block the decision")
	require.Error(t, out.ProofErr)

	assert.Equal(t, models.StatusApproved, out.Registration.Status)
	assert.True(t, out.Registration.Credential.None())
}

func TestRetryProofAfterOutage(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	f.issuer.proofErr = errors.New("oracle down")
	reg := f.submit(t, wallet)

	_, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)

	f.issuer.proofErr = nil
	got, err := f.svc.RetryProof(context.Background(), reg.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialProof, got.Credential.Kind)

	// a second retry must refuse: the credential slot is taken
	_, err = f.svc.RetryProof(context.Background(), reg.ID, f.admin)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApproveNonPendingFails(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)

	_, err := f.svc.Reject(context.Background(), reg.ID, "no")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	assert.ErrorIs(t, err, ErrInvalidState, "rejected is terminal")
}

func TestRejectThenCancelFails(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)

	_, err := f.svc.Reject(context.Background(), reg.ID, "nope")
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), reg.ID, wallet, "changed my mind")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelRequiresOwnership(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)

	_, err := f.svc.Cancel(context.Background(), reg.ID, "0x9999999999999999999999999999999999999999", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelOwnershipIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)

	got, err := f.svc.Cancel(context.Background(), reg.ID, "0XABCD567890ABCDEF1234567890ABCDEF12345678", "plans changed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, models.CancelledByUser, got.Cancellation.By)
}

func TestRevokeClearsCredentialAndVerification(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	reg := f.submit(t, wallet)

	_, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)
	_, err = f.svc.RecordExternalVerification(context.Background(), reg.ID, wallet, "0xdead", 123)
	require.NoError(t, err)

	got, err := f.svc.Revoke(context.Background(), reg.ID, "duplicate account")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRevoked, got.Status)
	assert.True(t, got.Credential.None(), "revoked credential must not survive")
	assert.False(t, got.Verification.Verified)
	assert.Equal(t, models.CancelledByAdmin, got.Cancellation.By)
}

func TestRevokePendingFails(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)

	_, err := f.svc.Revoke(context.Background(), reg.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordVerificationIdempotent(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	reg := f.submit(t, wallet)
	_, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)

	first, err := f.svc.RecordExternalVerification(context.Background(), reg.ID, wallet, "0xaaa", 100)
	require.NoError(t, err)
	assert.True(t, first.Verification.Verified)

	// second report with different data: no-op success, first write wins
	second, err := f.svc.RecordExternalVerification(context.Background(), reg.ID, wallet, "0xbbb", 200)
	require.NoError(t, err)
	assert.Equal(t, "0xaaa", second.Verification.TxHash)
	assert.Equal(t, int64(100), second.Verification.BlockNumber)
}

func TestRecordVerificationRequiresOwnership(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	reg := f.submit(t, wallet)
	_, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)

	_, err = f.svc.RecordExternalVerification(context.Background(), reg.ID, "0x1111111111111111111111111111111111111111", "0xaaa", 100)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRecordVerificationAfterRevokeFails(t *testing.T) {
	f := newFixture(t, models.ApprovalModeWallet)
	reg := f.submit(t, wallet)
	_, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)
	_, err = f.svc.Revoke(context.Background(), reg.ID, "fraud")
	require.NoError(t, err)

	_, err = f.svc.RecordExternalVerification(context.Background(), reg.ID, wallet, "0xaaa", 100)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordVerificationRejectsQRCredential(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)
	_, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)

	_, err = f.svc.RecordExternalVerification(context.Background(), reg.ID, wallet, "0xaaa", 100)
	assert.ErrorIs(t, err, ErrInvalidState, "qr credentials have no on-chain verification")
}

func TestVerifyQRTokenLifecycle(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	reg := f.submit(t, wallet)
	out, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)
	token := out.Registration.Credential.QR.Token

	got, event, err := f.svc.VerifyQR(context.Background(), token, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)
	assert.Equal(t, f.event.Title, event.Title)

	// revoked: the same token stops validating
	_, err = f.svc.Revoke(context.Background(), reg.ID, "")
	require.NoError(t, err)
	_, _, err = f.svc.VerifyQR(context.Background(), token, f.event.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQRDeliveryFallsBackToQueue(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	f.mailer.sendErr = errors.New("smtp down")
	reg := f.submit(t, wallet)

	out, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, out.Registration.Status, "delivery failure never blocks approval")
	assert.Equal(t, 1, f.queue.jobs, "failed send must enqueue a retry")
	assert.False(t, out.Registration.Credential.QR.Delivered)
}

func TestQRDeliveryQueuedWhenNoMailer(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	f.svc = NewService(f.store, &fakeEvents{events: map[uuid.UUID]*models.Event{f.event.ID: f.event}}, f.issuer, nil, f.queue, nil, nil)
	reg := f.submit(t, wallet)

	out, err := f.svc.Approve(context.Background(), reg.ID, f.admin, "")
	require.NoError(t, err)

	// no local SMTP: the job goes to the queue for a standalone worker
	assert.Equal(t, 1, f.queue.jobs)
	assert.Zero(t, f.mailer.sent)
	assert.False(t, out.Registration.Credential.QR.Delivered)
}

func TestSubmitUnknownEventFails(t *testing.T) {
	f := newFixture(t, models.ApprovalModeQR)
	_, err := f.svc.Submit(context.Background(), uuid.New(), wallet, "")
	assert.Error(t, err)
}
