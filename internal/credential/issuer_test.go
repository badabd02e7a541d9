package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waas-labs/backend/internal/models"
)

type stubProver struct {
	cred *models.ProofCredential
	err  error
}

func (s *stubProver) GenerateApprovalProof(context.Context, string, uuid.UUID, string) (*models.ProofCredential, error) {
	return s.cred, s.err
}

type stubHost struct {
	url string
	err error
}

func (s *stubHost) UploadQRImage(context.Context, string, []byte) (string, error) {
	return s.url, s.err
}

func testRegistration() (*models.Event, *models.Registration) {
	event := &models.Event{ID: uuid.New(), Title: "DevCon"}
	reg := &models.Registration{ID: uuid.New(), EventID: event.ID, WalletAddress: "0xabc"}
	return event, reg
}

func TestIssueQRMode(t *testing.T) {
	event, reg := testRegistration()
	event.ApprovalMode = models.ApprovalModeQR

	issuer := NewIssuer(&stubProver{}, &stubHost{url: "https://bucket/qr.png"}, nil)
	res, err := issuer.Issue(context.Background(), event, reg, "0xadmin")
	require.NoError(t, err)
	require.Nil(t, res.ProofErr)

	require.Equal(t, models.CredentialQR, res.Credential.Kind)
	qr := res.Credential.QR
	assert.NotEmpty(t, qr.Token)
	assert.Contains(t, qr.Image, "data:image/png;base64,")
	assert.Equal(t, "https://bucket/qr.png", qr.ImageURL)
	assert.False(t, qr.Delivered)
}

func TestIssueQRUploadFailureIsBestEffort(t *testing.T) {
	event, reg := testRegistration()
	event.ApprovalMode = models.ApprovalModeQR

	issuer := NewIssuer(&stubProver{}, &stubHost{err: errors.New("bucket gone")}, nil)
	res, err := issuer.Issue(context.Background(), event, reg, "0xadmin")
	require.NoError(t, err, "hosting failure must not block issuance")
	assert.Empty(t, res.Credential.QR.ImageURL)
	assert.NotEmpty(t, res.Credential.QR.Image, "data url remains redeemable")
}

func TestIssueWalletMode(t *testing.T) {
	event, reg := testRegistration()
	event.ApprovalMode = models.ApprovalModeWallet

	want := &models.ProofCredential{Nullifier: "42", GeneratedAt: time.Now()}
	issuer := NewIssuer(&stubProver{cred: want}, nil, nil)
	res, err := issuer.Issue(context.Background(), event, reg, "0xadmin")
	require.NoError(t, err)
	require.Equal(t, models.CredentialProof, res.Credential.Kind)
	assert.Equal(t, "42", res.Credential.Proof.Nullifier)
}

func TestIssueWalletModeProofFailureIsConfined(t *testing.T) {
	event, reg := testRegistration()
	event.ApprovalMode = models.ApprovalModeWallet

	issuer := NewIssuer(&stubProver{err: errors.New("oracle down")}, nil, nil)
	res, err := issuer.Issue(context.Background(), event, reg, "0xadmin")
	require.NoError(t, err, "proof failure is partial success, not an error")
	assert.Error(t, res.ProofErr)
	assert.True(t, res.Credential.None())
}

func TestIssueUnknownModeFails(t *testing.T) {
	event, reg := testRegistration()
	event.ApprovalMode = "carrier-pigeon"

	issuer := NewIssuer(&stubProver{}, nil, nil)
	_, err := issuer.Issue(context.Background(), event, reg, "0xadmin")
	assert.Error(t, err)
}
