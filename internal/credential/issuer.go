// Package credential issues the redeemable artifact minted on approval:
// a QR token with a rendered image, or a zero-knowledge proof package,
// selected by the event's approval mode.
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waas-labs/backend/internal/models"
)

// ProofGenerator is the proving oracle surface the issuer depends on.
type ProofGenerator interface {
	GenerateApprovalProof(ctx context.Context, walletAddress string, eventID uuid.UUID, adminActor string) (*models.ProofCredential, error)
}

// ImageHost uploads a rendered QR PNG and returns its public URL.
type ImageHost interface {
	UploadQRImage(ctx context.Context, key string, png []byte) (string, error)
}

// IssueResult carries the minted credential. ProofErr is set when the
// wallet-mode proof path failed: the credential is empty and the approval is
// expected to proceed anyway (partial success).
type IssueResult struct {
	Credential models.Credential
	ProofErr   error
}

// Issuer mints credentials for approvals. The branch taken is decided once
// per call from the event's approval mode.
type Issuer struct {
	prover ProofGenerator
	images ImageHost // nil when image hosting is not configured
	logger *zap.Logger
}

// NewIssuer creates a credential issuer.
func NewIssuer(prover ProofGenerator, images ImageHost, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{prover: prover, images: images, logger: logger}
}

// Issue mints the credential for an approved registration. QR-branch
// failures are returned as errors and block the approval; proof-branch
// failures are confined to IssueResult.ProofErr so a transient oracle outage
// never blocks an administrator's decision.
func (i *Issuer) Issue(ctx context.Context, event *models.Event, reg *models.Registration, adminActor string) (IssueResult, error) {
	switch event.ApprovalMode {
	case models.ApprovalModeQR:
		qr, err := i.issueQR(ctx, event, reg)
		if err != nil {
			return IssueResult{}, err
		}
		return IssueResult{Credential: models.NewQRCredential(qr)}, nil
	case models.ApprovalModeWallet:
		proof, err := i.prover.GenerateApprovalProof(ctx, reg.WalletAddress, event.ID, adminActor)
		if err != nil {
			i.logger.Error("proof generation failed, approving without credential",
				zap.Error(err),
				zap.String("registration_id", reg.ID.String()))
			return IssueResult{ProofErr: err}, nil
		}
		return IssueResult{Credential: models.NewProofCredential(proof)}, nil
	default:
		return IssueResult{}, fmt.Errorf("unknown approval mode %q", event.ApprovalMode)
	}
}

func (i *Issuer) issueQR(ctx context.Context, event *models.Event, reg *models.Registration) (*models.QRCredential, error) {
	token, err := GenerateQRToken()
	if err != nil {
		return nil, err
	}
	payload := QRPayload{
		Token:         token,
		EventID:       event.ID.String(),
		EventTitle:    event.Title,
		WalletAddress: reg.WalletAddress,
		Timestamp:     payloadTimestamp(time.Now()),
	}
	dataURL, png, err := RenderQR(payload)
	if err != nil {
		return nil, err
	}

	qr := &models.QRCredential{Token: token, Image: dataURL}

	// Hosting is best-effort: the data URL alone is redeemable.
	if i.images != nil {
		key := fmt.Sprintf("qr/%s/%s.png", event.ID, reg.ID)
		url, err := i.images.UploadQRImage(ctx, key, png)
		if err != nil {
			i.logger.Warn("qr image upload failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		} else {
			qr.ImageURL = url
		}
	}
	return qr, nil
}
