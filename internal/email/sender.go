// Package email delivers QR credentials to approved registrants over SMTP.
package email

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/waas-labs/backend/internal/credential"
	"github.com/waas-labs/backend/internal/models"
)

// Sender sends credential emails via SMTP.
type Sender struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

// NewSender creates an SMTP sender. Returns nil when host is empty so
// callers can treat email as an optional collaborator.
func NewSender(host string, port int, username, password, from string, logger *zap.Logger) *Sender {
	if host == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{host: host, port: port, username: username, password: password, from: from, logger: logger}
}

// SendQRCredential emails the registrant their entry QR code. The PNG is
// embedded inline so the code shows without remote-image loading.
func (s *Sender) SendQRCredential(ctx context.Context, reg *models.Registration, event *models.Event) error {
	if reg.Email == "" {
		return fmt.Errorf("registration %s has no email", reg.ID)
	}
	if reg.Credential.Kind != models.CredentialQR || reg.Credential.QR == nil {
		return fmt.Errorf("registration %s has no qr credential", reg.ID)
	}

	png, err := credential.DecodeQRImage(reg.Credential.QR.Image)
	if err != nil {
		return fmt.Errorf("decode stored qr image: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", reg.Email)
	m.SetHeader("Subject", fmt.Sprintf("Your entry pass for %s", event.Title))
	m.Embed("qr.png", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(png)
		return err
	}))
	m.SetBody("text/html", qrBodyHTML(reg, event))

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send qr email: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("qr credential emailed",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", event.ID.String()))
	return nil
}

func qrBodyHTML(reg *models.Registration, event *models.Event) string {
	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 560px; margin: 0 auto;">
  <h2 style="color: #1a1a2e;">You're approved for %s</h2>
  <p>Hi,</p>
  <p>Your registration with wallet <code>%s</code> has been approved.
  Present the QR code below at the entrance.</p>
  <p style="text-align: center;"><img src="cid:qr.png" alt="Entry QR code" width="300" height="300"/></p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Venue</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Date</td><td>%s</td></tr>
  </table>
  <p style="color: #999; font-size: 12px;">This pass is personal and single-use. Do not share it.</p>
</div>`, event.Title, reg.WalletAddress, event.Place, event.Date)
}
