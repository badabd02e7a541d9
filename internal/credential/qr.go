package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// qrTokenBytes gives 1024 bits of entropy per token.
const qrTokenBytes = 128

// qrImageSize is the rendered PNG edge size in pixels.
const qrImageSize = 300

// QRPayload is the scannable payload bound into the QR image.
type QRPayload struct {
	Token         string `json:"token"`
	EventID       string `json:"eventId"`
	EventTitle    string `json:"eventTitle"`
	WalletAddress string `json:"walletAddress"`
	Timestamp     string `json:"timestamp"`
}

// GenerateQRToken returns a random hex token for QR redemption.
func GenerateQRToken() (string, error) {
	b := make([]byte, qrTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate qr token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RenderQR encodes the payload as a PNG QR code, returning both the raw
// bytes (for email attachment and hosting) and a base64 data URL (stored on
// the credential).
func RenderQR(payload QRPayload) (dataURL string, png []byte, err error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal qr payload: %w", err)
	}
	png, err = qrcode.Encode(string(raw), qrcode.Medium, qrImageSize)
	if err != nil {
		return "", nil, fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), png, nil
}

// DecodeQRImage strips the data URL prefix and returns the PNG bytes.
func DecodeQRImage(dataURL string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if len(dataURL) <= len(prefix) {
		return nil, fmt.Errorf("not a qr data url")
	}
	return base64.StdEncoding.DecodeString(dataURL[len(prefix):])
}

// ParsePayload decodes the JSON string a scanner reads out of the QR image.
func ParsePayload(raw string) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return QRPayload{}, fmt.Errorf("parse qr payload: %w", err)
	}
	if p.Token == "" {
		return QRPayload{}, fmt.Errorf("qr payload missing token")
	}
	return p, nil
}

func payloadTimestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
