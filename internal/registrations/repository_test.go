package registrations

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waas-labs/backend/internal/models"
)

// stubRow feeds a fixed value list to Scan with the driver's NULL rule: a
// nil value only scans into a pointer or byte-slice destination.
type stubRow struct {
	vals []any
}

func (r stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		v := r.vals[i]
		if v == nil {
			switch d.(type) {
			case **string, **time.Time, *[]byte:
				// stays zero
			default:
				return fmt.Errorf("cannot scan NULL into %T", d)
			}
			continue
		}
		switch p := d.(type) {
		case *uuid.UUID:
			*p = v.(uuid.UUID)
		case *string:
			*p = v.(string)
		case **string:
			s := v.(string)
			*p = &s
		case *models.RegistrationStatus:
			*p = models.RegistrationStatus(v.(string))
		case *bool:
			*p = v.(bool)
		case *int64:
			*p = v.(int64)
		case *[]byte:
			*p = v.([]byte)
		case *time.Time:
			*p = v.(time.Time)
		case **time.Time:
			ts := v.(time.Time)
			*p = &ts
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

// Column order: id, event_id, wallet_address, email, status, admin_note,
// credential, verified, tx_hash, block_number, verified_at,
// cancellation_reason, cancelled_at, cancelled_by, created_at, updated_at.
func pendingRowValues(id, eventID uuid.UUID) []any {
	now := time.Now()
	return []any{
		id, eventID, "0xabc", "alice@example.com", "pending", "",
		nil, false, "", int64(0), nil,
		nil, nil, nil, now, now,
	}
}

func TestScanRegistrationNeverCancelled(t *testing.T) {
	id, eventID := uuid.New(), uuid.New()
	reg, err := scanRegistration(stubRow{vals: pendingRowValues(id, eventID)})
	require.NoError(t, err, "a row with NULL cancellation columns must scan")

	assert.Equal(t, id, reg.ID)
	assert.Equal(t, models.StatusPending, reg.Status)
	assert.True(t, reg.Credential.None())
	assert.Nil(t, reg.Cancellation)
	assert.False(t, reg.Verification.Verified)
	assert.Nil(t, reg.Verification.VerifiedAt)
}

func TestScanRegistrationRevoked(t *testing.T) {
	id, eventID := uuid.New(), uuid.New()
	now := time.Now()
	vals := []any{
		id, eventID, "0xabc", "", "revoked", "",
		nil, false, "", int64(0), nil,
		"duplicate account", now, "admin", now, now,
	}
	reg, err := scanRegistration(stubRow{vals: vals})
	require.NoError(t, err)

	require.NotNil(t, reg.Cancellation)
	assert.Equal(t, "duplicate account", reg.Cancellation.Reason)
	assert.Equal(t, models.CancelledByAdmin, reg.Cancellation.By)
	assert.True(t, reg.Credential.None(), "revoke cleared the credential")
}

func TestScanRegistrationApprovedQR(t *testing.T) {
	id, eventID := uuid.New(), uuid.New()
	now := time.Now()
	cred := []byte(`{"kind":"qr","qr":{"token":"deadbeef","image":"data:image/png;base64,aGk=","delivered":false}}`)
	vals := []any{
		id, eventID, "0xabc", "alice@example.com", "approved", "Please check your email for QR code",
		cred, false, "", int64(0), nil,
		nil, nil, nil, now, now,
	}
	reg, err := scanRegistration(stubRow{vals: vals})
	require.NoError(t, err)

	assert.Equal(t, models.CredentialQR, reg.Credential.Kind)
	assert.Equal(t, "deadbeef", reg.Credential.QR.Token)
	assert.Nil(t, reg.Cancellation)
}

func TestScanRegistrationBadCredentialJSON(t *testing.T) {
	id, eventID := uuid.New(), uuid.New()
	vals := pendingRowValues(id, eventID)
	vals[6] = []byte(`{"kind":`)
	_, err := scanRegistration(stubRow{vals: vals})
	assert.Error(t, err)
}
