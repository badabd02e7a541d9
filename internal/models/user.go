package models

import (
	"time"

	"github.com/google/uuid"
)

// Role constants for platform users.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff" // door staff: may verify QR codes, cannot approve
)

// User is a platform operator (admins approve, staff scan).
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserPublic is the user shape returned by the API.
type UserPublic struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToPublic strips the password hash.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		WalletAddress: u.WalletAddress,
		CreatedAt:     u.CreatedAt,
	}
}

// AdminActor is the identity string used to scope the approval secret:
// the admin's wallet when present, else their email.
func (u *User) AdminActor() string {
	if u.WalletAddress != "" {
		return u.WalletAddress
	}
	return u.Email
}
