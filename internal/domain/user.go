package domain

import "time"

// DeletedAccountHash is the sentinel stored in place of a password hash for
// permanently deactivated accounts. Such accounts never authenticate.
const DeletedAccountHash = "DELETED_ACCOUNT"

// User is the domain model for a registered member.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Domain       string
	Score        int
	Banned       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Deactivated reports whether the account has been permanently deactivated.
func (u *User) Deactivated() bool {
	return u.PasswordHash == DeletedAccountHash
}
