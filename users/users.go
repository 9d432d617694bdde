package users

import (
	"time"
)

// User is the stored identity record.
type User struct {
	ID           int64     `json:"id"`       // Unique identifier assigned by the store
	Username     string    `json:"username"` // Unique username
	PasswordHash string    `json:"-"`        // Hashed version of the user's password - never serialize
	CreatedAt    time.Time `json:"-"`        // When the user registered
	UpdatedAt    time.Time `json:"-"`        // Last time the record changed
}

// Profile is the public view of a User. It is the only user shape handed to callers.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Profile builds the public view of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
	}
}

// UserUpdate holds the fields to change on an existing user. Nil fields are left untouched.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.PasswordHash == nil
}

// Apply copies the set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
}
