// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"time"
)

// User represents an account. Email is the identity field used to log in.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Name      string    `gorm:"not null;size:60" json:"name"`
	Password  string    `gorm:"not null" json:"-"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// NumFollowers is computed at query time.
	NumFollowers int `gorm:"->;-:migration" json:"num_followers"`
}

// FullName returns the display name.
func (u *User) FullName() string {
	return u.Name
}

// ShortName returns the display name.
func (u *User) ShortName() string {
	return u.Name
}

// ImageURL returns the profile image or an empty string.
func (u *User) ImageURL() string {
	if u.Image == nil {
		return ""
	}
	return *u.Image
}

// AbsoluteURL is the profile page of the user.
func (u *User) AbsoluteURL() string {
	return fmt.Sprintf("/accounts/profile/%d/", u.ID)
}
