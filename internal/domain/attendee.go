package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Attendee is one booking of an event.
type Attendee struct {
	ID        ID        `json:"id" yaml:"id"`
	EventID   ID        `json:"eventId" yaml:"event_id"`
	UserID    *ID       `json:"userId,omitempty" yaml:"user_id,omitempty"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// BookingRequest books an event. UserID is absent for guest bookings.
type BookingRequest struct {
	EventID ID     `json:"eventId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	UserID  *ID    `json:"userId,omitempty"`
}

// IsGuest reports whether the booking is made without an account.
func (b BookingRequest) IsGuest() bool {
	return b.UserID == nil
}

// AttendeeInput is the admin payload for adding or editing an attendee.
type AttendeeInput struct {
	EventID ID     `json:"eventId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Credentials is the login exchange payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest creates an account.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by the login and signup exchanges.
type AuthResult struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// ValidateContact checks a name/email pair.
func ValidateContact(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("email %q is not a valid address", email)
	}
	return nil
}
