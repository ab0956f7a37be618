package domain

import (
	"strings"
	"time"
)

// VerificationStatus is derived from the per-channel verification timestamps.
type VerificationStatus string

const (
	StatusUnverified    VerificationStatus = "unverified"
	StatusEmailVerified VerificationStatus = "email_verified"
	StatusPhoneVerified VerificationStatus = "phone_verified"
	StatusFullyVerified VerificationStatus = "fully_verified"
)

type Account struct {
	AccountID       string     `json:"id" dynamodbav:"account_id"`
	Email           string     `json:"email" dynamodbav:"email"`
	Phone           *string    `json:"phone" dynamodbav:"phone,omitempty"`
	PasswordHash    string     `json:"-" dynamodbav:"password_hash"`
	FirstName       string     `json:"firstName" dynamodbav:"first_name"`
	LastName        string     `json:"lastName" dynamodbav:"last_name"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty" dynamodbav:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phoneVerifiedAt,omitempty" dynamodbav:"phone_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// VerificationStatus reports which channels have been proven by a consumed one-time code.
func (a *Account) VerificationStatus() VerificationStatus {
	switch {
	case a.EmailVerifiedAt != nil && a.PhoneVerifiedAt != nil:
		return StatusFullyVerified
	case a.EmailVerifiedAt != nil:
		return StatusEmailVerified
	case a.PhoneVerifiedAt != nil:
		return StatusPhoneVerified
	default:
		return StatusUnverified
	}
}

// IsVerified reports whether the given channel has been verified.
func (a *Account) IsVerified(ch Channel) bool {
	if ch == ChannelSMS {
		return a.PhoneVerifiedAt != nil
	}
	return a.EmailVerifiedAt != nil
}

// DisplayName joins first and last name.
func (a *Account) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// NormalizeEmail lower-cases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

type RegisterRequest struct {
	Email               string  `json:"email" validate:"required,email,max=254"`
	Phone               *string `json:"phone" validate:"omitempty,phone"`
	Password            string  `json:"password" validate:"required,min=8,bcryptmax"`
	FirstName           string  `json:"firstName" validate:"required,max=100"`
	LastName            string  `json:"lastName" validate:"required,max=100"`
	VerificationChannel string  `json:"verificationChannel" validate:"omitempty,oneof=email sms"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

type ResendCodeRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Channel string `json:"channel" validate:"omitempty,oneof=email sms"`
}
