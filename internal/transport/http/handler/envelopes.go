package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-api-accounts/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// RegisterEnvelope is returned by a successful registration.
type RegisterEnvelope struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// LoginEnvelope is returned by a successful login.
type LoginEnvelope struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	UserID  string `json:"userId"`
}

// SafeAccount is the public view of an account. The password digest never leaves the server.
type SafeAccount struct {
	ID                 string                    `json:"id"`
	Email              string                    `json:"email"`
	Phone              *string                   `json:"phone"`
	FirstName          string                    `json:"firstName"`
	LastName           string                    `json:"lastName"`
	VerificationStatus domain.VerificationStatus `json:"verificationStatus"`
	EmailVerifiedAt    *time.Time                `json:"emailVerifiedAt,omitempty"`
	PhoneVerifiedAt    *time.Time                `json:"phoneVerifiedAt,omitempty"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

type MeEnvelope struct {
	User *SafeAccount `json:"user"`
}

type HealthEnvelope struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func toSafeAccount(a *domain.Account) *SafeAccount {
	return &SafeAccount{
		ID:                 a.AccountID,
		Email:              a.Email,
		Phone:              a.Phone,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		VerificationStatus: a.VerificationStatus(),
		EmailVerifiedAt:    a.EmailVerifiedAt,
		PhoneVerifiedAt:    a.PhoneVerifiedAt,
		CreatedAt:          a.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
