package domain

import "time"

// Channel is the out-of-band route a one-time code travels through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ParseChannel maps a request value to a Channel, defaulting to email.
func ParseChannel(s string) (Channel, bool) {
	switch s {
	case "", string(ChannelEmail):
		return ChannelEmail, true
	case string(ChannelSMS):
		return ChannelSMS, true
	}
	return "", false
}

// OneTimeCode is a short-lived, single-use code proving control of an email or phone.
// At most one code per (AccountID, Channel) is live: issuing a new one supersedes the rest.
type OneTimeCode struct {
	CodeID       string     `json:"id" dynamodbav:"code_id"`
	AccountID    string     `json:"account_id" dynamodbav:"account_id"`
	Channel      Channel    `json:"channel" dynamodbav:"channel"`
	Code         string     `json:"-" dynamodbav:"code"`
	IssuedAt     time.Time  `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	ConsumedAt   *time.Time `json:"consumed_at,omitempty" dynamodbav:"consumed_at,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty" dynamodbav:"superseded_at,omitempty"`
}

// Usable reports whether the code can still be consumed at now.
func (c *OneTimeCode) Usable(now time.Time) bool {
	return c.ConsumedAt == nil && c.SupersededAt == nil && now.Before(c.ExpiresAt)
}
