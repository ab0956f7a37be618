package notification

import (
	"fmt"
	"html"
	"time"

	"github.com/go-api-accounts/internal/domain"
)

const (
	otpSubject          = "Your OTP for Company Registration"
	confirmationSubject = "Verification Successful"
)

// OTPMessage builds the one-time code message for ch.
func OTPMessage(ch domain.Channel, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	if ch == domain.ChannelSMS {
		return Message{Body: fmt.Sprintf("Your OTP for Company Registration is: %s. Valid for %d minutes.", code, minutes)}
	}
	body := fmt.Sprintf("Your One Time Password (OTP) is: <strong>%s</strong><br/>This OTP is valid for %d minutes.",
		code, minutes)
	return Message{Subject: otpSubject, Body: body}
}

// ConfirmationMessage builds the message sent after a channel is verified.
func ConfirmationMessage(ch domain.Channel, firstName string) Message {
	if ch == domain.ChannelSMS {
		return Message{Body: fmt.Sprintf("Hi %s, your phone number has been verified successfully.", firstName)}
	}
	body := fmt.Sprintf("<h2>Welcome %s!</h2><p>Your email has been verified successfully. "+
		"You can now proceed with company registration.</p>", html.EscapeString(firstName))
	return Message{Subject: confirmationSubject, Body: body}
}
