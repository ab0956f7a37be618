// Package notification delivers one-time codes and confirmations over email
// and SMS.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/metrics"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Message is channel-agnostic content. Subject is ignored for SMS; Body is
// HTML for email and plain text for SMS.
type Message struct {
	Subject string
	Body    string
}

// Delivery reports the outcome of a send. Detail is for logs only.
type Delivery struct {
	Delivered bool
	Detail    string
}

type Gateway interface {
	Send(ctx context.Context, ch domain.Channel, destination string, msg Message) Delivery
}

type gateway struct {
	email   EmailSender
	sms     SMSSender
	timeout time.Duration
	metrics metrics.Recorder
}

type GatewayDeps struct {
	Email   EmailSender
	SMS     SMSSender
	Timeout time.Duration
	Metrics metrics.Recorder
}

func NewGateway(deps GatewayDeps) Gateway {
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	return &gateway{email: deps.Email, sms: deps.SMS, timeout: deps.Timeout, metrics: m}
}

// Send never returns an error; failures come back as Delivered=false so each
// caller decides whether non-delivery is fatal.
func (g *gateway) Send(ctx context.Context, ch domain.Channel, destination string, msg Message) Delivery {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	switch ch {
	case domain.ChannelEmail:
		if g.email == nil {
			return Delivery{Detail: "email channel not configured"}
		}
		err = g.email.SendEmail(ctx, destination, msg.Subject, msg.Body)
	case domain.ChannelSMS:
		if g.sms == nil {
			return Delivery{Detail: "sms channel not configured"}
		}
		err = g.sms.SendSMS(ctx, destination, msg.Body)
	default:
		return Delivery{Detail: fmt.Sprintf("unknown channel %q", ch)}
	}
	g.metrics.RecordNotification(string(ch), err == nil, time.Since(start))

	if err != nil {
		return Delivery{Detail: err.Error()}
	}
	return Delivery{Delivered: true, Detail: fmt.Sprintf("%s sent to %s", ch, destination)}
}
