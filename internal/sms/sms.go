package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	ErrNotConfigured = errors.New("sms sender not configured")
	ErrInvalidNumber = errors.New("phone number must be in E.164 format")
)

// MessageAPI is the part of the Twilio REST client the sender uses.
type MessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Sender struct {
	api  MessageAPI
	from string
}

// NewSender returns a sender that reports ErrNotConfigured until credentials are set.
func NewSender(accountSID, authToken, from string) *Sender {
	if accountSID == "" || authToken == "" || from == "" {
		return &Sender{}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Sender{api: client.Api, from: from}
}

func NewSenderWithAPI(api MessageAPI, from string) *Sender {
	return &Sender{api: api, from: from}
}

func (s *Sender) Enabled() bool {
	return s != nil && s.api != nil
}

// NormalizeNumber strips formatting characters and requires a leading '+'.
func NormalizeNumber(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidNumber, phone)
		}
	}

	n := b.String()
	if !strings.HasPrefix(n, "+") || len(n) < 8 || len(n) > 16 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, phone)
	}
	return n, nil
}

// Send delivers body to phone and returns the message SID.
func (s *Sender) Send(ctx context.Context, phone, body string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	to, err := NormalizeNumber(phone)
	if err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("send sms to %s: %w", to, err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
