package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type MockMessageAPI struct {
	mock.Mock
}

func (m *MockMessageAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twilioApi.ApiV2010Message), args.Error(1)
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 010-2030", "+15550102030", false},
		{"+44 20 7946 0958", "+442079460958", false},
		{"555-0102", "", true},
		{"+1555abc", "", true},
		{"1+5550102030", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeNumber(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSend(t *testing.T) {
	api := new(MockMessageAPI)
	sid := "SM123"
	api.On("CreateMessage", mock.MatchedBy(func(p *twilioApi.CreateMessageParams) bool {
		return *p.To == "+15550102030" && *p.From == "+15550000000" && *p.Body == "See you at 09:00"
	})).Return(&twilioApi.ApiV2010Message{Sid: &sid}, nil)

	s := NewSenderWithAPI(api, "+15550000000")

	got, err := s.Send(context.Background(), "+1 555 010 2030", "See you at 09:00")
	require.NoError(t, err)
	assert.Equal(t, "SM123", got)
	api.AssertExpectations(t)
}

func TestSend_APIError(t *testing.T) {
	api := new(MockMessageAPI)
	api.On("CreateMessage", mock.Anything).Return(nil, errors.New("status: 400"))

	_, err := NewSenderWithAPI(api, "+15550000000").Send(context.Background(), "+15550102030", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send sms to +15550102030")
}

func TestSend_NotConfigured(t *testing.T) {
	s := NewSender("", "", "")
	assert.False(t, s.Enabled())

	_, err := s.Send(context.Background(), "+15550102030", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilSender *Sender
	assert.False(t, nilSender.Enabled())
}

func TestSend_InvalidNumberSkipsAPI(t *testing.T) {
	api := new(MockMessageAPI)

	_, err := NewSenderWithAPI(api, "+15550000000").Send(context.Background(), "0102", "hi")
	assert.ErrorIs(t, err, ErrInvalidNumber)
	api.AssertNotCalled(t, "CreateMessage", mock.Anything)
}
