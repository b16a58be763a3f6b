package email

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(rdb *redis.Client) *Service {
	s := New("noreply@slotbook.app", "Slotbook", "smtp.test.com", "587", "test@example.com", "password", rdb)
	s.retryDelay = 0
	return s
}

func details() BookingDetails {
	return BookingDetails{
		Reference:    "BK-20260101-001",
		ProjectName:  "Shine Detailing",
		LocationName: "Main bay",
		When:         time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		Until:        time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		Total:        "90.00",
	}
}

func TestSend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	svc := newTestService(db)

	err := svc.Send(ctx, "user@example.com", "User", "Hello", "Test body")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingEmails(t *testing.T) {
	tests := []struct {
		name    string
		send    func(*Service) error
		pattern string
	}{
		{
			name:    "received",
			send:    func(s *Service) error { return s.SendBookingReceived(context.Background(), "dana@example.com", "Dana", details()) },
			pattern: `"kind":"received".*Booking received - BK-20260101-001`,
		},
		{
			name:    "confirmed",
			send:    func(s *Service) error { return s.SendBookingConfirmation(context.Background(), "dana@example.com", "Dana", details()) },
			pattern: `"kind":"confirmed".*Booking confirmed - BK-20260101-001`,
		},
		{
			name:    "reminder",
			send:    func(s *Service) error { return s.SendReminder(context.Background(), "dana@example.com", "Dana", details()) },
			pattern: `"kind":"reminder".*Reminder: your booking on Jan 5`,
		},
		{
			name:    "cancelled",
			send:    func(s *Service) error { return s.SendCancellation(context.Background(), "dana@example.com", "Dana", details()) },
			pattern: `"kind":"cancelled".*Booking cancelled`,
		},
		{
			name: "rescheduled",
			send: func(s *Service) error {
				return s.SendRescheduled(context.Background(), "dana@example.com", "Dana", details(), time.Date(2026, 1, 4, 11, 0, 0, 0, time.UTC))
			},
			pattern: `"kind":"rescheduled".*Was: Sun Jan 4, 2026 11:00`,
		},
		{
			name:    "owner alert",
			send:    func(s *Service) error { return s.SendOwnerAlert(context.Background(), "owner@example.com", "New booking", "Dana", details()) },
			pattern: `"kind":"owner_alert".*\[BK-20260101-001\] New booking`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			mock.Regexp().ExpectLPush("emails", tt.pattern).SetVal(1)

			assert.NoError(t, tt.send(newTestService(db)))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBookingDetailsFormatting(t *testing.T) {
	d := details()
	assert.Equal(t, "Mon Jan 5, 2026, 09:00-10:00", when(d))
	assert.Equal(t, "Shine Detailing, Main bay", where(d))

	d.LocationName = ""
	assert.Equal(t, "Shine Detailing", where(d))
}

func TestProcessNext_Sends(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db)

	payload, _ := json.Marshal(EmailJob{Kind: KindConfirmed, To: "dana@example.com", Subject: "hi", Body: "body"})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(payload)})

	var sent []EmailJob
	svc.deliver = func(job EmailJob) error {
		sent = append(sent, job)
		return nil
	}

	svc.processNext(context.Background())

	require.Len(t, sent, 1)
	assert.Equal(t, "dana@example.com", sent[0].To)
	assert.Equal(t, 1, sent[0].Tries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_RequeuesOnFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db)

	payload, _ := json.Marshal(EmailJob{Kind: KindReminder, To: "dana@example.com", Tries: 1})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(payload)})
	mock.Regexp().ExpectLPush("emails", `"tries":2`).SetVal(1)

	svc.deliver = func(job EmailJob) error { return errors.New("smtp: connection refused") }

	svc.processNext(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_MovesToFailedQueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db)

	payload, _ := json.Marshal(EmailJob{Kind: KindReminder, To: "dana@example.com", Tries: maxTries - 1})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(payload)})
	mock.Regexp().ExpectLPush("emails:failed", `smtp: connection refused`).SetVal(1)

	svc.deliver = func(job EmailJob) error { return errors.New("smtp: connection refused") }

	svc.processNext(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_BadPayload(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db)

	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", "{not json"})

	called := false
	svc.deliver = func(job EmailJob) error {
		called = true
		return nil
	}

	svc.processNext(context.Background())
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectLLen("emails").SetVal(5)

	svc := newTestService(db)

	assert.Equal(t, int64(5), svc.QueueLength(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetErr(assert.AnError)

	svc := newTestService(db)

	err := svc.Send(ctx, "user@example.com", "User", "Hello", "Test body")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
