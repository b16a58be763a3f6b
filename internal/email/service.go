package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"slotbook/internal/logger"
	"slotbook/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
)

const (
	KindReceived    = "received"
	KindConfirmed   = "confirmed"
	KindCancelled   = "cancelled"
	KindRescheduled = "rescheduled"
	KindReminder    = "reminder"
	KindOwnerAlert  = "owner_alert"
)

type EmailJob struct {
	Kind    string    `json:"kind"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// BookingDetails is what every booking email renders. When is already in the
// project's timezone.
type BookingDetails struct {
	Reference    string
	ProjectName  string
	LocationName string
	When         time.Time
	Until        time.Time
	Total        string
	PublicID     string
}

type Service struct {
	redis      *redis.Client
	from       string
	fromName   string
	smtpHost   string
	smtpPort   string
	smtpUser   string
	smtpPass   string
	retryDelay time.Duration
	deliver    func(EmailJob) error
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass string, rdb *redis.Client) *Service {
	s := &Service{
		redis:      rdb,
		from:       fromEmail,
		fromName:   fromName,
		smtpHost:   smtpHost,
		smtpPort:   smtpPort,
		smtpUser:   smtpUser,
		smtpPass:   smtpPass,
		retryDelay: 5 * time.Second,
	}
	s.deliver = s.sendNow
	return s
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	return s.enqueue(ctx, EmailJob{To: to, Name: name, Subject: subject, Body: body})
}

func (s *Service) enqueue(ctx context.Context, job EmailJob) error {
	job.Tries = 0
	job.Created = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		logger.Error("failed to marshal email job", "error", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Error("failed to queue email", "to", job.To, "kind", job.Kind, "error", err)
		metrics.RecordEmail(job.Kind, "queue_error")
		return err
	}

	logger.Info("email queued", "to", job.To, "kind", job.Kind, "subject", job.Subject)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad email payload", "error", err)
		return
	}

	job.Tries++
	if err := s.deliver(job); err != nil {
		logger.Error("failed to send email", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			time.Sleep(s.retryDelay)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.WithoutCancel(ctx), queueKey, string(data))
			metrics.RecordEmail(job.Kind, "retry")
		} else {
			s.saveFailed(context.WithoutCancel(ctx), job, err)
			metrics.RecordEmail(job.Kind, "failed")
		}
		return
	}

	metrics.RecordEmail(job.Kind, "sent")
	logger.Info("email sent", "to", job.To, "kind", job.Kind)
}

func (s *Service) sendNow(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n"
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(ctx context.Context, job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(ctx, failedQueueKey, string(data))
	logger.Error("email moved to failed queue", "to", job.To, "kind", job.Kind)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.SetQueueLength(queueKey, length)
	return length
}

func when(d BookingDetails) string {
	return fmt.Sprintf("%s, %s-%s", d.When.Format("Mon Jan 2, 2006"), d.When.Format("15:04"), d.Until.Format("15:04"))
}

func where(d BookingDetails) string {
	if d.LocationName == "" {
		return d.ProjectName
	}
	return d.ProjectName + ", " + d.LocationName
}

func (s *Service) SendBookingReceived(ctx context.Context, to, name string, d BookingDetails) error {
	body := fmt.Sprintf(`Hi %s,

We received your booking and will confirm it shortly.

Reference: %s
When: %s
Where: %s
Total: %s

- %s`, name, d.Reference, when(d), where(d), d.Total, d.ProjectName)

	return s.enqueue(ctx, EmailJob{Kind: KindReceived, To: to, Name: name, Subject: "Booking received - " + d.Reference, Body: body})
}

func (s *Service) SendBookingConfirmation(ctx context.Context, to, name string, d BookingDetails) error {
	body := fmt.Sprintf(`Hi %s,

Your booking is confirmed!

Reference: %s
When: %s
Where: %s

See you soon!

- %s`, name, d.Reference, when(d), where(d), d.ProjectName)

	return s.enqueue(ctx, EmailJob{Kind: KindConfirmed, To: to, Name: name, Subject: "Booking confirmed - " + d.Reference, Body: body})
}

func (s *Service) SendReminder(ctx context.Context, to, name string, d BookingDetails) error {
	body := fmt.Sprintf(`Hi %s,

This is a reminder about your upcoming booking:

Reference: %s
When: %s
Where: %s

See you soon!

- %s`, name, d.Reference, when(d), where(d), d.ProjectName)

	return s.enqueue(ctx, EmailJob{Kind: KindReminder, To: to, Name: name, Subject: "Reminder: your booking on " + d.When.Format("Jan 2"), Body: body})
}

func (s *Service) SendCancellation(ctx context.Context, to, name string, d BookingDetails) error {
	body := fmt.Sprintf(`Hi %s,

Your booking has been cancelled:

Reference: %s
When: %s

- %s`, name, d.Reference, when(d), d.ProjectName)

	return s.enqueue(ctx, EmailJob{Kind: KindCancelled, To: to, Name: name, Subject: "Booking cancelled - " + d.Reference, Body: body})
}

func (s *Service) SendRescheduled(ctx context.Context, to, name string, d BookingDetails, previous time.Time) error {
	body := fmt.Sprintf(`Hi %s,

Your booking has been moved.

Reference: %s
Was: %s
Now: %s
Where: %s

- %s`, name, d.Reference, previous.Format("Mon Jan 2, 2006 15:04"), when(d), where(d), d.ProjectName)

	return s.enqueue(ctx, EmailJob{Kind: KindRescheduled, To: to, Name: name, Subject: "Booking rescheduled - " + d.Reference, Body: body})
}

// SendOwnerAlert tells the project owner about a booking event.
func (s *Service) SendOwnerAlert(ctx context.Context, to, event, customer string, d BookingDetails) error {
	body := fmt.Sprintf(`%s

Customer: %s
Reference: %s
When: %s
Where: %s
Total: %s`, event, customer, d.Reference, when(d), where(d), d.Total)

	return s.enqueue(ctx, EmailJob{Kind: KindOwnerAlert, To: to, Subject: fmt.Sprintf("[%s] %s", d.Reference, event), Body: body})
}
