package reminder

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/email"
	"slotbook/internal/logger"
	"slotbook/internal/metrics"
	"slotbook/internal/schedule"

	"github.com/robfig/cron/v3"
)

const DefaultWindow = 24 * time.Hour

type Store interface {
	ListDueReminders(ctx context.Context, from, to time.Time) ([]booking.Booking, error)
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}

type ProjectResolver interface {
	GetProject(ctx context.Context, id int64) (*schedule.Project, error)
	ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*schedule.Location, error)
}

type Mailer interface {
	SendReminder(ctx context.Context, to, name string, d email.BookingDetails) error
}

// Job emails customers whose booking starts within the next window.
type Job struct {
	store    Store
	projects ProjectResolver
	mail     Mailer
	window   time.Duration
	now      func() time.Time
}

func New(store Store, projects ProjectResolver, mail Mailer, window time.Duration) *Job {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Job{
		store:    store,
		projects: projects,
		mail:     mail,
		window:   window,
		now:      time.Now,
	}
}

// Start runs the job on the cron expression until ctx is done.
func (j *Job) Start(ctx context.Context, expr string) error {
	c := cron.New()
	if _, err := c.AddFunc(expr, func() {
		if _, err := j.Run(ctx); err != nil {
			logger.Error("reminder run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", expr, err)
	}

	c.Start()
	logger.Info("reminder scheduler started", "schedule", expr)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		logger.Info("reminder scheduler stopped")
	}()
	return nil
}

// Run sends every due reminder once and returns how many were sent.
func (j *Job) Run(ctx context.Context) (int, error) {
	now := j.now()
	due, err := j.store.ListDueReminders(ctx, now, now.Add(j.window))
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	projects := map[int64]*schedule.Project{}
	sent := 0
	for i := range due {
		b := &due[i]

		project, ok := projects[b.ProjectID]
		if !ok {
			project, err = j.projects.GetProject(ctx, b.ProjectID)
			if err != nil {
				logger.Warn("reminder skipped, project lookup failed", "booking_id", b.ID, "error", err)
				continue
			}
			projects[b.ProjectID] = project
		}

		// Claim first so a second worker never sends the same reminder.
		claimed, err := j.store.MarkReminderSent(ctx, b.ID)
		if err != nil {
			logger.Warn("reminder claim failed", "booking_id", b.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		if err := j.mail.SendReminder(ctx, b.CustomerEmail, b.CustomerName, j.details(ctx, project, b)); err != nil {
			metrics.RecordNotification("reminder", "error")
			logger.Error("reminder not sent", "booking_id", b.ID, "error", err)
			continue
		}
		metrics.RecordNotification("reminder", "ok")
		sent++
	}

	logger.Info("reminders processed", "due", len(due), "sent", sent)
	return sent, nil
}

func (j *Job) details(ctx context.Context, project *schedule.Project, b *booking.Booking) email.BookingDetails {
	tz, err := project.TZ()
	if err != nil {
		tz = time.UTC
	}

	d := email.BookingDetails{
		Reference:   b.ReferenceNumber,
		ProjectName: project.Name,
		When:        b.StartsAt(tz),
		Until:       b.EndsAt(tz),
		Total:       b.Total.StringFixed(2),
		PublicID:    b.PublicID,
	}
	if b.LocationID != nil {
		if loc, err := j.projects.ResolveLocation(ctx, project.ID, b.LocationID); err == nil {
			d.LocationName = loc.Name
		}
	}
	return d
}
