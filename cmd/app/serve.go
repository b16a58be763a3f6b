package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/booking"
	"slotbook/internal/catalog"
	"slotbook/internal/db"
	"slotbook/internal/email"
	"slotbook/internal/logger"
	"slotbook/internal/notify"
	"slotbook/internal/promo"
	"slotbook/internal/reminder"
	"slotbook/internal/schedule"
	"slotbook/internal/server"
	"slotbook/internal/slotlock"
	"slotbook/internal/sms"
	"slotbook/internal/webhook"

	"github.com/spf13/cobra"
)

const (
	webhookTimeout  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
	queueGaugeEvery = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, notification workers and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()
			logger.Info("Starting slotbook", "port", d.cfg.Port)

			if migrateUp {
				if err := db.RunMigrations(d.db, d.cfg.MigrationsPath); err != nil {
					return err
				}
				logger.Info("Migrations completed")
			}

			cfg := d.cfg
			mailer := email.New(cfg.EmailFrom, cfg.EmailFromName, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, d.redis)
			webhooks := webhook.NewQueue(d.redis, webhookTimeout)
			texts := sms.NewSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
			if !texts.Enabled() {
				logger.Info("Twilio not configured, SMS notifications disabled")
			}

			notifyDeps := notify.Deps{
				Webhooks: webhooks,
				Mail:     mailer,
				SMS:      texts,
				Store:    d.bookings,
			}
			if d.calendar != nil {
				notifyDeps.Calendar = d.calendar
				notifyDeps.Cache = d.busy
			}
			dispatcher := notify.NewDispatcher(notifyDeps)

			bookings := booking.NewService(
				d.bookings,
				d.schedule,
				d.scheduleRepo,
				catalog.NewRepository(d.db),
				promo.NewService(promo.NewRepository(d.db)),
				dispatcher,
			)

			workers, cancelWorkers := context.WithCancel(context.Background())
			defer cancelWorkers()

			go mailer.Start(workers)
			go webhooks.Start(workers)
			go reportQueueLengths(workers, mailer, webhooks)

			reminders := reminder.New(d.bookings, d.schedule, mailer, reminder.DefaultWindow)
			if err := reminders.Start(workers, cfg.ReminderSchedule); err != nil {
				return err
			}

			srv := server.New(cfg, server.Handlers{
				Availability: availability.NewHandler(d.availability),
				Bookings:     booking.NewHandler(bookings),
				Schedule:     schedule.NewHandler(d.schedule),
				SlotLocks:    slotlock.NewHandler(slotlock.NewStore(d.redis, cfg.SlotLockTTL)),
				Email:        mailer,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			case err := <-errCh:
				if err != nil {
					logger.Error("Server error", "error", err)
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during server shutdown", "error", err)
			}

			// Deliveries already dispatched still enqueue into Redis, so drain them before stopping workers.
			dispatcher.Wait()
			cancelWorkers()

			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}

type queueReporter interface {
	QueueLength(ctx context.Context) int64
}

func reportQueueLengths(ctx context.Context, queues ...queueReporter) {
	ticker := time.NewTicker(queueGaugeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, q := range queues {
				q.QueueLength(ctx)
			}
		}
	}
}
