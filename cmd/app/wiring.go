package main

import (
	"context"
	"fmt"

	"slotbook/internal/availability"
	"slotbook/internal/booking"
	"slotbook/internal/calendar"
	"slotbook/internal/config"
	"slotbook/internal/db"
	"slotbook/internal/logger"
	"slotbook/internal/schedule"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// deps holds the shared infrastructure every command builds on.
type deps struct {
	cfg   *config.Config
	db    *sqlx.DB
	redis *redis.Client

	calendar *calendar.Client
	busy     *calendar.Provider

	scheduleRepo schedule.Repository
	schedule     schedule.Service
	bookings     booking.Repository
	availability availability.Service
}

func openDeps(ctx context.Context) (*deps, error) {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	d := &deps{cfg: cfg, db: database, redis: rdb}

	if cfg.CalendarAPIURL != "" {
		d.calendar = calendar.NewClient(cfg.CalendarAPIURL, cfg.CalendarAPIToken, cfg.CalendarTimeout)
		d.busy = calendar.NewProvider(d.calendar, rdb, cfg.BusyCacheTTL, cfg.CalendarTimeout)
	} else {
		logger.Warn("CALENDAR_API_URL not set, external busy intervals and calendar sync disabled")
	}

	d.scheduleRepo = schedule.NewRepository(database)
	d.schedule = schedule.NewService(d.scheduleRepo)
	d.bookings = booking.NewRepository(database)

	var busy availability.BusyProvider
	if d.busy != nil {
		busy = d.busy
	}
	d.availability = availability.NewService(d.schedule, d.scheduleRepo, d.bookings, busy)

	return d, nil
}

func (d *deps) Close() {
	if err := d.redis.Close(); err != nil {
		logger.Warn("Failed to close redis client", "error", err)
	}
	if err := d.db.Close(); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}
