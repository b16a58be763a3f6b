package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/logger"
	"slotbook/internal/metrics"
	"slotbook/internal/schedule"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL = 2 * time.Minute
	DefaultTimeout  = 3 * time.Second
)

type BusySource interface {
	FetchBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]Period, error)
}

// Provider serves busy intervals for a location's day, cached in a Redis hash
// per (location, date) with one field per timezone.
type Provider struct {
	source  BusySource
	redis   *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewProvider(source BusySource, rdb *redis.Client, ttl, timeout time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Provider{
		source:  source,
		redis:   rdb,
		ttl:     ttl,
		timeout: timeout,
	}
}

func cacheKey(locationID int64, date time.Time) string {
	return fmt.Sprintf("busy:%d:%s", locationID, date.Format(schedule.DateLayout))
}

// GetBusyIntervals never fails: a slow or broken calendar yields no intervals.
func (p *Provider) GetBusyIntervals(ctx context.Context, location *schedule.Location, date time.Time, tz *time.Location) []schedule.Interval {
	if p == nil || p.source == nil || location == nil || location.CalendarRef == nil || *location.CalendarRef == "" {
		return nil
	}

	key := cacheKey(location.ID, date)
	field := tz.String()

	if p.redis != nil {
		cached, err := p.redis.HGet(ctx, key, field).Result()
		switch {
		case err == nil:
			var intervals []schedule.Interval
			if err := json.Unmarshal([]byte(cached), &intervals); err == nil {
				metrics.RecordBusyCache("hit")
				return intervals
			}
		case !errors.Is(err, redis.Nil):
			logger.Warn("busy cache read failed", "key", key, "error", err)
		}
	}
	metrics.RecordBusyCache("miss")

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, tz)
	dayEnd := dayStart.AddDate(0, 0, 1)

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	periods, err := p.source.FetchBusy(fetchCtx, *location.CalendarRef, dayStart, dayEnd)
	if err != nil {
		logger.Warn("busy interval fetch failed, assuming free", "location_id", location.ID, "error", err)
		return nil
	}

	intervals := ClipToDay(periods, dayStart, dayEnd)

	if p.redis != nil {
		data, err := json.Marshal(intervals)
		if err == nil {
			if err := p.redis.HSet(ctx, key, field, string(data)).Err(); err != nil {
				logger.Warn("busy cache write failed", "key", key, "error", err)
			} else {
				p.redis.Expire(ctx, key, p.ttl)
			}
		}
	}

	return intervals
}

// InvalidateCache drops every timezone variant cached for (location, date).
func (p *Provider) InvalidateCache(ctx context.Context, locationID int64, date time.Time) {
	if p == nil || p.redis == nil {
		return
	}
	if err := p.redis.Del(ctx, cacheKey(locationID, date)).Err(); err != nil {
		logger.Warn("busy cache invalidation failed", "location_id", locationID, "error", err)
	}
}

// ClipToDay converts absolute periods to wall-clock intervals on [dayStart, dayEnd).
// A period running past midnight ends at 24:00.
func ClipToDay(periods []Period, dayStart, dayEnd time.Time) []schedule.Interval {
	intervals := make([]schedule.Interval, 0, len(periods))
	tz := dayStart.Location()

	for _, period := range periods {
		if !period.End.After(dayStart) || !period.Start.Before(dayEnd) || !period.End.After(period.Start) {
			continue
		}

		start := schedule.Clock(0)
		if period.Start.After(dayStart) {
			start = schedule.ClockOf(period.Start.In(tz))
		}
		end := schedule.NewClock(24, 0)
		if period.End.Before(dayEnd) {
			local := period.End.In(tz)
			end = schedule.ClockOf(local)
			if local.Second() > 0 || local.Nanosecond() > 0 {
				end++
			}
		}

		intervals = append(intervals, schedule.Interval{Start: start, End: end})
	}

	return intervals
}
