package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_booking_status_changes_total",
			Help: "Booking status transitions",
		},
		[]string{"from", "to"},
	)

	AvailabilityRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_availability_requests_total",
			Help: "Availability computations by result",
		},
		[]string{"result"},
	)

	BusyCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_busy_cache_total",
			Help: "Busy interval cache lookups",
		},
		[]string{"result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_notifications_total",
			Help: "Post-commit notifications by channel and status",
		},
		[]string{"channel", "status"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	QueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slotbook_queue_length",
			Help: "Current length of background delivery queues",
		},
		[]string{"queue"},
	)

	SlotLocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbook_slot_locks_total",
			Help: "Soft slot lock attempts by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordBooking counts a CreateBooking attempt: "created", "slot_full", "rejected" or "error".
func RecordBooking(outcome string) {
	BookingsTotal.WithLabelValues(outcome).Inc()
}

func RecordStatusChange(from, to string) {
	BookingStatusChangesTotal.WithLabelValues(from, to).Inc()
}

func RecordAvailability(result string) {
	AvailabilityRequestsTotal.WithLabelValues(result).Inc()
}

func RecordBusyCache(result string) {
	BusyCacheTotal.WithLabelValues(result).Inc()
}

func RecordNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func SetQueueLength(queue string, n int64) {
	QueueLength.WithLabelValues(queue).Set(float64(n))
}

func RecordSlotLock(result string) {
	SlotLocksTotal.WithLabelValues(result).Inc()
}
