package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"slotbook/internal/auth"
	"slotbook/internal/availability"
	"slotbook/internal/booking"
	"slotbook/internal/config"
	"slotbook/internal/logger"
	"slotbook/internal/schedule"
	"slotbook/internal/slotlock"

	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers the router mounts. Nil handlers are skipped.
type Handlers struct {
	Availability *availability.Handler
	Bookings     *booking.Handler
	Schedule     *schedule.Handler
	SlotLocks    *slotlock.Handler
	Email        EmailSender
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	config *config.Config
}

func New(cfg *config.Config, h Handlers) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.POST("/auth/refresh", auth.RefreshHandler(cfg.JWTSecret))

	public := router.Group("/")
	if cfg.RateLimitRPS > 0 {
		public.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	{
		if h.Availability != nil {
			public.GET("/projects/:projectID/availability", h.Availability.GetAvailability)
		}
		if h.Bookings != nil {
			public.POST("/projects/:projectID/bookings", h.Bookings.CreateBooking)
			public.POST("/bookings/:publicID/cancel", h.Bookings.Cancel)
		}
		if h.SlotLocks != nil {
			public.POST("/slot-locks", h.SlotLocks.Lock)
			public.DELETE("/slot-locks", h.SlotLocks.Unlock)
			public.GET("/slot-locks", h.SlotLocks.Status)
		}
	}

	admin := router.Group("/admin")
	admin.Use(auth.AuthMiddleware(cfg.JWTSecret), auth.RequireRole(auth.RoleAdmin), AuditMiddleware())
	{
		if h.Bookings != nil {
			admin.GET("/bookings/:bookingID", h.Bookings.GetBooking)
			admin.PATCH("/bookings/:bookingID/status", h.Bookings.UpdateStatus)
			admin.POST("/bookings/:bookingID/reschedule", h.Bookings.Reschedule)
			admin.GET("/projects/:projectID/bookings", h.Bookings.ListBookings)
		}
		if h.Schedule != nil {
			admin.POST("/locations/:locationID/slots", h.Schedule.CreateTimeSlot)
			admin.POST("/locations/:locationID/blocked-dates", h.Schedule.CreateBlockedDate)
		}
		if h.Email != nil {
			admin.POST("/test-email", TestEmail(h.Email))
		}
	}

	return &Server{
		router: router,
		config: cfg,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Shutdown is not reported as an error.
func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
