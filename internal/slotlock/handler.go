package slotlock

import (
	"net/http"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/logger"
	"slotbook/internal/schedule"

	"github.com/gin-gonic/gin"
)

type LockRequest struct {
	LocationID int64  `json:"location_id" form:"location_id" binding:"required"`
	Date       string `json:"date" form:"date" binding:"required"`
	StartTime  string `json:"start_time" form:"start_time" binding:"required"`
	SessionID  string `json:"session_id" form:"session_id" binding:"required"`
}

type LockResponse struct {
	Locked    bool      `json:"locked"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type StatusResponse struct {
	Locked bool `json:"locked"`
}

func (r LockRequest) key() (string, error) {
	date, err := time.Parse(schedule.DateLayout, r.Date)
	if err != nil {
		return "", err
	}
	start, err := schedule.ParseClock(r.StartTime)
	if err != nil {
		return "", err
	}
	return Key(r.LocationID, date, start), nil
}

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// @Summary      Hold a slot during checkout
// @Tags         slot-locks
// @Accept       json
// @Produce      json
// @Param        request body slotlock.LockRequest true "Slot and session"
// @Success      200 {object} slotlock.LockResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      409 {object} slotlock.LockResponse
// @Router       /slot-locks [post]
func (h *Handler) Lock(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	key, err := req.key()
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date or start time"})
		return
	}

	ok, err := h.store.Lock(c.Request.Context(), key, req.SessionID, 0)
	if err != nil {
		logger.Error("slot lock failed", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to lock slot"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, LockResponse{Locked: false})
		return
	}

	c.JSON(http.StatusOK, LockResponse{Locked: true, ExpiresAt: time.Now().Add(h.store.defaultTTL).UTC()})
}

// @Summary      Release a checkout hold
// @Tags         slot-locks
// @Accept       json
// @Produce      json
// @Param        request body slotlock.LockRequest true "Slot and session"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Router       /slot-locks [delete]
func (h *Handler) Unlock(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	key, err := req.key()
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date or start time"})
		return
	}

	ok, err := h.store.Unlock(c.Request.Context(), key, req.SessionID)
	if err != nil {
		logger.Error("slot unlock failed", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to release slot"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Slot is not held by this session"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Slot released"})
}

// @Summary      Check whether another session holds a slot
// @Tags         slot-locks
// @Produce      json
// @Param        location_id query int true "Location ID"
// @Param        date query string true "Date (YYYY-MM-DD)"
// @Param        start_time query string true "Start time (HH:MM)"
// @Param        session_id query string true "Caller session"
// @Success      200 {object} slotlock.StatusResponse
// @Failure      400 {object} api.ErrorResponse
// @Router       /slot-locks [get]
func (h *Handler) Status(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	key, err := req.key()
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date or start time"})
		return
	}

	locked, err := h.store.IsLocked(c.Request.Context(), key, req.SessionID)
	if err != nil {
		logger.Error("slot lock check failed", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to check slot"})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Locked: locked})
}
