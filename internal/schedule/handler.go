package schedule

import (
	"errors"
	"net/http"
	"strconv"

	"slotbook/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// @Summary      Create a time slot
// @Description  Admin-only: add a recurring weekly slot to a location
// @Tags         admin,locations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        locationID path int true "Location ID"
// @Param        request body schedule.CreateTimeSlotRequest true "Time slot payload"
// @Success      201 {object} schedule.TimeSlot
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/locations/{locationID}/slots [post]
func (h *Handler) CreateTimeSlot(c *gin.Context) {
	locationID, err := strconv.ParseInt(c.Param("locationID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid location ID"})
		return
	}

	var req CreateTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}

	slot, err := h.service.CreateTimeSlot(c.Request.Context(), locationID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrLocationNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Location not found"})
		case errors.Is(err, ErrTimeSlotInvalid):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid time slot data"})
		case errors.Is(err, ErrTimeSlotExists):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "A time slot already starts at this time"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create time slot"})
		}
		return
	}

	c.JSON(http.StatusCreated, slot)
}

// @Summary      Block a date
// @Description  Admin-only: exclude a calendar date from booking on a location
// @Tags         admin,locations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        locationID path int true "Location ID"
// @Param        request body schedule.CreateBlockedDateRequest true "Blocked date payload"
// @Success      201 {object} schedule.BlockedDate
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/locations/{locationID}/blocked-dates [post]
func (h *Handler) CreateBlockedDate(c *gin.Context) {
	locationID, err := strconv.ParseInt(c.Param("locationID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid location ID"})
		return
	}

	var req CreateBlockedDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}

	blocked, err := h.service.CreateBlockedDate(c.Request.Context(), locationID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrLocationNotFound), errors.Is(err, ErrProjectNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Location not found"})
		case errors.Is(err, ErrDateInvalid):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Date must be YYYY-MM-DD"})
		case errors.Is(err, ErrDateBlocked):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Date is already blocked"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to block date"})
		}
		return
	}

	c.JSON(http.StatusCreated, blocked)
}
