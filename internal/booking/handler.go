package booking

import (
	"errors"
	"net/http"
	"strconv"

	"slotbook/internal/api"
	"slotbook/internal/logger"

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

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrProjectNotFound),
		errors.Is(err, ErrLocationNotFound),
		errors.Is(err, ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotFull):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// respondError maps booking errors onto HTTP. Anything that is not a *Error is
// an infrastructure failure and is hidden behind a generic message.
func respondError(c *gin.Context, err error, fallback string) {
	var bookingErr *Error
	if !errors.As(err, &bookingErr) {
		logger.Error(fallback, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
		return
	}

	resp := api.ErrorResponse{Error: bookingErr.Message}
	if bookingErr.EarliestAt != nil || bookingErr.MinimumAmount != nil {
		resp.Details = map[string]interface{}{}
		if bookingErr.EarliestAt != nil {
			resp.Details["earliest_at"] = bookingErr.EarliestAt
		}
		if bookingErr.MinimumAmount != nil {
			resp.Details["minimum_amount"] = bookingErr.MinimumAmount.StringFixed(2)
		}
	}
	c.JSON(statusFor(err), resp)
}

func parseID(c *gin.Context, param, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid " + label + " ID"})
		return 0, false
	}
	return id, true
}

// @Summary      Create a booking
// @Description  Reserves a slot. The capacity check and the insert are atomic per slot.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        projectID path int true "Project ID"
// @Param        request body booking.CreateBookingRequest true "Booking payload"
// @Success      201 {object} booking.Booking
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /projects/{projectID}/bookings [post]
func (h *Handler) CreateBooking(c *gin.Context) {
	projectID, ok := parseID(c, "projectID", "project")
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}
	req.ProjectID = projectID

	b, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create booking")
		return
	}

	c.JSON(http.StatusCreated, b)
}

// @Summary      Cancel a booking
// @Description  Customer-facing cancellation by the booking's public id
// @Tags         bookings
// @Produce      json
// @Param        publicID path string true "Booking public ID"
// @Success      200 {object} booking.Booking
// @Failure      404 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Router       /bookings/{publicID}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	b, err := h.service.Cancel(c.Request.Context(), c.Param("publicID"))
	if err != nil {
		respondError(c, err, "Failed to cancel booking")
		return
	}

	c.JSON(http.StatusOK, b)
}

// @Summary      Get a booking
// @Tags         admin,bookings
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Success      200 {object} booking.Booking
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/bookings/{bookingID} [get]
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "bookingID", "booking")
	if !ok {
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get booking")
		return
	}

	c.JSON(http.StatusOK, b)
}

// @Summary      List bookings of a day
// @Tags         admin,bookings
// @Produce      json
// @Security     BearerAuth
// @Param        projectID path int true "Project ID"
// @Param        date query string true "Date (YYYY-MM-DD)"
// @Success      200 {array} booking.Booking
// @Failure      404 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Router       /admin/projects/{projectID}/bookings [get]
func (h *Handler) ListBookings(c *gin.Context) {
	projectID, ok := parseID(c, "projectID", "project")
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "date is required"})
		return
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), projectID, date)
	if err != nil {
		respondError(c, err, "Failed to list bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// @Summary      Change booking status
// @Description  pending -> confirmed|cancelled|completed, confirmed -> completed|cancelled, cancelled -> pending|confirmed
// @Tags         admin,bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Param        request body booking.UpdateStatusRequest true "New status"
// @Success      200 {object} booking.Booking
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Router       /admin/bookings/{bookingID}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "bookingID", "booking")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}

	b, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err, "Failed to update booking")
		return
	}

	c.JSON(http.StatusOK, b)
}

// @Summary      Reschedule a booking
// @Tags         admin,bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Param        request body booking.RescheduleRequest true "New slot"
// @Success      200 {object} booking.Booking
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Router       /admin/bookings/{bookingID}/reschedule [post]
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := parseID(c, "bookingID", "booking")
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}

	b, err := h.service.Reschedule(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, "Failed to reschedule booking")
		return
	}

	c.JSON(http.StatusOK, b)
}
