package availability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/logger"
	"slotbook/internal/schedule"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
	}
}

// @Summary      Bookable slots for a date
// @Description  Returns the free slots of a location on one date. A message explains days that are entirely unavailable.
// @Tags         availability
// @Produce      json
// @Param        projectID path int true "Project ID"
// @Param        date query string true "Date (YYYY-MM-DD)"
// @Param        location_id query int false "Location ID, defaults to the first active location"
// @Success      200 {object} availability.Result
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /projects/{projectID}/availability [get]
func (h *Handler) GetAvailability(c *gin.Context) {
	projectID, err := strconv.ParseInt(c.Param("projectID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "date is required"})
		return
	}

	var locationID *int64
	if raw := c.Query("location_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid location ID"})
			return
		}
		locationID = &id
	}

	res, err := h.service.ComputeAvailability(c.Request.Context(), projectID, locationID, date, h.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDate):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Date must be YYYY-MM-DD"})
		case errors.Is(err, schedule.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Project not found"})
		case errors.Is(err, schedule.ErrLocationNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Location not found"})
		default:
			logger.Error("availability failed", "project_id", projectID, "date", date, "error", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to compute availability"})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}
