package handlers

import (
	"errors"
	"net/http"

	"thermostat_away/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errOverride        = "failed to apply override"
	errSync            = "calendar sync failed"
	errGetState        = "failed to load state"
	errGetSavings      = "failed to load savings"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for an override.
type overrideRequest struct {
	Away  bool     `json:"away"`
	Hours *float64 `json:"hours" binding:"required"`
}

// OverrideRequest is an exported model for Swagger docs of the override payload.
type OverrideRequest struct {
	// Away state to hold until the override expires
	Away bool `json:"away" example:"true"`
	// How long the override lasts, in hours (fractions allowed)
	Hours float64 `json:"hours" example:"2.5"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Apply a manual away/home override
// @Description  Holds the given away state for the given number of hours. Calendar automation is paused until the override expires.
// @Tags         thermostat
// @Accept       json
// @Produce      json
// @Param        body  body   OverrideRequest  true  "Override payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/thermostat/override [post]
// @Security     BearerAuth
func (h *Handler) override(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	st, err := h.services.Thermostat.Override(c.Request.Context(), h.accountID(c), req.Away, *req.Hours)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDuration):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errOverride, "override_failed", err, "away", req.Away)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "away": st.Away, "hours_away": *req.Hours, "state": st})
}

// @Summary      Reconcile with the calendar
// @Description  Re-reads upcoming calendar events and applies the resulting away state. While away, the thermostat tracks the outdoor temperature and savings accumulate.
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  service.SyncResult
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/thermostat/sync [get]
// @Security     BearerAuth
func (h *Handler) sync(c *gin.Context) {
	res, err := h.services.Thermostat.Sync(c.Request.Context(), h.accountID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		// calendar, weather or device upstream failed; state was left alone
		h.logAndJSONError(c, http.StatusBadGateway, errSync, "sync_failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Get away state
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/thermostat/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context(), h.accountID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Cumulative estimated energy savings
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  map[string]float64
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/thermostat/energy [get]
// @Security     BearerAuth
func (h *Handler) getSavedEnergy(c *gin.Context) {
	kwh, err := h.services.Thermostat.SavedEnergy(c.Request.Context(), h.accountID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSavings, "get_energy_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"energy_saved_kwh": kwh})
}

// @Summary      Cumulative estimated cost savings
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  map[string]float64
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/thermostat/cost [get]
// @Security     BearerAuth
func (h *Handler) getSavedCost(c *gin.Context) {
	cost, err := h.services.Thermostat.SavedCost(c.Request.Context(), h.accountID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSavings, "get_cost_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost_saved": cost})
}
