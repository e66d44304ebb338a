package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Session status
// @Description  Current feed session state, counters and last error.
// @Tags         session
// @Produce      json
// @Success      200  {object}  models.SessionStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/session [get]
// @Security     BearerAuth
func (h *Handler) getSession(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		if h.log != nil {
			h.log.Errorw("session_status_failed", "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session status"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Latest record
// @Description  The most recent observation record, as a flat packet.
// @Tags         records
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/records/latest [get]
// @Security     BearerAuth
func (h *Handler) getLatestRecord(c *gin.Context) {
	rec, ok := h.services.Monitoring.Latest(c.Request.Context())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no record received yet"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
