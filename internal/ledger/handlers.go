package ledger

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for ledger queries.
type Handler struct {
	recorder *Recorder
}

// NewHandler creates a new ledger handler.
func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// RegisterRoutes sets up ledger routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ledger/:did/events", h.ListEvents)
}

// ListEvents handles GET /v1/ledger/:did/events
// Optional query params: type, from, to (RFC 3339), limit.
func (h *Handler) ListEvents(c *gin.Context) {
	q := Query{
		EventType: c.Query("type"),
		Limit:     50,
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "from must be RFC 3339",
			})
			return
		}
		q.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "to must be RFC 3339",
			})
			return
		}
		q.To = t
	}

	events, err := h.recorder.Query(c.Request.Context(), c.Param("did"), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
