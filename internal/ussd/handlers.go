package ussd

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the carrier-facing USSD endpoint.
type Handler struct {
	machine *Machine
}

// NewHandler creates a new USSD handler.
func NewHandler(machine *Machine) *Handler {
	return &Handler{machine: machine}
}

// RegisterRoutes sets up the USSD route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ussd", h.HandleTurn)
}

type turnRequest struct {
	SessionID   string `form:"sessionId" json:"sessionId"`
	PhoneNumber string `form:"phoneNumber" json:"phoneNumber"`
	Text        string `form:"text" json:"text"`
}

// HandleTurn handles POST /ussd. Carrier gateways post form-encoded fields;
// JSON is accepted for testing.
func (h *Handler) HandleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "sessionId and phoneNumber are required",
		})
		return
	}
	if req.SessionID == "" || req.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "sessionId and phoneNumber are required",
		})
		return
	}

	reply, err := h.machine.Handle(c.Request.Context(), Turn{
		SessionID:   req.SessionID,
		PhoneNumber: req.PhoneNumber,
		Text:        req.Text,
		SourceIP:    c.ClientIP(),
	})
	if err != nil {
		// Nothing but the two-field reply crosses the carrier boundary.
		c.JSON(http.StatusOK, Reply{
			Response:    textServiceUnavail,
			KeepSession: false,
		})
		return
	}

	c.JSON(http.StatusOK, reply)
}
