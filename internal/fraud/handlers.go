package fraud

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for fraud scores.
type Handler struct {
	scorer *Scorer
}

// NewHandler creates a new fraud handler.
func NewHandler(scorer *Scorer) *Handler {
	return &Handler{scorer: scorer}
}

// RegisterRoutes sets up fraud routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/fraud/:did/score", h.GetScore)
	r.POST("/fraud/:did/assess", h.Assess)
}

// GetScore handles GET /v1/fraud/:did/score
func (h *Handler) GetScore(c *gin.Context) {
	score, err := h.scorer.Latest(c.Request.Context(), c.Param("did"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"did":   c.Param("did"),
		"score": score,
	})
}

// Assess handles POST /v1/fraud/:did/assess
func (h *Handler) Assess(c *gin.Context) {
	assessment, err := h.scorer.Assess(c.Request.Context(), c.Param("did"), c.ClientIP())
	if err != nil {
		switch err {
		case ErrSubjectNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No user found for this DID",
			})
		case ErrExternalScoringUnavailable:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "scoring_unavailable",
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}
