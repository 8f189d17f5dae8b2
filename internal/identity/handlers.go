package identity

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payflex/payflex/internal/idgen"
)

// Handler provides HTTP endpoints for identity operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up identity routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.RegisterUser)
	r.GET("/users/:did", h.GetUser)
	r.GET("/users/:did/balance", h.GetBalance)
	r.GET("/aliases/:alias", h.ResolveAlias)
}

// RegisterUser handles POST /v1/users
func (h *Handler) RegisterUser(c *gin.Context) {
	var req struct {
		PhoneNumber string  `json:"phoneNumber" binding:"required"`
		Name        string  `json:"name"`
		Balance     float64 `json:"balance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "phoneNumber is required",
		})
		return
	}

	now := time.Now()
	u := &User{
		DID:         idgen.DID(),
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Balance:     req.Balance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.service.Register(c.Request.Context(), u); err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if err == ErrUserExists {
			status = http.StatusConflict
			code = "already_exists"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// GetUser handles GET /v1/users/:did
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.service.GetByDID(c.Request.Context(), c.Param("did"))
	if err != nil {
		if err == ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No user found for this DID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u})
}

// GetBalance handles GET /v1/users/:did/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.Param("did"))
	if err != nil {
		if err == ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No user found for this DID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"did":     c.Param("did"),
		"balance": balance,
	})
}

// ResolveAlias handles GET /v1/aliases/:alias
func (h *Handler) ResolveAlias(c *gin.Context) {
	did, err := h.service.Resolve(c.Request.Context(), c.Param("alias"))
	if err != nil {
		if err == ErrAliasNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Alias is not registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alias": c.Param("alias"),
		"did":   did,
	})
}
