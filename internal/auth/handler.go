package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Keys    KeyVerifier
	Tokens  TokenService
	Revoked *Revocations
}

func NewHandler(keys KeyVerifier, tokens TokenService, revoked *Revocations) *Handler {
	return &Handler{Keys: keys, Tokens: tokens, Revoked: revoked}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.token)
	rg.POST("/logout", AuthMiddleware(h.Tokens, h.Revoked), h.logout)
}

// Middleware guards admin routes.
func (h *Handler) Middleware() []gin.HandlerFunc {
	return []gin.HandlerFunc{AuthMiddleware(h.Tokens, h.Revoked), RequireRole(RoleAdmin)}
}

type tokenReq struct {
	Key string `json:"key"`
}

func (h *Handler) token(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key required"})
		return
	}

	if err := h.Keys.Verify(req.Key); err != nil {
		if errors.Is(err, ErrNoAdminKey) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin access disabled"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, claims, err := h.Tokens.Sign(RoleAdmin, RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_id":   claims.ID,
		"expires_at": claims.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if h.Revoked != nil {
		h.Revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
