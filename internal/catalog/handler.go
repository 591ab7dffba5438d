package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"keplerhub/pkg/models"
)

type Handler struct {
	Repo      *Repo
	Analytics models.Analytics
}

func NewHandler(repo *Repo, analytics models.Analytics) *Handler {
	return &Handler{Repo: repo, Analytics: analytics}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/kepler-candidates", h.candidates) // GET /kepler-candidates?offset=0&limit=20
	rg.GET("/analytics", h.analytics)
}

func (h *Handler) candidates(c *gin.Context) {
	offset := parseInt(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	limit := parseInt(c.Query("limit"), DefaultLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	total, err := h.Repo.CountCandidates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.ListCandidates(c.Request.Context(), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        items,
		"total_count": total,
		"offset":      offset,
		"limit":       limit,
	})
}

func (h *Handler) analytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Analytics)
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
