package lightcurve

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Resolver *Resolver
}

func NewHandler(r *Resolver) *Handler {
	return &Handler{Resolver: r}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.get)           // GET /lightcurve?target=Kepler-22
	rg.GET("/meta", h.metadata) // GET /lightcurve/meta?target=Kepler-22
}

func (h *Handler) get(c *gin.Context) {
	path, err := h.Resolver.Resolve(c.Request.Context(), c.Query("target"))
	if err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}

func (h *Handler) metadata(c *gin.Context) {
	path, err := h.Resolver.Resolve(c.Request.Context(), c.Query("target"))
	if err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	target, _ := Validate(c.Query("target"))
	c.JSON(http.StatusOK, gin.H{
		"target": target,
		"file":   filepath.Base(path),
	})
}

// StatusFor maps resolve failures onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, ErrFetchTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUnexpectedFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
