package classifier

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// FeatureInfo describes the inputs /predict understands.
type FeatureInfo struct {
	FeatureColumns   []string           `json:"feature_columns"`
	FeatureMedians   map[string]float64 `json:"feature_medians"`
	FPFlagFeatures   []string           `json:"fpflag_features"`
	PhysicalFeatures []string           `json:"physical_features"`
}

func (m *Model) Info() FeatureInfo {
	medians := make(map[string]float64, len(m.FeatureColumns))
	for _, col := range m.FeatureColumns {
		medians[col] = m.FeatureMedians[col]
	}
	return FeatureInfo{
		FeatureColumns:   m.FeatureColumns,
		FeatureMedians:   medians,
		FPFlagFeatures:   nonNil(m.FPFlagFeatures()),
		PhysicalFeatures: nonNil(m.PhysicalFeatures()),
	}
}

// Handler serves the model endpoints. A nil Model answers 503 on the
// inference routes; /metrics only needs MetricsPath.
type Handler struct {
	Model       *Model
	MetricsPath string
}

func NewHandler(m *Model, metricsPath string) *Handler {
	return &Handler{Model: m, MetricsPath: metricsPath}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/feature-info", h.featureInfo)
	rg.POST("/predict", h.predict)
	rg.POST("/explain", h.explain)
	rg.GET("/metrics", h.metrics) // training metrics, not Prometheus
}

type predictRequest struct {
	Features Features `json:"features"`
}

func (h *Handler) featureInfo(c *gin.Context) {
	if h.Model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}
	c.JSON(http.StatusOK, h.Model.Info())
}

func (h *Handler) predict(c *gin.Context) {
	if h.Model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}

	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	p, err := h.Model.Predict(req.Features)
	if err != nil {
		if errors.Is(err, ErrInvalidFeature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) explain(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": Explain(req)})
}

func (h *Handler) metrics(c *gin.Context) {
	b, err := os.ReadFile(h.MetricsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Metrics file not found. Please run training script first."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read metrics failed"})
		return
	}
	if !json.Valid(b) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics file is not valid json"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
