package server

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"keplerhub/internal/auth"
	"keplerhub/internal/catalog"
	"keplerhub/internal/classifier"
	"keplerhub/internal/events"
	"keplerhub/internal/lightcurve"
	"keplerhub/internal/telemetry"
)

const maxPrewarmTargets = 50

// Deps is everything the HTTP surface needs. Optional parts may be nil:
// Classifier.Model (503 on inference), Telemetry (no /debug/metrics), DB
// (readiness skips the ping).
type Deps struct {
	Logger         zerolog.Logger
	Resolver       *lightcurve.Resolver
	Catalog        *catalog.Handler
	Classifier     *classifier.Handler
	Auth           *auth.Handler
	Hub            *events.Hub
	Jobs           *Jobs
	Telemetry      *telemetry.Provider
	DB             *sql.DB
	AllowedOrigins []string
	DefaultTargets []string
	// BaseContext bounds background jobs; defaults to context.Background.
	BaseContext context.Context
}

// Notifier forwards resolver events to the hub without blocking the
// resolve path.
func Notifier(hub *events.Hub) lightcurve.Notifier {
	return lightcurve.NotifierFunc(func(ev lightcurve.Event) {
		go hub.BroadcastJSON(ev)
	})
}

func NewRouter(d Deps) *gin.Engine {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}

	router := gin.New()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	var metrics *telemetry.Metrics
	if d.Telemetry != nil {
		metrics = d.Telemetry.Metrics
	}
	router.Use(gin.Recovery(), RequestID(), AccessLog(d.Logger.With().Str("component", "http").Logger(), metrics))
	router.Use(corsMiddleware(d.AllowedOrigins))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Backend running successfully"})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) { ready(c, d) })

	if d.Telemetry != nil {
		router.GET("/debug/metrics", gin.WrapH(d.Telemetry.Handler()))
	}

	if d.Hub != nil {
		router.GET("/ws", events.WSHandler(d.Hub, events.NewUpgrader(d.AllowedOrigins)))
	}

	root := router.Group("")
	if d.Catalog != nil {
		d.Catalog.RegisterRoutes(root)
	}
	if d.Classifier != nil {
		d.Classifier.RegisterRoutes(root)
	}
	if d.Resolver != nil {
		lightcurve.NewHandler(d.Resolver).RegisterRoutes(router.Group("/lightcurve"))
	}

	if d.Auth != nil {
		d.Auth.RegisterRoutes(router.Group("/auth"))

		if d.Jobs != nil {
			admin := router.Group("/admin")
			admin.Use(d.Auth.Middleware()...)
			admin.POST("/lightcurves/prewarm", prewarm(d))
			admin.GET("/jobs/:id", getJob(d.Jobs))
		}
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", HeaderRequestID},
		ExposeHeaders:    []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	return cors.New(cfg)
}

func ready(c *gin.Context, d Deps) {
	status := http.StatusOK
	body := gin.H{"status": "ready"}

	if d.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["catalog_error"] = err.Error()
		} else {
			body["catalog"] = "ok"
		}
	}

	if d.Resolver != nil {
		dir := d.Resolver.Config().CacheDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			status = http.StatusServiceUnavailable
			body["cache_error"] = err.Error()
		} else {
			body["cache_dir"] = dir
		}
	}

	if d.Classifier != nil {
		body["model"] = d.Classifier.Model != nil
	}
	if d.Hub != nil {
		body["ws_clients"] = d.Hub.Stats().WSClients
	}

	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	c.JSON(status, body)
}

type prewarmReq struct {
	Targets []string `json:"targets"`
}

func prewarm(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req prewarmReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
				return
			}
		}

		targets := make([]string, 0, len(req.Targets))
		for _, t := range req.Targets {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, t)
			}
		}
		if len(targets) == 0 {
			targets = d.DefaultTargets
		}
		if len(targets) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no targets"})
			return
		}
		if len(targets) > maxPrewarmTargets {
			c.JSON(http.StatusBadRequest, gin.H{"error": "too many targets"})
			return
		}

		job := d.Jobs.Start(d.BaseContext, targets)
		c.Header("Location", "/admin/jobs/"+job.ID)
		c.JSON(http.StatusAccepted, job)
	}
}

func getJob(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
