package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapeworker/api/handler"
	"github.com/use-agent/scrapeworker/api/middleware"
	"github.com/use-agent/scrapeworker/config"
	"github.com/use-agent/scrapeworker/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware
// (spec.md §6).
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Scrape/job routes: Auth (if AUTH_TOKEN set) → RateLimit
//
// Health endpoints sit outside auth so monitoring probes always work.
func NewRouter(mgr *jobs.Manager, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/healthz", handler.Health(mgr))
	r.GET("/health", handler.Health(mgr))

	protected := r.Group("")
	protected.Use(middleware.Auth(cfg.Auth.Token))
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/v1/scrape", handler.Scrape(mgr))
	protected.POST("/scrape", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/v1/scrape")
	})

	protected.GET("/v1/scrape/:jobId", handler.GetJob(mgr))
	protected.DELETE("/v1/scrape/:jobId", handler.DeleteJob(mgr))
	protected.GET("/scrape/:jobId", handler.GetJob(mgr))
	protected.DELETE("/scrape/:jobId", handler.DeleteJob(mgr))

	return r
}
