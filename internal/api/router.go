// Package api wires the HTTP surface: public pages, the JSON API, the admin
// area and the health endpoints.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ai-navigator/navigator/internal/api/admin"
	"github.com/ai-navigator/navigator/internal/api/pages"
	"github.com/ai-navigator/navigator/internal/api/sites"
	"github.com/ai-navigator/navigator/internal/auth"
	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/config"
	"github.com/ai-navigator/navigator/internal/middleware"
	"github.com/ai-navigator/navigator/internal/storage"
	"github.com/ai-navigator/navigator/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Version is reported by /version. It is overridden at link time.
var Version = "dev"

// Dependencies are the long-lived objects the handlers share.
type Dependencies struct {
	Directory *catalog.Directory
	Visits    pages.VisitRecorder
	// Logos may be nil, which disables logo uploads and /logos/*.
	Logos storage.Storage
	// DB is set only for the postgres catalog.
	DB *sql.DB
}

// BackgroundServices holds references to goroutines started by NewRouter so
// they can be stopped during graceful shutdown.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices, error) {
	if deps.Directory == nil {
		return nil, nil, fmt.Errorf("router requires a directory")
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, nil, err
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	bg := &BackgroundServices{}

	tls := cfg.Security.TLS.Enabled
	secureCookies := tls || strings.HasPrefix(cfg.Server.BaseURL, "https://")

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware("/healthz", "/ready"))
	router.Use(middleware.SiteContextMiddleware(cfg.Site.Title, cfg.Site.Copyright))

	router.GET("/healthz", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Logos))
	router.GET("/version", versionHandler())

	// Public pages
	site := router.Group("/")
	site.Use(middleware.SecurityHeadersMiddleware(middleware.SiteSecurityHeadersConfig(tls)))
	{
		h := pages.NewHandler(deps.Directory, deps.Visits, deps.Logos, cfg.Avatar.Size)
		site.GET("/", h.Home)
		site.GET("/search", h.Search)
		site.GET("/go/:id", h.Visit)
		site.GET("/avatar/:name", h.Avatar)
		site.GET("/logos/*path", h.Logo)
		site.StaticFS("/static", http.FS(web.Static()))
	}

	// JSON API
	v1 := router.Group("/api/v1")
	v1.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(tls)))
	{
		v1.GET("/sites", sites.ListHandler(deps.Directory))
		v1.GET("/sites/:id", sites.GetHandler(deps.Directory))
		v1.GET("/categories", sites.CategoriesHandler(deps.Directory))
		v1.GET("/avatar", sites.AvatarHandler())
	}

	if !cfg.Admin.Enabled() {
		slog.Info("admin area disabled: no admin credentials configured")
		return router, bg, nil
	}

	sessions := auth.NewSessionManager(cfg.Admin.SessionSecret, cfg.Admin.SessionTTL)
	credentials := auth.Credentials{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		Password:     cfg.Admin.Password,
	}
	if credentials.PasswordHash == "" {
		slog.Warn("admin password is configured in plain text; set admin.password_hash instead")
	}

	clock := clockwork.NewRealClock()
	loginLimiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig(cfg.Admin.LoginAttemptsPerMinute), clock)
	uploadLimiter := middleware.NewRateLimiter(middleware.UploadRateLimitConfig(), clock)
	bg.rateLimiters = append(bg.rateLimiters, loginLimiter, uploadLimiter)

	authHandlers := admin.NewAuthHandlers(credentials, sessions, secureCookies)
	sitesHandler := admin.NewSitesHandler(deps.Directory, deps.Logos)

	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.SecurityHeadersMiddleware(middleware.SiteSecurityHeadersConfig(tls)))
	{
		adminGroup.GET("/login", authHandlers.LoginPage)
		adminGroup.POST("/login", middleware.RateLimitMiddleware(loginLimiter), authHandlers.Login)
		adminGroup.GET("/captcha", authHandlers.Captcha)
		adminGroup.GET("/logout", authHandlers.Logout)

		protected := adminGroup.Group("")
		protected.Use(middleware.AdminAuthMiddleware(sessions))
		{
			protected.GET("/", sitesHandler.Dashboard)
			protected.GET("/sites", sitesHandler.List)
			protected.GET("/sites/add", sitesHandler.AddForm)
			protected.POST("/sites/add", middleware.RateLimitMiddleware(uploadLimiter), sitesHandler.Add)
			protected.GET("/sites/edit/:id", sitesHandler.EditForm)
			protected.POST("/sites/edit/:id", middleware.RateLimitMiddleware(uploadLimiter), sitesHandler.Edit)
			protected.GET("/sites/delete/:id", sitesHandler.Delete)
		}
	}

	slog.Info("admin area enabled", "username", cfg.Admin.Username)
	return router, bg, nil
}

// @Summary      Health check
// @Description  Liveness probe. Pings the database when the postgres catalog is in use.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy"
// @Router       /healthz [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the logo store when configured.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks: {...}"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: ..."
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
func readinessHandler(db *sql.DB, logos storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				checks["database"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "database not ready",
				})
				return
			}
			checks["database"] = "healthy"
		}

		// Exists on an absent key exercises credentials and connectivity
		// without writing anything.
		if logos != nil {
			if _, err := logos.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
				checks["storage"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "storage backend not ready",
				})
				return
			}
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the build and API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
