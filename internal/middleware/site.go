package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys read by page templates through the handlers' base view data.
const (
	SiteTitleKey = "site_title"
	CopyrightKey = "copyright"
	YearKey      = "year"
)

// SiteContextMiddleware stores the values every page footer and header needs, so
// handlers do not each have to thread configuration through.
func SiteContextMiddleware(title, copyright string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(SiteTitleKey, title)
		c.Set(CopyrightKey, copyright)
		c.Set(YearKey, time.Now().Year())
		c.Next()
	}
}
