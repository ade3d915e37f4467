package middleware

import (
	"net/http"
	"net/url"

	"github.com/ai-navigator/navigator/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie holds the signed admin session token.
	SessionCookie = "nav_session"

	// AdminUserKey is the gin.Context key holding the logged-in admin's username.
	AdminUserKey = "admin_user"

	// LoginPath is where unauthenticated admin requests are sent.
	LoginPath = "/admin/login"
)

// AdminAuthMiddleware admits requests carrying a valid session cookie and
// redirects everything else to the login page, remembering the original path.
// An invalid or expired cookie is cleared.
func AdminAuthMiddleware(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err == nil && token != "" {
			claims, err := sessions.Validate(token)
			if err == nil {
				c.Set(AdminUserKey, claims.Username)
				c.Next()
				return
			}
			ClearSessionCookie(c)
		}

		target := LoginPath
		if c.Request.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// SetSessionCookie writes the session cookie. It is HttpOnly and SameSite=Strict,
// so no cross-site request (links included) reaches an admin GET route such as
// delete with the session attached. secure should be true whenever the site is
// served over TLS.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, maxAge, "/admin", "", secure, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, "", -1, "/admin", "", false, true)
}

// AdminUser returns the username set by AdminAuthMiddleware, or "".
func AdminUser(c *gin.Context) string {
	return c.GetString(AdminUserKey)
}
