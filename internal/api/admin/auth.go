// auth.go implements the admin login form, its image captcha and logout.
package admin

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ai-navigator/navigator/internal/auth"
	"github.com/ai-navigator/navigator/internal/middleware"
	"github.com/ai-navigator/navigator/internal/web"
	"github.com/gin-gonic/gin"
)

// CaptchaCookie holds the signed hash of the current captcha answer.
const CaptchaCookie = "nav_captcha"

// defaultLanding is where a login without a usable ?next= ends up.
const defaultLanding = "/admin/"

// AuthHandlers serves login, captcha and logout for the single admin account
type AuthHandlers struct {
	credentials auth.Credentials
	sessions    *auth.SessionManager
	secure      bool
}

// NewAuthHandlers creates the handlers. secure marks cookies Secure and should
// be set whenever the site is served over HTTPS.
func NewAuthHandlers(credentials auth.Credentials, sessions *auth.SessionManager, secure bool) *AuthHandlers {
	return &AuthHandlers{
		credentials: credentials,
		sessions:    sessions,
		secure:      secure,
	}
}

// safeNext keeps redirects inside the admin area.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return defaultLanding
	}
	if strings.HasPrefix(next, middleware.LoginPath) {
		return defaultLanding
	}
	return next
}

// LoginPage implements GET /admin/login
func (h *AuthHandlers) LoginPage(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		if _, err := h.sessions.Validate(token); err == nil {
			c.Redirect(http.StatusFound, safeNext(c.Query("next")))
			return
		}
	}

	web.Render(c, http.StatusOK, "admin_login.html", gin.H{
		"Title": "Sign in",
		"Next":  c.Query("next"),
	})
}

// Login implements POST /admin/login. The captcha is checked before the
// password and is single use: its cookie is cleared on every attempt.
func (h *AuthHandlers) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := c.PostForm("next")

	captchaToken, _ := c.Cookie(CaptchaCookie)
	h.clearCaptcha(c)

	fail := func(msg string) {
		web.Render(c, http.StatusUnauthorized, "admin_login.html", gin.H{
			"Title":    "Sign in",
			"Error":    msg,
			"Next":     next,
			"Username": username,
		})
	}

	if !h.sessions.VerifyCaptcha(captchaToken, c.PostForm("captcha")) {
		fail("The verification code is wrong or has expired.")
		return
	}
	if !h.credentials.Verify(username, password) {
		slog.Warn("admin login failed", "username", username, "ip", c.ClientIP())
		fail("Invalid username or password.")
		return
	}

	token, err := h.sessions.Issue(h.credentials.Username)
	if err != nil {
		slog.Error("failed to issue admin session", "error", err)
		web.RenderError(c, http.StatusInternalServerError, "Could not start a session.")
		return
	}

	slog.Info("admin logged in", "username", h.credentials.Username, "ip", c.ClientIP())
	middleware.SetSessionCookie(c, token, int(h.sessions.TTL().Seconds()), h.secure)
	c.Redirect(http.StatusFound, safeNext(next))
}

// Captcha implements GET /admin/captcha: a fresh PNG plus a cookie carrying
// the hashed answer.
func (h *AuthHandlers) Captcha(c *gin.Context) {
	code, err := auth.NewCaptchaCode()
	if err != nil {
		slog.Error("failed to generate captcha", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	token, err := h.sessions.IssueCaptcha(code)
	if err != nil {
		slog.Error("failed to sign captcha", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := auth.RenderCaptcha(&buf, code); err != nil {
		slog.Error("failed to render captcha", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CaptchaCookie, token, int(auth.CaptchaTTL.Seconds()), "/admin", "", h.secure, true)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// Logout implements GET /admin/logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandlers) clearCaptcha(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CaptchaCookie, "", -1, "/admin", "", h.secure, true)
}
