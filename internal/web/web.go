// Package web embeds the HTML templates and static assets and renders pages
// with the values SiteContextMiddleware puts on every request.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"strings"

	"github.com/ai-navigator/navigator/internal/avatar"
	"github.com/ai-navigator/navigator/internal/middleware"
	"github.com/gin-gonic/gin"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Funcs are available to every template.
var Funcs = template.FuncMap{
	"avatar":    avatar.For,
	"textColor": avatar.TextColor,
	"avatarURL": AvatarURL,
	"join":      strings.Join,
	"rating": func(r float64) string {
		return fmt.Sprintf("%.1f", r)
	},
	"selected": func(a, b string) bool {
		return strings.EqualFold(a, b)
	},
}

// Templates parses every embedded template. Names are the file base names
// (index.html, admin_sites.html, ...).
func Templates() (*template.Template, error) {
	t, err := template.New("").Funcs(Funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return t, nil
}

// Static returns the asset tree served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// the directory is embedded at compile time
		panic(err)
	}
	return sub
}

// AvatarURL is the /avatar route for a display name.
func AvatarURL(name string) string {
	return "/avatar/" + url.PathEscape(name) + ".svg"
}

// Render writes the named template with data plus the site title, copyright
// and year.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["SiteTitle"] = c.GetString(middleware.SiteTitleKey)
	data["Copyright"] = c.GetString(middleware.CopyrightKey)
	data["Year"] = c.GetInt(middleware.YearKey)
	if user := middleware.AdminUser(c); user != "" {
		data["AdminUser"] = user
	}
	c.HTML(status, name, data)
}

// RenderError writes error.html with the status and message.
func RenderError(c *gin.Context, status int, message string) {
	Render(c, status, "error.html", gin.H{
		"Title":   fmt.Sprintf("%d", status),
		"Status":  status,
		"Message": message,
	})
}
