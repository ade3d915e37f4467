// sites.go implements the dashboard and the site management pages.
package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/middleware"
	"github.com/ai-navigator/navigator/internal/storage"
	"github.com/ai-navigator/navigator/internal/telemetry"
	"github.com/ai-navigator/navigator/internal/web"
	"github.com/gin-gonic/gin"
)

// flashes are the notices shown on the site list after a redirect.
var flashes = map[string]string{
	"added":   "Site added.",
	"updated": "Site updated.",
	"deleted": "Site deleted.",
}

// SitesHandler manages listings through the directory
type SitesHandler struct {
	dir   *catalog.Directory
	logos storage.Storage
}

// NewSitesHandler creates the handler. logos may be nil, which disables
// uploads; logo URLs can still be entered by hand.
func NewSitesHandler(dir *catalog.Directory, logos storage.Storage) *SitesHandler {
	return &SitesHandler{dir: dir, logos: logos}
}

// Dashboard implements GET /admin/
func (h *SitesHandler) Dashboard(c *gin.Context) {
	web.Render(c, http.StatusOK, "admin_dashboard.html", gin.H{
		"Title": "Dashboard",
		"Stats": h.dir.Stats(),
	})
}

// List implements GET /admin/sites
func (h *SitesHandler) List(c *gin.Context) {
	web.Render(c, http.StatusOK, "admin_sites.html", gin.H{
		"Title": "Sites",
		"Sites": h.dir.Sites(),
		"Flash": flashes[c.Query("flash")],
	})
}

// AddForm implements GET /admin/sites/add
func (h *SitesHandler) AddForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, "Add a site", "/admin/sites/add", catalog.Site{}, nil)
}

// Add implements POST /admin/sites/add
func (h *SitesHandler) Add(c *gin.Context) {
	const action = "/admin/sites/add"
	ctx := c.Request.Context()

	site, err := siteFromForm(c)
	if err != nil {
		h.renderForm(c, http.StatusBadRequest, "Add a site", action, site, err)
		return
	}

	uploaded, err := h.uploadLogo(c, site.Name)
	if err != nil {
		h.renderForm(c, statusFor(err), "Add a site", action, site, err)
		return
	}
	if uploaded != "" {
		site.Logo = uploaded
	}

	created, err := h.dir.Add(ctx, site)
	if err != nil {
		if uploaded != "" {
			discardLogo(ctx, h.logos, uploaded)
		}
		h.renderForm(c, statusFor(err), "Add a site", action, site, err)
		return
	}

	telemetry.CatalogSites.Set(float64(h.dir.Len()))
	slog.Info("site added", "id", created.ID, "admin", middleware.AdminUser(c))
	c.Redirect(http.StatusFound, "/admin/sites?flash=added")
}

// EditForm implements GET /admin/sites/edit/:id
func (h *SitesHandler) EditForm(c *gin.Context) {
	site, ok := h.dir.Get(c.Param("id"))
	if !ok {
		web.RenderError(c, http.StatusNotFound, "That site is not in the directory.")
		return
	}
	h.renderForm(c, http.StatusOK, "Edit "+site.Name, "/admin/sites/edit/"+site.ID, site, nil)
}

// Edit implements POST /admin/sites/edit/:id
func (h *SitesHandler) Edit(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	existing, ok := h.dir.Get(id)
	if !ok {
		web.RenderError(c, http.StatusNotFound, "That site is not in the directory.")
		return
	}
	title := "Edit " + existing.Name
	action := "/admin/sites/edit/" + id

	site, err := siteFromForm(c)
	if err != nil {
		h.renderForm(c, http.StatusBadRequest, title, action, site, err)
		return
	}

	uploaded, err := h.uploadLogo(c, site.Name)
	if err != nil {
		h.renderForm(c, statusFor(err), title, action, site, err)
		return
	}
	if uploaded != "" {
		site.Logo = uploaded
	}

	updated, err := h.dir.Edit(ctx, id, site)
	if err != nil {
		if uploaded != "" && uploaded != existing.Logo {
			discardLogo(ctx, h.logos, uploaded)
		}
		if errors.Is(err, catalog.ErrNotFound) {
			web.RenderError(c, http.StatusNotFound, "That site is not in the directory.")
			return
		}
		h.renderForm(c, statusFor(err), title, action, site, err)
		return
	}

	if existing.Logo != updated.Logo {
		discardLogo(ctx, h.logos, existing.Logo)
	}
	slog.Info("site updated", "id", id, "admin", middleware.AdminUser(c))
	c.Redirect(http.StatusFound, "/admin/sites?flash=updated")
}

// Delete implements GET /admin/sites/delete/:id
func (h *SitesHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	existing, ok := h.dir.Get(id)
	if !ok {
		web.RenderError(c, http.StatusNotFound, "That site is not in the directory.")
		return
	}

	if err := h.dir.Remove(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			web.RenderError(c, http.StatusNotFound, "That site is not in the directory.")
			return
		}
		slog.Error("failed to delete site", "id", id, "error", err)
		web.RenderError(c, http.StatusInternalServerError, "The site could not be deleted.")
		return
	}

	discardLogo(ctx, h.logos, existing.Logo)
	telemetry.CatalogSites.Set(float64(h.dir.Len()))
	slog.Info("site deleted", "id", id, "admin", middleware.AdminUser(c))
	c.Redirect(http.StatusFound, "/admin/sites?flash=deleted")
}

// uploadLogo stores the optional logo_file field. It returns "" when no file
// was sent.
func (h *SitesHandler) uploadLogo(c *gin.Context, siteName string) (string, error) {
	fh, err := c.FormFile("logo_file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", fmt.Errorf("%w: unreadable upload", catalog.ErrInvalid)
	}
	return storeLogo(c.Request.Context(), h.logos, siteName, fh)
}

func (h *SitesHandler) renderForm(c *gin.Context, status int, title, action string, site catalog.Site, err error) {
	data := gin.H{
		"Title":  title,
		"Action": action,
		"Site":   site,
	}
	if err != nil {
		data["Error"] = formMessage(err)
		if status >= http.StatusInternalServerError {
			slog.Error("failed to save site", "action", action, "error", err)
		}
	}
	web.Render(c, status, "admin_form.html", data)
}

// siteFromForm reads the editable fields. A malformed rating is reported
// after the other fields are filled so the form can be shown again intact.
func siteFromForm(c *gin.Context) (catalog.Site, error) {
	site := catalog.Site{
		Name:        c.PostForm("name"),
		URL:         c.PostForm("url"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Logo:        strings.TrimSpace(c.PostForm("logo")),
		Tags:        splitTags(c.PostForm("tags")),
		Featured:    c.PostForm("featured") != "",
	}

	if raw := strings.TrimSpace(c.PostForm("rating")); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return site, fmt.Errorf("%w: rating must be a number", catalog.ErrInvalid)
		}
		site.Rating = rating
	}
	return site, nil
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, errNoLogoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// formMessage turns an error into text for the form. Internal errors are not
// echoed to the page.
func formMessage(err error) string {
	switch {
	case errors.Is(err, catalog.ErrInvalid), errors.Is(err, catalog.ErrDuplicate), errors.Is(err, errNoLogoStore):
		return err.Error()
	default:
		return "The site could not be saved. Please try again."
	}
}
