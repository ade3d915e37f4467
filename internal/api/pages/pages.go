// Package pages serves the public HTML directory: the home page, search, the
// /go/:id click-through, avatar placeholders and stored logos.
package pages

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ai-navigator/navigator/internal/avatar"
	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/storage"
	"github.com/ai-navigator/navigator/internal/telemetry"
	"github.com/ai-navigator/navigator/internal/web"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// logoURLTTL is how long a pre-signed logo URL stays valid.
const logoURLTTL = time.Hour

// VisitRecorder counts click-throughs.
type VisitRecorder interface {
	Record(id string) bool
}

// Handler serves the public pages.
type Handler struct {
	dir        *catalog.Directory
	visits     VisitRecorder
	logos      storage.Storage
	avatarSize int
}

// NewHandler creates a pages handler. logos may be nil, in which case
// /logos/* answers 404.
func NewHandler(dir *catalog.Directory, visits VisitRecorder, logos storage.Storage, avatarSize int) *Handler {
	return &Handler{
		dir:        dir,
		visits:     visits,
		logos:      logos,
		avatarSize: avatar.NormalizeSize(avatarSize),
	}
}

// Home renders every listing with the featured strip on top.
func (h *Handler) Home(c *gin.Context) {
	web.Render(c, http.StatusOK, "index.html", gin.H{
		"Sites":            h.dir.Sites(),
		"Featured":         h.dir.Featured(),
		"Categories":       h.dir.Categories(),
		"Query":            "",
		"SelectedCategory": "",
	})
}

// Search filters by ?q= and ?category=.
func (h *Handler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	category := strings.TrimSpace(c.Query("category"))
	telemetry.SearchesTotal.WithLabelValues("page").Inc()

	web.Render(c, http.StatusOK, "index.html", gin.H{
		"Title":            query,
		"Sites":            h.dir.Search(query, category),
		"Categories":       h.dir.Categories(),
		"Query":            query,
		"SelectedCategory": category,
	})
}

// Visit counts a click-through and redirects to the site.
func (h *Handler) Visit(c *gin.Context) {
	site, ok := h.dir.Get(c.Param("id"))
	if !ok {
		web.RenderError(c, http.StatusNotFound, "That site is not in the directory.")
		return
	}

	if h.visits != nil && h.visits.Record(site.ID) {
		telemetry.SiteVisitsTotal.Inc()
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, site.URL)
}

// Avatar renders the SVG placeholder for /avatar/:name. The name may end in
// .svg; ?size= overrides the configured size.
func (h *Handler) Avatar(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("name"), ".svg")

	size := h.avatarSize
	if s := c.Query("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = avatar.NormalizeSize(n)
		}
	}

	etag := avatar.ETag(name, size)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}

	telemetry.AvatarRendersTotal.WithLabelValues("svg").Inc()
	c.Data(http.StatusOK, "image/svg+xml", avatar.SVG(name, size))
}

// Logo serves an uploaded logo. Backends with their own URLs (S3) get a
// redirect to a pre-signed URL; the local backend is streamed.
func (h *Handler) Logo(c *gin.Context) {
	if h.logos == nil {
		c.Status(http.StatusNotFound)
		return
	}

	key := strings.TrimPrefix(path.Clean("/"+c.Param("path")), "/")
	if key == "" {
		c.Status(http.StatusNotFound)
		return
	}
	ctx := c.Request.Context()

	url, err := h.logos.GetURL(ctx, key, logoURLTTL)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, url)
		return
	case errors.Is(err, storage.ErrNotFound):
		c.Status(http.StatusNotFound)
		return
	case !errors.Is(err, storage.ErrNoURL):
		slog.Error("failed to resolve logo url", "path", key, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rc, err := h.logos.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		slog.Error("failed to open logo", "path", key, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, sniffLen)
	head, _ := br.Peek(sniffLen)

	c.DataFromReader(http.StatusOK, -1, mimetype.Detect(head).String(), br, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

// sniffLen is how much of a logo mimetype inspects.
const sniffLen = 3072
