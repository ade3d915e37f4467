// Package sites implements the read-only JSON API over the directory:
// listing and search, single sites, categories and avatar placeholders.
package sites

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ai-navigator/navigator/internal/avatar"
	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/telemetry"
	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// SiteResponse is a site plus the placeholder clients draw when it has no logo.
type SiteResponse struct {
	catalog.Site
	Avatar avatar.Placeholder `json:"avatar"`
}

func toResponse(s catalog.Site) SiteResponse {
	return SiteResponse{Site: s, Avatar: avatar.For(s.Name)}
}

// @Summary      List and search sites
// @Description  Case-insensitive search over name and description, optionally filtered by tag or category.
// @Tags         Sites
// @Produce      json
// @Param        q         query  string  false  "Search query"
// @Param        category  query  string  false  "Tag or category"
// @Param        limit     query  int     false  "Maximum results (default 100, max 500)"
// @Param        offset    query  int     false  "Offset for pagination"
// @Success      200  {object}  map[string]interface{}  "sites: [], total: n"
// @Router       /api/v1/sites [get]
// ListHandler implements GET /api/v1/sites?q=&category=&limit=&offset=
func ListHandler(dir *catalog.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		category := strings.TrimSpace(c.Query("category"))

		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
		if err != nil || limit < 1 || limit > maxLimit {
			limit = defaultLimit
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			offset = 0
		}

		var matched []catalog.Site
		if query == "" && category == "" {
			matched = dir.Sites()
		} else {
			telemetry.SearchesTotal.WithLabelValues("api").Inc()
			matched = dir.Search(query, category)
		}

		total := len(matched)
		page := []SiteResponse{}
		for i := offset; i < total && len(page) < limit; i++ {
			page = append(page, toResponse(matched[i]))
		}

		c.JSON(http.StatusOK, gin.H{
			"sites": page,
			"total": total,
			"meta": gin.H{
				"limit":  limit,
				"offset": offset,
			},
		})
	}
}

// @Summary      Get a site
// @Tags         Sites
// @Produce      json
// @Param        id  path  string  true  "Site id"
// @Success      200  {object}  SiteResponse
// @Failure      404  {object}  map[string]interface{}  "Site not found"
// @Router       /api/v1/sites/{id} [get]
// GetHandler implements GET /api/v1/sites/:id
func GetHandler(dir *catalog.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		site, ok := dir.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
			return
		}
		c.JSON(http.StatusOK, toResponse(site))
	}
}

// CategoriesHandler implements GET /api/v1/categories
func CategoriesHandler(dir *catalog.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories := dir.Categories()
		if categories == nil {
			categories = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

// AvatarHandler implements GET /api/v1/avatar?name=. A missing name yields
// the "?" placeholder.
func AvatarHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.AvatarRendersTotal.WithLabelValues("json").Inc()
		c.JSON(http.StatusOK, avatar.For(c.Query("name")))
	}
}
