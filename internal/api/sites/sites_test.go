package sites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const catalogJSON = `[
  {"id": "chatgpt", "name": "ChatGPT", "url": "https://chat.openai.com", "description": "Conversational assistant", "tags": ["Chat"], "rating": 4.8, "featured": true},
  {"id": "claude", "name": "Claude", "url": "https://claude.ai", "description": "Conversational assistant", "tags": ["Chat", "Writing"]},
  {"id": "midjourney", "name": "Midjourney", "url": "https://midjourney.com", "description": "Image generation", "category": "Image"}
]`

type listResponse struct {
	Sites []SiteResponse `json:"sites"`
	Total int            `json:"total"`
	Meta  struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"meta"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))
	dir, err := catalog.NewDirectory(context.Background(), catalog.NewFileRepository(path))
	require.NoError(t, err)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/sites", ListHandler(dir))
	v1.GET("/sites/:id", GetHandler(dir))
	v1.GET("/categories", CategoriesHandler(dir))
	v1.GET("/avatar", AvatarHandler())
	return r
}

func getJSON(t *testing.T, r *gin.Engine, target string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, vec.WithLabelValues(label).Write(&m))
	return m.GetCounter().GetValue()
}

// ---------------------------------------------------------------------------
// ListHandler
// ---------------------------------------------------------------------------

func TestList_All(t *testing.T) {
	r := newTestRouter(t)

	var resp listResponse
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/sites", &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Sites, 3)
	assert.Equal(t, defaultLimit, resp.Meta.Limit)

	for _, s := range resp.Sites {
		if s.ID == "chatgpt" {
			assert.Equal(t, "#8fe467", s.Avatar.Color)
			assert.Equal(t, "Ch", s.Avatar.Initials)
			assert.InDelta(t, 4.8, s.Rating, 0.001)
		}
	}
}

func TestList_Search(t *testing.T) {
	r := newTestRouter(t)
	before := counterValue(t, telemetry.SearchesTotal, "api")

	var resp listResponse
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/sites?q=conversational&category=writing", &resp))
	require.Len(t, resp.Sites, 1)
	assert.Equal(t, "claude", resp.Sites[0].ID)
	assert.Equal(t, 1, resp.Total)

	assert.Equal(t, 1.0, counterValue(t, telemetry.SearchesTotal, "api")-before)
}

func TestList_ExplicitCategory(t *testing.T) {
	r := newTestRouter(t)

	var resp listResponse
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/sites?category=Image", &resp))
	require.Len(t, resp.Sites, 1)
	assert.Equal(t, "midjourney", resp.Sites[0].ID)
}

func TestList_NoMatchIsEmptyArray(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sites?q=zzz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sites":[]`)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestList_Pagination(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name       string
		query      string
		wantLen    int
		wantLimit  int
		wantOffset int
	}{
		{"limit 2", "?limit=2", 2, 2, 0},
		{"offset past middle", "?limit=2&offset=2", 1, 2, 2},
		{"offset past end", "?offset=10", 0, defaultLimit, 10},
		{"invalid limit falls back", "?limit=0", 3, defaultLimit, 0},
		{"limit above max falls back", "?limit=100000", 3, defaultLimit, 0},
		{"negative offset", "?offset=-1", 3, defaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp listResponse
			require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/sites"+tt.query, &resp))
			assert.Len(t, resp.Sites, tt.wantLen)
			assert.Equal(t, 3, resp.Total)
			assert.Equal(t, tt.wantLimit, resp.Meta.Limit)
			assert.Equal(t, tt.wantOffset, resp.Meta.Offset)
		})
	}
}

// ---------------------------------------------------------------------------
// GetHandler / CategoriesHandler / AvatarHandler
// ---------------------------------------------------------------------------

func TestGet(t *testing.T) {
	r := newTestRouter(t)

	var site SiteResponse
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/sites/claude", &site))
	assert.Equal(t, "Claude", site.Name)
	assert.Equal(t, "https://claude.ai", site.URL)
	assert.Equal(t, "Cl", site.Avatar.Initials)

	assert.Equal(t, http.StatusNotFound, getJSON(t, r, "/api/v1/sites/nope", nil))
}

func TestCategories(t *testing.T) {
	r := newTestRouter(t)

	var resp struct {
		Categories []string `json:"categories"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/categories", &resp))
	assert.Equal(t, []string{"Chat", "Image", "Writing"}, resp.Categories)
}

func TestAvatar(t *testing.T) {
	r := newTestRouter(t)
	before := counterValue(t, telemetry.AvatarRendersTotal, "json")

	tests := []struct {
		query    string
		color    string
		initials string
	}{
		{"?name=GitHub", "#e46793", "Gi"},
		{"?name=ChatGPT", "#8fe467", "Ch"},
		{"", "#e46767", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var resp struct {
				Color    string `json:"color"`
				Initials string `json:"initials"`
			}
			require.Equal(t, http.StatusOK, getJSON(t, r, "/api/v1/avatar"+tt.query, &resp))
			assert.Equal(t, tt.color, resp.Color)
			assert.Equal(t, tt.initials, resp.Initials)
		})
	}

	assert.Equal(t, 3.0, counterValue(t, telemetry.AvatarRendersTotal, "json")-before)
}
