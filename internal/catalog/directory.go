package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// Stats summarises the directory for the admin dashboard.
type Stats struct {
	Sites      int
	Categories int
	Featured   int
	Visits     int64
}

// Directory is the in-memory view of the catalog that request handlers read.
// Reads never touch the repository; writes go to the repository first and update
// the view only once they succeed.
type Directory struct {
	repo Repository
	now  func() time.Time

	mu    sync.RWMutex
	sites []Site
}

// NewDirectory loads the catalog from repo.
func NewDirectory(ctx context.Context, repo Repository) (*Directory, error) {
	d := &Directory{repo: repo, now: time.Now}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload replaces the view with the repository's current contents.
func (d *Directory) Reload(ctx context.Context) error {
	sites, err := d.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	d.mu.Lock()
	d.sites = sites
	d.mu.Unlock()
	return nil
}

// Sites returns a copy of every listing in catalog order.
func (d *Directory) Sites() []Site {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneSites(d.sites)
}

// Len returns the number of listings.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sites)
}

// Get returns the listing with the given id.
func (d *Directory) Get(id string) (Site, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := indexOf(d.sites, id)
	if i < 0 {
		return Site{}, false
	}
	return cloneSite(d.sites[i]), true
}

// Search returns listings whose name or description contains query, restricted
// to category when it is non-empty. Matching is case-insensitive under Unicode
// case folding. An empty query matches everything.
func (d *Directory) Search(query, category string) []Site {
	// A Caser is stateful; each search gets its own.
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	category = strings.TrimSpace(category)

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]Site, 0)
	for i := range d.sites {
		s := &d.sites[i]
		if category != "" && !s.InCategory(category) {
			continue
		}
		if q != "" &&
			!strings.Contains(fold.String(s.Name), q) &&
			!strings.Contains(fold.String(s.Description), q) {
			continue
		}
		results = append(results, cloneSite(*s))
	}
	return results
}

// Categories returns every tag and explicit category in use, sorted and unique.
func (d *Directory) Categories() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, s := range d.sites {
		add(s.Category)
		for _, t := range s.Tags {
			add(t)
		}
	}
	sort.Strings(out)
	return out
}

// Featured returns the listings flagged as featured.
func (d *Directory) Featured() []Site {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Site
	for _, s := range d.sites {
		if s.Featured {
			out = append(out, cloneSite(s))
		}
	}
	return out
}

// Stats returns listing, category, featured and visit totals.
func (d *Directory) Stats() Stats {
	categories := len(d.Categories())

	d.mu.RLock()
	defer d.mu.RUnlock()
	st := Stats{Sites: len(d.sites), Categories: categories}
	for _, s := range d.sites {
		if s.Featured {
			st.Featured++
		}
		st.Visits += s.Visits
	}
	return st
}

// Add validates and stores a new listing. The id is derived from the name and
// made unique; visits start at zero.
func (d *Directory) Add(ctx context.Context, site Site) (Site, error) {
	site.Normalize()
	site.Visits = 0
	if err := site.Validate(); err != nil {
		return Site{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	site.ID = UniqueSlug(site.Name, func(id string) bool { return indexOf(d.sites, id) >= 0 })
	site.CreatedAt = d.now().UTC()
	if err := d.repo.Create(ctx, &site); err != nil {
		return Site{}, err
	}
	d.sites = append(d.sites, site)
	return cloneSite(site), nil
}

// Edit replaces the editable fields of an existing listing. The id, creation
// time and visit count are preserved.
func (d *Directory) Edit(ctx context.Context, id string, site Site) (Site, error) {
	site.Normalize()
	if err := site.Validate(); err != nil {
		return Site{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	i := indexOf(d.sites, id)
	if i < 0 {
		return Site{}, ErrNotFound
	}
	site.ID = id
	site.CreatedAt = d.sites[i].CreatedAt
	site.Visits = d.sites[i].Visits
	if err := d.repo.Update(ctx, &site); err != nil {
		return Site{}, err
	}
	d.sites[i] = site
	return cloneSite(site), nil
}

// Remove deletes a listing.
func (d *Directory) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := indexOf(d.sites, id)
	if i < 0 {
		return ErrNotFound
	}
	if err := d.repo.Delete(ctx, id); err != nil {
		return err
	}
	d.sites = slices.Delete(d.sites, i, i+1)
	return nil
}

// bumpVisits adds n to the cached visit count without touching the repository.
func (d *Directory) bumpVisits(id string, n int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := indexOf(d.sites, id)
	if i < 0 {
		return false
	}
	d.sites[i].Visits += n
	return true
}

func cloneSite(s Site) Site {
	s.Tags = slices.Clone(s.Tags)
	return s
}

func cloneSites(in []Site) []Site {
	out := make([]Site, len(in))
	for i, s := range in {
		out[i] = cloneSite(s)
	}
	return out
}
