package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileDocument is the on-disk layout. Files holding a bare JSON array of sites are
// accepted on read; writes always use the wrapped form.
type fileDocument struct {
	Sites []Site `json:"sites"`
}

// FileRepository keeps the catalog in a single JSON file. Every mutation rewrites
// the whole file through a temp file and rename, so readers (including the file
// watcher) never observe a half-written document.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository backed by the JSON file at path.
// A missing file is treated as an empty catalog and created on first write.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file path.
func (r *FileRepository) Path() string {
	return r.path
}

// List returns every site in file order.
func (r *FileRepository) List(ctx context.Context) ([]Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Get returns the site with the given id.
func (r *FileRepository) Get(ctx context.Context, id string) (*Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sites, err := r.read()
	if err != nil {
		return nil, err
	}
	i := indexOf(sites, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return &sites[i], nil
}

// Create appends a site.
func (r *FileRepository) Create(ctx context.Context, site *Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sites, err := r.read()
	if err != nil {
		return err
	}
	if indexOf(sites, site.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, site.ID)
	}
	return r.write(append(sites, *site))
}

// Update replaces the editable fields of the stored site with the same id.
func (r *FileRepository) Update(ctx context.Context, site *Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sites, err := r.read()
	if err != nil {
		return err
	}
	i := indexOf(sites, site.ID)
	if i < 0 {
		return ErrNotFound
	}
	updated := *site
	updated.Visits = sites[i].Visits
	updated.CreatedAt = sites[i].CreatedAt
	sites[i] = updated
	return r.write(sites)
}

// Delete removes the site with the given id.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sites, err := r.read()
	if err != nil {
		return err
	}
	i := indexOf(sites, id)
	if i < 0 {
		return ErrNotFound
	}
	return r.write(append(sites[:i], sites[i+1:]...))
}

// IncrementVisits adds n to a site's visit count.
func (r *FileRepository) IncrementVisits(ctx context.Context, id string, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sites, err := r.read()
	if err != nil {
		return err
	}
	i := indexOf(sites, id)
	if i < 0 {
		return ErrNotFound
	}
	sites[i].Visits += n
	return r.write(sites)
}

func (r *FileRepository) read() ([]Site, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Site{}, nil
		}
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	sites, err := decodeSites(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", r.path, err)
	}

	// Older catalogs carry no ids; derive them from names.
	taken := make(map[string]bool, len(sites))
	for i := range sites {
		if sites[i].ID != "" {
			taken[sites[i].ID] = true
		}
	}
	for i := range sites {
		if sites[i].ID == "" {
			sites[i].ID = UniqueSlug(sites[i].Name, func(id string) bool { return taken[id] })
			taken[sites[i].ID] = true
		}
	}
	return sites, nil
}

func decodeSites(data []byte) ([]Site, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Site{}, nil
	}
	if data[0] == '[' {
		var sites []Site
		if err := json.Unmarshal(data, &sites); err != nil {
			return nil, err
		}
		return sites, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Sites == nil {
		doc.Sites = []Site{}
	}
	return doc.Sites, nil
}

func (r *FileRepository) write(sites []Site) error {
	data, err := json.MarshalIndent(fileDocument{Sites: sites}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog file: %w", err)
	}
	return nil
}

func indexOf(sites []Site, id string) int {
	for i := range sites {
		if sites[i].ID == id {
			return i
		}
	}
	return -1
}
