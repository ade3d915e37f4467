// Package catalog holds the directory's site listings: the Site model, the
// Repository implementations that persist them (a JSON file or PostgreSQL), and the
// in-memory Directory that pages and the JSON API read from.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no site has the requested id.
	ErrNotFound = errors.New("site not found")
	// ErrDuplicate is returned when creating a site whose id is already taken.
	ErrDuplicate = errors.New("site already exists")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid site")
)

// MaxRating is the top of the rating scale.
const MaxRating = 5.0

// Site is one listing in the directory.
type Site struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	URL         string    `json:"url" db:"url"`
	Description string    `json:"description" db:"description"`
	Logo        string    `json:"logo" db:"logo"`
	Tags        []string  `json:"tags" db:"-"`
	Category    string    `json:"category,omitempty" db:"category"`
	Rating      float64   `json:"rating,omitempty" db:"rating"`
	Visits      int64     `json:"visits,omitempty" db:"visits"`
	Featured    bool      `json:"featured,omitempty" db:"featured"`
	CreatedAt   time.Time `json:"created_at,omitzero" db:"created_at"`
}

// HasTag reports whether the site carries tag, ignoring case.
func (s *Site) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// InCategory reports whether the site belongs to category, either through its
// explicit category or one of its tags.
func (s *Site) InCategory(category string) bool {
	return strings.EqualFold(s.Category, category) || s.HasTag(category)
}

// Normalize trims whitespace and drops empty or duplicate tags.
func (s *Site) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimSpace(s.URL)
	s.Description = strings.TrimSpace(s.Description)
	s.Logo = strings.TrimSpace(s.Logo)
	s.Category = strings.TrimSpace(s.Category)

	seen := make(map[string]bool, len(s.Tags))
	tags := s.Tags[:0]
	for _, t := range s.Tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	s.Tags = tags
}

// Validate checks the fields an editor can get wrong.
func (s *Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalid)
	}
	if math.IsNaN(s.Rating) || s.Rating < 0 || s.Rating > MaxRating {
		return fmt.Errorf("%w: rating must be between 0 and %.0f", ErrInvalid, MaxRating)
	}
	if s.Visits < 0 {
		return fmt.Errorf("%w: visits cannot be negative", ErrInvalid)
	}
	return nil
}
