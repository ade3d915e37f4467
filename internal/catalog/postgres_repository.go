package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const siteColumns = `id, name, url, description, logo, tags, category, rating, visits, featured, created_at`

// siteRow mirrors the sites table; tags need pq.StringArray to scan TEXT[].
type siteRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	URL         string         `db:"url"`
	Description string         `db:"description"`
	Logo        string         `db:"logo"`
	Tags        pq.StringArray `db:"tags"`
	Category    string         `db:"category"`
	Rating      float64        `db:"rating"`
	Visits      int64          `db:"visits"`
	Featured    bool           `db:"featured"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r siteRow) site() Site {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Site{
		ID:          r.ID,
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
		Logo:        r.Logo,
		Tags:        tags,
		Category:    r.Category,
		Rating:      r.Rating,
		Visits:      r.Visits,
		Featured:    r.Featured,
		CreatedAt:   r.CreatedAt,
	}
}

// PostgresRepository stores sites in the sites table created by the embedded
// migrations in internal/db.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL-backed site repository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns all sites, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Site, error) {
	var rows []siteRow
	query := `SELECT ` + siteColumns + ` FROM sites ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	sites := make([]Site, len(rows))
	for i, row := range rows {
		sites[i] = row.site()
	}
	return sites, nil
}

// Get retrieves a site by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Site, error) {
	var row siteRow
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	s := row.site()
	return &s, nil
}

// Create inserts a new site.
func (r *PostgresRepository) Create(ctx context.Context, site *Site) error {
	query := `
		INSERT INTO sites (id, name, url, description, logo, tags, category, rating, visits, featured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		site.ID, site.Name, site.URL, site.Description, site.Logo,
		pq.StringArray(site.Tags), site.Category, site.Rating, site.Visits, site.Featured, site.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicate, site.ID)
		}
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of an existing site.
func (r *PostgresRepository) Update(ctx context.Context, site *Site) error {
	query := `
		UPDATE sites
		SET name = $2, url = $3, description = $4, logo = $5, tags = $6,
		    category = $7, rating = $8, featured = $9, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		site.ID, site.Name, site.URL, site.Description, site.Logo,
		pq.StringArray(site.Tags), site.Category, site.Rating, site.Featured,
	)
	if err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes a site.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return expectOneRow(res)
}

// IncrementVisits adds n to the visit counter in a single statement so concurrent
// flushes from several server instances do not lose updates.
func (r *PostgresRepository) IncrementVisits(ctx context.Context, id string, n int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sites SET visits = visits + $2 WHERE id = $1`, id, n)
	if err != nil {
		return fmt.Errorf("failed to increment visits: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
