// logos.go validates uploaded logo files and moves them in and out of storage.
package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/storage"
	"github.com/ai-navigator/navigator/pkg/checksum"
	"github.com/gabriel-vasile/mimetype"
)

// MaxLogoBytes caps an uploaded logo.
const MaxLogoBytes = 1 << 20

// logoPrefix is the public route stored logos are served from.
const logoPrefix = "/logos/"

// allowedLogoTypes are raster formats only. SVG can carry script.
var allowedLogoTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/avif",
	"image/x-icon",
	"image/vnd.microsoft.icon",
}

var (
	errLogoTooLarge = fmt.Errorf("%w: logo must be at most %d KiB", catalog.ErrInvalid, MaxLogoBytes>>10)
	errLogoType     = fmt.Errorf("%w: logo must be a PNG, JPEG, GIF, WebP, AVIF or ICO image", catalog.ErrInvalid)
	errNoLogoStore  = errors.New("logo uploads are not configured")
)

// readLogo loads and validates an uploaded file, returning its bytes and type.
func readLogo(fh *multipart.FileHeader) ([]byte, *mimetype.MIME, error) {
	if fh.Size > MaxLogoBytes {
		return nil, nil, errLogoTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxLogoBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxLogoBytes {
		return nil, nil, errLogoTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedLogoTypes...) {
		return nil, nil, errLogoType
	}
	return data, mt, nil
}

// logoKey names a stored logo after the site and a content hash, so a new
// upload never collides with a cached old one.
func logoKey(siteName string, data []byte, mt *mimetype.MIME) string {
	slug := catalog.Slugify(siteName)
	if slug == "" {
		slug = "logo"
	}
	return slug + "-" + checksum.Short(data, 12) + mt.Extension()
}

// storeLogo validates fh and uploads it. It returns the public logo path
// (/logos/<key>).
func storeLogo(ctx context.Context, logos storage.Storage, siteName string, fh *multipart.FileHeader) (string, error) {
	if logos == nil {
		return "", errNoLogoStore
	}
	data, mt, err := readLogo(fh)
	if err != nil {
		return "", err
	}

	key := logoKey(siteName, data, mt)
	if _, err := logos.Upload(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("failed to store logo: %w", err)
	}
	return logoPrefix + key, nil
}

// storedKey returns the storage key behind a /logos/ path, or "" for external
// logo URLs.
func storedKey(logo string) string {
	if !strings.HasPrefix(logo, logoPrefix) {
		return ""
	}
	return strings.TrimPrefix(logo, logoPrefix)
}

// discardLogo deletes a stored logo. Failures only leave an orphan object, so
// they are logged.
func discardLogo(ctx context.Context, logos storage.Storage, logo string) {
	key := storedKey(logo)
	if logos == nil || key == "" {
		return
	}
	if err := logos.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete logo", "path", key, "error", err)
	}
}
