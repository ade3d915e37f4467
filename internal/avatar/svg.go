package avatar

import (
	"bytes"
	"fmt"
	"html"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultSize is the badge edge length in pixels when none is requested.
	DefaultSize = 40
	// MaxSize bounds the edge length accepted from query strings.
	MaxSize = 512

	// small badges (40px logo slots in the card list) use a smaller font.
	smallBadge = 40
)

// TextColor picks the initials colour for a background: white unless the
// background is so light that white would wash out.
func TextColor(background string) string {
	c, err := colorful.Hex(background)
	if err != nil {
		return "#ffffff"
	}
	l, _, _ := c.Lab()
	if l > 0.82 {
		return "#1f2937"
	}
	return "#ffffff"
}

// shade darkens the background slightly for the lower gradient stop.
func shade(background string) string {
	c, err := colorful.Hex(background)
	if err != nil {
		return background
	}
	return c.BlendLab(colorful.Color{R: 0, G: 0, B: 0}, 0.12).Clamped().Hex()
}

// NormalizeSize maps sizes outside [1, MaxSize] to DefaultSize.
func NormalizeSize(size int) int {
	if size <= 0 || size > MaxSize {
		return DefaultSize
	}
	return size
}

// SVG renders the placeholder for name as a square SVG badge of the given size.
func SVG(name string, size int) []byte {
	size = NormalizeSize(size)
	p := For(name)

	fontSize := float64(size) * 0.45
	if size <= smallBadge {
		fontSize = float64(size) * 0.35
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img" aria-label="%s">`,
		size, size, size, size, html.EscapeString(name))
	fmt.Fprintf(&buf, `<defs><linearGradient id="g" x1="0" y1="0" x2="0" y2="1"><stop offset="0" stop-color="%s"/><stop offset="1" stop-color="%s"/></linearGradient></defs>`,
		p.Color, shade(p.Color))
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" rx="%d" fill="url(#g)"/>`, size, size, size/5)
	fmt.Fprintf(&buf, `<text x="50%%" y="50%%" dy=".35em" text-anchor="middle" fill="%s" font-family="system-ui,sans-serif" font-weight="bold" font-size="%.1f">%s</text>`,
		TextColor(p.Color), fontSize, html.EscapeString(p.Initials))
	buf.WriteString(`</svg>`)
	return buf.Bytes()
}

// ETag identifies a rendered badge; it changes only when the colour, initials or
// size change.
func ETag(name string, size int) string {
	p := For(name)
	return fmt.Sprintf(`"%s-%x-%d"`, p.Color[1:], []byte(p.Initials), NormalizeSize(size))
}
