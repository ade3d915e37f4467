// Package avatar generates the fallback badge shown in place of a site logo that is
// missing or fails to load: a background colour derived deterministically from the
// site's display name, and the first one or two characters of that name.
//
// Everything in this package is a pure function of its input. The same name always
// produces the same colour and initials, so pages rendered on the server and badges
// requested later through /avatar/:name agree without any shared state.
package avatar

import (
	"fmt"
	"math"
	"unicode/utf16"
)

const (
	// Saturation and Lightness are fixed so every generated colour sits in the same
	// pastel band and white initials stay readable on top of it.
	Saturation = 70.0
	Lightness  = 65.0
)

// Placeholder is what a page needs to render a same-size badge for a broken image.
type Placeholder struct {
	Color    string `json:"color"`
	Initials string `json:"initials"`
}

// For returns the colour and initials for a display name.
func For(name string) Placeholder {
	return Placeholder{
		Color:    ColorFor(name),
		Initials: InitialsFor(name),
	}
}

// Hash is the classic hash*31 + code string hash computed over UTF-16 code units,
// the same units a browser iterates with charCodeAt. Arithmetic is 32-bit signed
// and wraps on overflow.
//
// This is not the value the same expression yields in a browser. There only the
// shift truncates to 32 bits; the subtraction and addition run in float64, so
// once the hash leaves the int32 range the two diverge. Short names agree
// ("ChatGPT", "Claude", "Midjourney" all give the same hue) but "GitHub" hashes
// to 2133168099 here (hue 339) and to -2161799197 in a browser (hue 277).
// Colours are only ever computed server-side, so the wrapped form is kept for
// being well defined in every language.
func Hash(name string) int32 {
	var hash int32
	for _, code := range utf16.Encode([]rune(name)) {
		hash = int32(code) + ((hash << 5) - hash)
	}
	return hash
}

// Hue reduces a name to a hue in [0, 360).
func Hue(name string) int {
	// abs of the remainder rather than remainder of abs: -MinInt32 overflows.
	h := int(Hash(name) % 360)
	if h < 0 {
		h = -h
	}
	return h
}

// ColorFor returns the #rrggbb background colour for a display name.
// An empty name hashes to 0 and yields the hue-0 colour; it never fails.
func ColorFor(name string) string {
	return HSLToHex(float64(Hue(name)), Saturation, Lightness)
}

// HSLToHex converts a colour given as hue in degrees and saturation/lightness in
// percent to a lowercase #rrggbb string.
//
// Each channel is computed independently as
//
//	f(n) = l - a*max(min(k-3, 9-k, 1), -1),  k = (n + h/30) mod 12,  a = s*min(l, 1-l)
//
// with r = f(0), g = f(8), b = f(4), then rounded to the nearest of 256 levels.
func HSLToHex(h, s, l float64) string {
	s /= 100
	l /= 100
	a := s * math.Min(l, 1-l)

	channel := func(n float64) uint8 {
		k := math.Mod(n+h/30, 12)
		if k < 0 {
			k += 12
		}
		c := l - a*math.Max(math.Min(math.Min(k-3, 9-k), 1), -1)
		return uint8(math.Round(255 * clamp01(c)))
	}

	return fmt.Sprintf("#%02x%02x%02x", channel(0), channel(8), channel(4))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
