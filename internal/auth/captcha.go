package auth

import (
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/big"
	mrand "math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// CaptchaLength is the number of characters in a captcha code.
	CaptchaLength = 4

	// Ambiguous glyphs (0/O, 1/I/L) are left out.
	captchaAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

	captchaWidth  = 120
	captchaHeight = 40
	captchaScale  = 2
)

var captchaBackground = color.RGBA{240, 240, 240, 255}

// NewCaptchaCode returns a random code drawn from an unambiguous alphabet.
func NewCaptchaCode() (string, error) {
	code := make([]byte, CaptchaLength)
	limit := big.NewInt(int64(len(captchaAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate captcha: %w", err)
		}
		code[i] = captchaAlphabet[n.Int64()]
	}
	return string(code), nil
}

// RenderCaptcha writes code as a noisy PNG. Glyphs are drawn with a bitmap font on
// a half-size canvas and scaled up, then overlaid with lines.
func RenderCaptcha(w io.Writer, code string) error {
	glyphs := image.NewRGBA(image.Rect(0, 0, captchaWidth/captchaScale, captchaHeight/captchaScale))
	for i, ch := range code {
		ink := image.NewUniform(color.RGBA{uint8(mrand.IntN(100)), uint8(mrand.IntN(100)), uint8(mrand.IntN(100)), 255})
		d := &font.Drawer{
			Dst:  glyphs,
			Src:  ink,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(6+i*12+mrand.IntN(3), 14+mrand.IntN(4)),
		}
		d.DrawString(string(ch))
	}

	img := image.NewRGBA(image.Rect(0, 0, captchaWidth, captchaHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(captchaBackground), image.Point{}, draw.Src)
	for range 100 {
		img.Set(mrand.IntN(captchaWidth), mrand.IntN(captchaHeight),
			color.RGBA{uint8(mrand.IntN(256)), uint8(mrand.IntN(256)), uint8(mrand.IntN(256)), 255})
	}
	draw.NearestNeighbor.Scale(img, img.Bounds(), glyphs, glyphs.Bounds(), draw.Over, nil)
	for range 4 {
		line(img,
			image.Pt(mrand.IntN(captchaWidth), mrand.IntN(captchaHeight)),
			image.Pt(mrand.IntN(captchaWidth), mrand.IntN(captchaHeight)),
			color.RGBA{uint8(mrand.IntN(150)), uint8(mrand.IntN(150)), uint8(mrand.IntN(150)), 255})
	}

	return png.Encode(w, img)
}

// line draws a one-pixel line with Bresenham's algorithm.
func line(img *image.RGBA, a, b image.Point, c color.Color) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	err := dx + dy
	for {
		img.Set(a.X, a.Y, c)
		if a == b {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			a.X += sx
		}
		if e2 <= dx {
			err += dx
			a.Y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
