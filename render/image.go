package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"io"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/brensch/snekahead/game"
)

// ImageOptions controls PNG rendering.
type ImageOptions struct {
	// BlockSize is the edge length of one cell in pixels.
	BlockSize int
	// You is drawn in YouColor; other snakes get a colour derived from their id.
	You      string
	YouColor string
}

var DefaultImageOptions = ImageOptions{BlockSize: 32, YouColor: "#2ecc71"}

// Image draws b onto a new canvas. Cell (0,0) is the top-left block.
func Image(b *game.Board, opts ImageOptions) image.Image {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultImageOptions.BlockSize
	}
	if opts.YouColor == "" {
		opts.YouColor = DefaultImageOptions.YouColor
	}
	bs := float64(opts.BlockSize)
	width := b.Width * opts.BlockSize
	height := b.Height * opts.BlockSize

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	drawGrid(dc, width, height, opts.BlockSize)

	for _, f := range b.FoodList() {
		dc.SetHexColor("#e74c3c")
		dc.DrawCircle(float64(f.X)*bs+bs/2, float64(f.Y)*bs+bs/2, bs/4)
		dc.Fill()
	}

	for _, id := range b.LiveIDs() {
		s := b.Snakes[id]
		hex := snakeColor(id)
		if id == opts.You {
			hex = opts.YouColor
		}
		dc.SetHexColor(hex)
		for i := len(s.Body) - 1; i >= 0; i-- {
			p := s.Body[i]
			inset := bs * 0.1
			if i == 0 {
				inset = 0
			}
			dc.DrawRectangle(float64(p.X)*bs+inset, float64(p.Y)*bs+inset, bs-2*inset, bs-2*inset)
			dc.Fill()
		}
		// Eye on the head so direction is readable.
		head := s.Head()
		dc.SetRGB(0, 0, 0)
		dc.DrawCircle(float64(head.X)*bs+bs/2, float64(head.Y)*bs+bs/2, math.Max(1, bs/10))
		dc.Fill()
	}

	return dc.Image()
}

func drawGrid(dc *gg.Context, width, height, blockSize int) {
	dc.SetRGB(0.9, 0.9, 0.9)
	dc.SetLineWidth(1)
	for x := 0; x <= width; x += blockSize {
		dc.DrawLine(float64(x), 0, float64(x), float64(height))
		dc.Stroke()
	}
	for y := 0; y <= height; y += blockSize {
		dc.DrawLine(0, float64(y), float64(width), float64(y))
		dc.Stroke()
	}
}

// snakeColor maps an id to a stable, fairly saturated colour.
func snakeColor(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	hue := float64(h.Sum32()%360) / 360
	c := hsv(hue, 0.65, 0.8)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func hsv(h, s, v float64) color.RGBA {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// Thumbnail scales img so that it fits within maxSize x maxSize, keeping the
// aspect ratio. Images already small enough are returned unchanged.
func Thumbnail(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	if maxSize <= 0 || (bounds.Dx() <= maxSize && bounds.Dy() <= maxSize) {
		return img
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
}

// EncodePNG writes img to w.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNG renders b and returns the encoded bytes.
func PNG(b *game.Board, opts ImageOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, Image(b, opts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG renders b to a file.
func SavePNG(path string, b *game.Board, opts ImageOptions) error {
	if err := imaging.Save(Image(b, opts), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func sortedDead(b *game.Board) []string {
	ids := make([]string, 0, len(b.Dead))
	for id := range b.Dead {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
