package capture

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
)

// gifDelay is in hundredths of a second.
const gifDelay = 4

func isGIF(dest string) bool {
	return strings.EqualFold(filepath.Ext(dest), ".gif")
}

// Render rasterizes the particles of f as seen by c. Each particle covers
// a dot whose radius is given in pixels; its color is its owner's surface
// color.
func (c Camera) Render(f *snapshot.Frame, radius int) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, c.Res[0], c.Res[1]), palette.WebSafe)
	for _, d := range f.Domains {
		for i, p := range d.Positions {
			x, y, ok := c.Project(p)
			if !ok {
				continue
			}
			owner := dynamo.NoOwner
			if i < len(d.Owners) {
				owner = d.Owners[i]
			}
			idx := uint8(img.Palette.Index(rgba(f.SurfaceOf(owner).Color)))
			dot(img, int(x), int(y), radius, idx)
		}
	}
	return img
}

func dot(img *image.Paletted, cx, cy, r int, idx uint8) {
	b := img.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) > r*r || !image.Pt(x, y).In(b) {
				continue
			}
			img.SetColorIndex(x, y, idx)
		}
	}
}

func rgba(c dynamo.Color) color.RGBA {
	ch := func(v float64) uint8 {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 255
		}
		return uint8(v*255 + 0.5)
	}
	return color.RGBA{ch(c[0]), ch(c[1]), ch(c[2]), 255}
}

// WriteGIF renders frames through the camera they carry at index cam and
// writes them as one looping animation.
func WriteGIF(path string, frames []*snapshot.Frame, cam int) error {
	if len(frames) == 0 {
		return &dynamo.ConfigError{Field: "record", Reason: "no frames to render"}
	}
	if cam < 0 || cam >= len(frames[0].Cameras) {
		return &dynamo.ConfigError{Field: "record", Reason: "gif output needs a camera"}
	}
	c := FromFrame(frames[0].Cameras[cam])
	radius := max(1, c.Res[1]/240)

	anim := gif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, c.Render(f, radius))
		anim.Delay = append(anim.Delay, gifDelay)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(out, &anim); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
