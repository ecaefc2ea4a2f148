package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
)

func isSVG(dest string) bool {
	return strings.EqualFold(filepath.Ext(dest), ".svg")
}

// SVG draws the particles of the last frame as seen by c, over the path
// their centroid took across all frames.
func (c Camera) SVG(frames []*snapshot.Frame, radius float64) string {
	w, h := c.Res[0], c.Res[1]
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, w, h, w, h)

	var path []string
	for _, f := range frames {
		centroid, ok := particleCentroid(f)
		if !ok {
			continue
		}
		if x, y, ok := c.Project(centroid); ok {
			path = append(path, fmt.Sprintf("%.1f,%.1f", x, y))
		}
	}
	if len(path) > 1 {
		fmt.Fprintf(&sb, `<path fill="none" stroke="#888888" stroke-width="1.5" d="M%s"/>
`, strings.Join(path, " L"))
	}

	if n := len(frames); n > 0 {
		f := frames[n-1]
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
				col := rgba(f.SurfaceOf(owner).Color)
				fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#%02x%02x%02x"/>
`, x, y, radius, col.R, col.G, col.B)
			}
		}
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

func particleCentroid(f *snapshot.Frame) (dynamo.Vec3, bool) {
	var sum dynamo.Vec3
	n := 0
	for _, d := range f.Domains {
		for _, p := range d.Positions {
			sum = sum.Add(p)
			n++
		}
	}
	if n == 0 {
		return sum, false
	}
	return sum.Mul(1 / float64(n)), true
}

// WriteSVG renders frames through the camera the first frame carries at
// index cam.
func WriteSVG(path string, frames []*snapshot.Frame, cam int) error {
	if len(frames) == 0 {
		return &dynamo.ConfigError{Field: "record", Reason: "no frames to render"}
	}
	if cam < 0 || cam >= len(frames[0].Cameras) {
		return &dynamo.ConfigError{Field: "record", Reason: "svg output needs a camera"}
	}
	c := FromFrame(frames[0].Cameras[cam])
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(c.SVG(frames, max(1, float64(c.Res[1])/240))), 0o644)
}
