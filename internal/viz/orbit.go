package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cosim/internal/capture"
	"github.com/san-kum/cosim/internal/snapshot"
)

type Vec3 = snapshot.Vec3

// maxElevation keeps the view direction off the up axis.
const maxElevation = 85 * math.Pi / 180

// Orbit swings the camera about its look-at point: yaw turns around the up
// axis, pitch tilts toward it, and zoom scales the distance.
func Orbit(c capture.Camera, yaw, pitch, zoom float64) capture.Camera {
	up := c.Up.Normalize()
	arm := c.Pos.Sub(c.LookAt)
	arm = mgl64.QuatRotate(yaw, up).Rotate(arm)

	elev := math.Asin(mgl64.Clamp(arm.Normalize().Dot(up), -1, 1))
	target := mgl64.Clamp(elev+pitch, -maxElevation, maxElevation)
	if right := arm.Cross(up); right.Len() > 1e-12 && target != elev {
		arm = mgl64.QuatRotate(target-elev, right.Normalize()).Rotate(arm)
	}

	if zoom > 0 {
		arm = arm.Mul(zoom)
	}
	c.Pos = c.LookAt.Add(arm)
	return c
}

// boxEdges index the corners produced by corners().
var boxEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func corners(b snapshot.BodyFrame) [8]Vec3 {
	rot := b.Rot
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	var out [8]Vec3
	for i := range out {
		local := b.HalfExtent
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) == 0 {
				local[axis] = -local[axis]
			}
		}
		out[i] = b.Pos.Add(rot.Rotate(local))
	}
	return out
}

// Outline returns the segments that sketch a body: its oriented bounding
// box, or a square of the given half size for an unbounded ground plane.
func Outline(b snapshot.BodyFrame, ground float64) [][2]Vec3 {
	if b.HalfExtent == (Vec3{}) {
		z := b.Pos[2]
		sq := [4]Vec3{{-ground, -ground, z}, {ground, -ground, z}, {ground, ground, z}, {-ground, ground, z}}
		segs := make([][2]Vec3, 0, 4)
		for i := range sq {
			segs = append(segs, [2]Vec3{sq[i], sq[(i+1)%4]})
		}
		return segs
	}
	c := corners(b)
	segs := make([][2]Vec3, 0, len(boxEdges))
	for _, e := range boxEdges {
		segs = append(segs, [2]Vec3{c[e[0]], c[e[1]]})
	}
	return segs
}
