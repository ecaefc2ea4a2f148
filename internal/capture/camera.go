// Package capture holds the cameras declared in a scene and the recorder
// that brackets a span of published frames.
package capture

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
)

type Vec3 = dynamo.Vec3

const (
	nearPlane = 0.01
	farPlane  = 100.0
)

// Camera is a pinhole camera. Fov is the vertical field of view in degrees.
type Camera struct {
	Res    [2]int
	Pos    Vec3
	LookAt Vec3
	Up     Vec3
	Fov    float64
}

func NewCamera(res [2]int, pos, lookat Vec3, fov float64) Camera {
	return Camera{Res: res, Pos: pos, LookAt: lookat, Up: Vec3{0, 0, 1}, Fov: fov}
}

// FromFrame rebuilds a camera from its published pose.
func FromFrame(cf snapshot.CameraFrame) Camera {
	return Camera{Res: cf.Res, Pos: cf.Pos, LookAt: cf.LookAt, Up: cf.Up, Fov: cf.Fov}
}

func (c Camera) Validate() error {
	if c.Res[0] <= 0 || c.Res[1] <= 0 {
		return &dynamo.ConfigError{Field: "camera.res", Reason: "must be positive"}
	}
	if !(c.Fov > 0 && c.Fov < 180) {
		return &dynamo.ConfigError{Field: "camera.fov", Reason: "must be in (0, 180) degrees"}
	}
	if c.LookAt.Sub(c.Pos).Len() < 1e-12 {
		return &dynamo.ConfigError{Field: "camera.lookat", Reason: "must differ from pos"}
	}
	if c.Up.Len() < 1e-12 || c.Up.Cross(c.LookAt.Sub(c.Pos)).Len() < 1e-12 {
		return &dynamo.ConfigError{Field: "camera.up", Reason: "must not be parallel to the view direction"}
	}
	return nil
}

func (c Camera) Aspect() float64 { return float64(c.Res[0]) / float64(c.Res[1]) }

func (c Camera) View() mgl64.Mat4 { return mgl64.LookAtV(c.Pos, c.LookAt, c.Up) }

func (c Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.Fov), c.Aspect(), nearPlane, farPlane)
}

// Project maps a world point to pixel coordinates with the origin at the
// top left. ok is false for points behind the camera or outside the
// depth range.
func (c Camera) Project(p Vec3) (x, y float64, ok bool) {
	clip := c.Projection().Mul4(c.View()).Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	if ndc[2] < -1 || ndc[2] > 1 || math.IsNaN(ndc[0]) {
		return 0, 0, false
	}
	x = (ndc[0] + 1) * 0.5 * float64(c.Res[0])
	y = (1 - ndc[1]) * 0.5 * float64(c.Res[1])
	return x, y, true
}

// Frame is the pose published with every snapshot.
func (c Camera) Frame(index int) snapshot.CameraFrame {
	return snapshot.CameraFrame{
		Index:  index,
		Res:    c.Res,
		Pos:    c.Pos,
		LookAt: c.LookAt,
		Up:     c.Up,
		Fov:    c.Fov,
		View:   c.View(),
		Proj:   c.Projection(),
	}
}
