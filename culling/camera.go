package culling

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// The error type returned when camera parameters cannot produce a frustum.
const ErrTypeInvalidCamera = "culling_invalid_camera"

// Camera is a perspective camera in world space.
type Camera struct {
	Eye    mgl32.Vec3 `json:"eye"`
	Center mgl32.Vec3 `json:"center"`
	Up     mgl32.Vec3 `json:"up"`

	// Vertical field of view, in degrees.
	FOV    float32 `json:"fov"`
	Aspect float32 `json:"aspect"`
	Near   float32 `json:"near"`
	Far    float32 `json:"far"`
}

// Validate checks that the camera produces a usable projection.
func (c Camera) Validate() error {
	switch {
	case c.FOV <= 0 || c.FOV >= 180:
		return errors.New("invalid field of view").
			WithType(ErrTypeInvalidCamera).
			WithTag("fov", c.FOV)

	case c.Aspect <= 0:
		return errors.New("invalid aspect ratio").
			WithType(ErrTypeInvalidCamera).
			WithTag("aspect", c.Aspect)

	case c.Near <= 0 || c.Far <= c.Near:
		return errors.New("invalid clipping planes").
			WithType(ErrTypeInvalidCamera).
			WithTag("near", c.Near).
			WithTag("far", c.Far)

	case c.Eye.ApproxEqual(c.Center):
		return errors.New("camera eye and center are the same").
			WithType(ErrTypeInvalidCamera)

	case c.Up.Len() == 0 || c.Up.Cross(c.Center.Sub(c.Eye)).Len() == 0:
		return errors.New("invalid up vector").
			WithType(ErrTypeInvalidCamera).
			WithTag("up", c.Up)
	}
	return nil
}

// Matrix returns the view projection matrix of the camera.
func (c Camera) Matrix() mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
	view := mgl32.LookAtV(c.Eye, c.Center, c.Up)
	return proj.Mul4(view)
}

// Frustum returns the view frustum of the camera.
func (c Camera) Frustum() (Frustum, error) {
	if err := c.Validate(); err != nil {
		return Frustum{}, err
	}
	return FrustumFromMatrix(c.Matrix()), nil
}
