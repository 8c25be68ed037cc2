// Package camera holds the model and view matrices driven by user input and
// builds the projection used by the render core.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	FieldOfView = 75.0
	NearPlane   = 0.1
	FarPlane    = 20.0

	// Per line of mouse wheel.
	zoomStep = 0.3
	// Degrees per second while auto rotation is on.
	autoRotateSpeed = -90.0
	// Texture weight change per second, a full blend takes two seconds.
	blendSpeed = 0.5
)

var (
	eye    = mgl32.Vec3{0, 0, 3}
	center = mgl32.Vec3{0, 0, 0}
	up     = mgl32.Vec3{0, 1, 0}
)

// Transforms is the per-frame camera state. The matrix written to the
// uniform buffer is Model * Initial, where Initial recenters the current mesh
// around the origin and scales it into a unit box.
type Transforms struct {
	Model         mgl32.Mat4
	View          mgl32.Mat4
	Initial       mgl32.Mat4
	TextureWeight float32

	lo, hi     mgl32.Vec3
	blendDelta float32
}

// New returns transforms framing a mesh with the given bounds.
func New(lo, hi mgl32.Vec3) *Transforms {
	t := &Transforms{}
	t.Reframe(lo, hi)
	t.Reset()
	return t
}

// NormalizeModel scales by the inverse of the largest extent after moving the
// bounding box center to the origin.
func NormalizeModel(lo, hi mgl32.Vec3) mgl32.Mat4 {
	size := hi.Sub(lo)
	largest := mgl32.Abs(size.X())
	if s := mgl32.Abs(size.Y()); s > largest {
		largest = s
	}
	if s := mgl32.Abs(size.Z()); s > largest {
		largest = s
	}
	if largest == 0 {
		largest = 1
	}

	offset := lo.Mul(-1).Sub(size.Mul(0.5))
	return mgl32.Scale3D(1/largest, 1/largest, 1/largest).Mul4(mgl32.Translate3D(offset.X(), offset.Y(), offset.Z()))
}

// DefaultView looks at the origin from three units down +Z.
func DefaultView() mgl32.Mat4 {
	return mgl32.LookAtV(eye, center, up)
}

// Perspective builds a right handed projection for Vulkan clip space: y points
// down and depth maps to [0, 1].
func Perspective(fovyDegrees, aspect, near, far float32) mgl32.Mat4 {
	f := float32(1 / math.Tan(float64(mgl32.DegToRad(fovyDegrees))/2))

	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = -f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// Projection is the viewer projection for a framebuffer of the given size.
func Projection(width, height int) mgl32.Mat4 {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return Perspective(FieldOfView, aspect, NearPlane, FarPlane)
}

// Reframe replaces the mesh bounds and the normalizing matrix derived from
// them. Model and view are left alone.
func (t *Transforms) Reframe(lo, hi mgl32.Vec3) {
	t.lo, t.hi = lo, hi
	t.Initial = NormalizeModel(lo, hi)
}

// Reset restores the default model and view matrices and reframes the
// current bounds.
func (t *Transforms) Reset() {
	t.Model = mgl32.Ident4()
	t.View = DefaultView()
	t.Initial = NormalizeModel(t.lo, t.hi)
}

// ModelMatrix is the model matrix the shaders see.
func (t *Transforms) ModelMatrix() mgl32.Mat4 {
	return t.Model.Mul4(t.Initial)
}

// Translate moves the camera, in view space.
func (t *Transforms) Translate(delta mgl32.Vec3) {
	t.View = mgl32.Translate3D(delta.X(), delta.Y(), delta.Z()).Mul4(t.View)
}

// Rotate turns the model by yaw around Y and then by pitch around X, both in
// degrees.
func (t *Transforms) Rotate(yaw, pitch float32) {
	t.Model = mgl32.HomogRotate3DY(mgl32.DegToRad(yaw)).Mul4(t.Model)
	t.Model = mgl32.HomogRotate3DX(mgl32.DegToRad(pitch)).Mul4(t.Model)
}

// RotateByDrag converts a mouse drag in pixels into a rotation, half a turn
// per window width or height.
func (t *Transforms) RotateByDrag(dx, dy, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	t.Rotate(float32(dx)/float32(width)*180, float32(dy)/float32(height)*180)
}

// AutoRotate spins the model around Y for a frame of dt seconds.
func (t *Transforms) AutoRotate(dt float32) {
	t.Model = mgl32.HomogRotate3DY(mgl32.DegToRad(dt * autoRotateSpeed)).Mul4(t.Model)
}

// Zoom scales the model by the number of wheel lines scrolled.
func (t *Transforms) Zoom(lines float32) {
	s := 1 + lines*zoomStep
	if s <= 0 {
		return
	}
	t.Model = mgl32.Scale3D(s, s, s).Mul4(t.Model)
}

// ToggleBlend starts blending toward the texture, or reverses the direction
// of the running blend.
func (t *Transforms) ToggleBlend() {
	if t.blendDelta == 0 {
		t.blendDelta = blendSpeed
		return
	}
	t.blendDelta = -t.blendDelta
}

// Advance moves the texture weight along the current blend direction.
func (t *Transforms) Advance(dt float32) {
	t.TextureWeight = mgl32.Clamp(t.TextureWeight+t.blendDelta*dt, 0, 1)
}
