package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNormalizeModel_FitsUnitBox(t *testing.T) {
	lo := mgl32.Vec3{2, -1, 10}
	hi := mgl32.Vec3{6, 1, 11}
	m := NormalizeModel(lo, hi)

	center := mgl32.TransformCoordinate(lo.Add(hi).Mul(0.5), m)
	if !center.ApproxEqual(mgl32.Vec3{}) {
		t.Errorf("bounding box center maps to %v, want origin", center)
	}

	corner := mgl32.TransformCoordinate(hi, m)
	if !corner.ApproxEqual(mgl32.Vec3{0.5, 0.25, 0.125}) {
		t.Errorf("max corner maps to %v, want (0.5, 0.25, 0.125)", corner)
	}
}

func TestNormalizeModel_FlatMesh(t *testing.T) {
	m := NormalizeModel(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1})
	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 1, 1}, m)
	if !p.ApproxEqual(mgl32.Vec3{}) {
		t.Errorf("degenerate bounds map their point to %v, want origin", p)
	}
}

func TestPerspective_DepthRange(t *testing.T) {
	proj := Perspective(FieldOfView, 1, NearPlane, FarPlane)

	depth := func(z float32) float32 {
		clip := proj.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip.Z() / clip.W()
	}

	if d := depth(-NearPlane); !mgl32.FloatEqualThreshold(d, 0, 1e-5) {
		t.Errorf("depth at near plane = %v, want 0", d)
	}
	if d := depth(-FarPlane); !mgl32.FloatEqualThreshold(d, 1, 1e-5) {
		t.Errorf("depth at far plane = %v, want 1", d)
	}

	clip := proj.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	if clip.Y() >= 0 {
		t.Errorf("up maps to clip y %v, want negative", clip.Y())
	}
}

func TestProjection_ZeroHeight(t *testing.T) {
	proj := Projection(800, 0)
	if proj[0] != proj[5]*-1 {
		t.Errorf("zero height should fall back to a square aspect, got m00=%v m11=%v", proj[0], proj[5])
	}
}

func TestReset(t *testing.T) {
	tr := New(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	tr.Rotate(30, 10)
	tr.Translate(mgl32.Vec3{1, 2, 3})
	tr.Zoom(1)

	tr.Reset()

	if tr.Model != mgl32.Ident4() {
		t.Errorf("Model after Reset = %v, want identity", tr.Model)
	}
	if tr.View != DefaultView() {
		t.Errorf("View after Reset = %v, want default view", tr.View)
	}
}

func TestZoom_IgnoresCollapse(t *testing.T) {
	tr := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	tr.Zoom(-10)
	if tr.Model != mgl32.Ident4() {
		t.Errorf("Zoom(-10) changed the model to %v", tr.Model)
	}
}

func TestBlend(t *testing.T) {
	tr := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})

	tr.Advance(1)
	if tr.TextureWeight != 0 {
		t.Fatalf("weight moved without a blend: %v", tr.TextureWeight)
	}

	tr.ToggleBlend()
	tr.Advance(1)
	if tr.TextureWeight != 0.5 {
		t.Errorf("weight after 1s = %v, want 0.5", tr.TextureWeight)
	}
	tr.Advance(5)
	if tr.TextureWeight != 1 {
		t.Errorf("weight is not clamped: %v", tr.TextureWeight)
	}

	tr.ToggleBlend()
	tr.Advance(1)
	if tr.TextureWeight != 0.5 {
		t.Errorf("weight after reversing = %v, want 0.5", tr.TextureWeight)
	}
}
