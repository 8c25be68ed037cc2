package render

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/scop/internal/camera"
)

func TestUniformBufferObjectLayout(t *testing.T) {
	if uniformBufferSize != 196 {
		t.Fatalf("uniform buffer size = %d, want 196", uniformBufferSize)
	}

	ubo := UniformBufferObject{
		Model:         mgl32.Ident4(),
		View:          mgl32.Translate3D(1, 2, 3),
		Proj:          mgl32.Scale3D(2, 2, 2),
		TextureWeight: 0.25,
	}
	encoded, err := encode(&ubo)
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}
	if len(encoded) != 196 {
		t.Fatalf("encoded %d bytes, want 196", len(encoded))
	}

	f32 := func(offset int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(encoded[offset:]))
	}
	// Column-major: translation sits in elements 12..14 of the view matrix.
	if f32(64+12*4) != 1 || f32(64+13*4) != 2 || f32(64+14*4) != 3 {
		t.Error("view translation is not where the shader reads it")
	}
	if f32(128) != 2 {
		t.Errorf("proj[0] = %v, want 2", f32(128))
	}
	if f32(192) != 0.25 {
		t.Errorf("texture weight = %v, want 0.25", f32(192))
	}
}

func TestNewUniformBufferObject(t *testing.T) {
	tr := camera.New(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	tr.TextureWeight = 0.5

	ubo := newUniformBufferObject(tr, 800, 600)
	if ubo.Model != tr.ModelMatrix() {
		t.Error("model matrix should include the normalizing transform")
	}
	if ubo.View != tr.View {
		t.Error("view matrix not copied")
	}
	if ubo.Proj != camera.Projection(800, 600) {
		t.Error("projection does not follow the extent")
	}
	if ubo.TextureWeight != 0.5 {
		t.Errorf("texture weight = %v, want 0.5", ubo.TextureWeight)
	}
}
