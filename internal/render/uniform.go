package render

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/scop/internal/camera"
)

// UniformBufferObject matches the std140 block read by both vertex shaders.
type UniformBufferObject struct {
	Model         mgl32.Mat4
	View          mgl32.Mat4
	Proj          mgl32.Mat4
	TextureWeight float32
}

var uniformBufferSize = int(unsafe.Sizeof(UniformBufferObject{}))

// newUniformBufferObject snapshots the transforms for one frame drawn at
// width x height.
func newUniformBufferObject(t *camera.Transforms, width, height int) UniformBufferObject {
	return UniformBufferObject{
		Model:         t.ModelMatrix(),
		View:          t.View,
		Proj:          camera.Projection(width, height),
		TextureWeight: t.TextureWeight,
	}
}
