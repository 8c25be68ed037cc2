package asset

import "github.com/go-gl/mathgl/mgl32"

// SkyboxCube builds a cube of half-size 1 whose triangles are wound
// counter-clockwise when seen from inside, so back-face culling keeps the
// faces surrounding the camera.
func SkyboxCube() *Mesh {
	mesh := &Mesh{
		Min: mgl32.Vec3{-1, -1, -1},
		Max: mgl32.Vec3{1, 1, 1},
	}

	quad := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	for axis := 0; axis < 3; axis++ {
		u := (axis + 1) % 3
		v := (axis + 2) % 3

		for _, sign := range []float32{1, -1} {
			base := uint32(len(mesh.Vertices))

			var corners [4]mgl32.Vec3
			for i, uv := range quad {
				corners[i][axis] = sign
				corners[i][u] = uv[0]
				corners[i][v] = uv[1]
				mesh.Vertices = append(mesh.Vertices, Vertex{
					Position: corners[i],
					Color:    mgl32.Vec3{1, 1, 1},
					TexCoord: mgl32.Vec2{(uv[0] + 1) / 2, (uv[1] + 1) / 2},
				})
			}

			indices := []uint32{0, 1, 2, 0, 2, 3}
			normal := corners[1].Sub(corners[0]).Cross(corners[2].Sub(corners[0]))
			if normal[axis]*sign > 0 {
				// Normal points out of the cube, flip to face the inside.
				indices = []uint32{0, 2, 1, 0, 3, 2}
			}

			for _, idx := range indices {
				mesh.Indices = append(mesh.Indices, base+idx)
			}
		}
	}

	return mesh
}
