package asset

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the fixed vertex layout consumed by both graphics pipelines.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// Mesh is indexed triangle geometry together with its axis-aligned bounds.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Min      mgl32.Vec3
	Max      mgl32.Vec3
}

// IsModel reports whether path looks like a wavefront OBJ file.
func IsModel(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".obj")
}

type vertexKey struct {
	position int
	uv       int
}

type meshBuilder struct {
	decoder  *obj.Decoder
	unique   map[vertexKey]uint32
	hasUVs   bool
	vertices []Vertex
	indices  []uint32
}

func (b *meshBuilder) addVertex(face obj.Face, faceIndex int) {
	key := vertexKey{position: face.Vertices[faceIndex], uv: -1}
	if b.hasUVs && faceIndex < len(face.Uvs) {
		uvInd := face.Uvs[faceIndex]
		if uvInd >= 0 && uvInd*2+1 < len(b.decoder.Uvs) {
			key.uv = uvInd
		}
	}

	index, exists := b.unique[key]
	if !exists {
		vertInd := key.position
		vert := Vertex{
			Position: mgl32.Vec3{
				b.decoder.Vertices[vertInd*3],
				b.decoder.Vertices[vertInd*3+1],
				b.decoder.Vertices[vertInd*3+2],
			},
			Color: mgl32.Vec3{1, 1, 1},
		}

		if key.uv >= 0 {
			vert.TexCoord = mgl32.Vec2{
				b.decoder.Uvs[key.uv*2],
				b.decoder.Uvs[key.uv*2+1],
			}
		}

		index = uint32(len(b.vertices))
		b.vertices = append(b.vertices, vert)
		b.unique[key] = index
	}

	b.indices = append(b.indices, index)
}

// DecodeOBJ parses a wavefront OBJ stream into a triangulated, deduplicated
// mesh. Materials are ignored.
func DecodeOBJ(r io.Reader) (*Mesh, error) {
	decoder, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode obj")
	}

	builder := &meshBuilder{
		decoder: decoder,
		unique:  make(map[vertexKey]uint32),
		hasUVs:  len(decoder.Uvs) > 0,
	}

	vertexCount := len(decoder.Vertices) / 3
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for _, vertInd := range face.Vertices {
				if vertInd < 0 || vertInd >= vertexCount {
					return nil, errors.Newf("face references vertex %d, file has %d", vertInd, vertexCount)
				}
			}

			// Faces are fans
			for i := 2; i < len(face.Vertices); i++ {
				builder.addVertex(face, 0)
				builder.addVertex(face, i-1)
				builder.addVertex(face, i)
			}
		}
	}

	if len(builder.indices) == 0 {
		return nil, errors.New("obj contains no faces")
	}

	mesh := &Mesh{
		Vertices: builder.vertices,
		Indices:  builder.indices,
	}
	mesh.computeBounds()

	if !builder.hasUVs {
		mesh.projectTexCoords()
	}

	return mesh, nil
}

// LoadOBJ reads and decodes the OBJ file at path.
func LoadOBJ(path string) (*Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open model at %s", path)
	}
	defer file.Close()

	mesh, err := DecodeOBJ(file)
	if err != nil {
		return nil, errors.Wrapf(err, "model at %s", path)
	}
	return mesh, nil
}

func (m *Mesh) computeBounds() {
	lo := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, vertex := range m.Vertices {
		for i := 0; i < 3; i++ {
			if vertex.Position[i] < lo[i] {
				lo[i] = vertex.Position[i]
			}
			if vertex.Position[i] > hi[i] {
				hi[i] = vertex.Position[i]
			}
		}
	}
	m.Min = lo
	m.Max = hi
}

// projectTexCoords gives untextured models a side projection: (z, y), with
// the far half along x pushed one depth extent over so both sides differ.
func (m *Mesh) projectTexCoords() {
	xMiddle := (m.Max.X() + m.Min.X()) / 2
	depth := m.Max.Z() - m.Min.Z()
	for i := range m.Vertices {
		pos := m.Vertices[i].Position
		coords := mgl32.Vec2{pos.Z(), pos.Y()}
		if pos.X() > xMiddle {
			coords[0] += depth
		}
		m.Vertices[i].TexCoord = coords
	}
}
