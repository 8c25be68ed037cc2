package asset

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// CubemapFaceCount is the number of layers in a cube image.
const CubemapFaceCount = 6

// ErrFaceSizeMismatch is returned when the faces of a cubemap do not all
// share the same dimensions.
var ErrFaceSizeMismatch = errors.New("cubemap images must all have the same size")

// CubemapFaceNames lists face files in layer order: +X, -X, +Y, -Y, +Z, -Z.
var CubemapFaceNames = [CubemapFaceCount]string{
	"right.png",
	"left.png",
	"top.png",
	"bottom.png",
	"back.png",
	"front.png",
}

// CubemapPaths joins the standard face names onto dir.
func CubemapPaths(dir string) [CubemapFaceCount]string {
	var paths [CubemapFaceCount]string
	for i, name := range CubemapFaceNames {
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

// LoadCubemap decodes all six faces concurrently. Any decode failure or size
// mismatch fails the whole load.
func LoadCubemap(ctx context.Context, paths [CubemapFaceCount]string) ([CubemapFaceCount]Image, error) {
	var faces [CubemapFaceCount]Image

	group, _ := errgroup.WithContext(ctx)
	for i := range paths {
		idx := i
		group.Go(func() error {
			img, err := LoadImage(paths[idx])
			if err != nil {
				return errors.Wrapf(err, "cubemap face %d", idx)
			}
			faces[idx] = img
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return faces, err
	}

	if err := ValidateCubemapFaces(faces); err != nil {
		return faces, err
	}

	return faces, nil
}

// ValidateCubemapFaces checks that every face is non-empty and matches the
// dimensions of the first one.
func ValidateCubemapFaces(faces [CubemapFaceCount]Image) error {
	width, height := faces[0].Width, faces[0].Height
	if width <= 0 || height <= 0 {
		return errors.Newf("cubemap face 0 has invalid size %dx%d", width, height)
	}

	for i, face := range faces {
		if face.Width != width || face.Height != height {
			return errors.Wrapf(ErrFaceSizeMismatch, "face %d is %dx%d, face 0 is %dx%d",
				i, face.Width, face.Height, width, height)
		}
		if len(face.Pix) != face.Size() {
			return errors.Newf("cubemap face %d has %d bytes of pixel data, expected %d", i, len(face.Pix), face.Size())
		}
	}

	return nil
}
