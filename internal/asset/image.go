package asset

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded picture stored as tightly packed RGBA8 rows, top row first.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether path has an extension this package can decode.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// DecodeImage decodes any registered image format into RGBA8.
func DecodeImage(r io.Reader) (Image, error) {
	decoded, _, err := image.Decode(r)
	if err != nil {
		return Image{}, errors.Wrap(err, "failed to decode image")
	}

	bounds := decoded.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Image{}, errors.Newf("image has empty bounds %s", bounds)
	}

	rgba, ok := decoded.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), decoded, bounds.Min, draw.Src)
	}

	return Image{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    rgba.Pix,
	}, nil
}

// LoadImage reads and decodes the image file at path.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, errors.Wrapf(err, "failed to open image at %s", path)
	}

	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return Image{}, errors.Wrapf(err, "image at %s", path)
	}
	return img, nil
}

// FlipVertical returns a copy of img with the row order reversed. Texture
// coordinates coming out of OBJ files put v=0 at the bottom of the picture.
func (img Image) FlipVertical() Image {
	rowSize := img.Width * 4
	flipped := make([]byte, len(img.Pix))
	for y := 0; y < img.Height; y++ {
		src := img.Pix[y*rowSize : (y+1)*rowSize]
		dstRow := img.Height - 1 - y
		copy(flipped[dstRow*rowSize:(dstRow+1)*rowSize], src)
	}

	return Image{Width: img.Width, Height: img.Height, Pix: flipped}
}

// Size is the byte length of the pixel data.
func (img Image) Size() int {
	return img.Width * img.Height * 4
}
