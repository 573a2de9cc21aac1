package assets

import (
	"bufio"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/lmittmann/ppm"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Texture is a decoded image as tightly packed RGBA8 rows.
type Texture struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// DecodeTexture decodes PPM, PNG, JPEG, GIF, BMP, TIFF or WebP.
func DecodeTexture(r io.Reader) (*Texture, error) {
	br := bufio.NewReader(r)
	var (
		img    image.Image
		format string
		err    error
	)
	if isPPM(br) {
		format = "ppm"
		img, err = ppm.Decode(br)
	} else {
		img, format, err = image.Decode(br)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode texture")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.Newf("%s texture has no pixels", format)
	}
	return &Texture{Width: uint32(b.Dx()), Height: uint32(b.Dy()), Pixels: toRGBA(img)}, nil
}

func isPPM(br *bufio.Reader) bool {
	magic, err := br.Peek(2)
	return err == nil && magic[0] == 'P' && (magic[1] == '3' || magic[1] == '6')
}

func toRGBA(img image.Image) []byte {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*b.Dx() && b.Min == (image.Point{}) {
		return rgba.Pix
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}

func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()
	tex, err := DecodeTexture(f)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", path)
	}
	return tex, nil
}
