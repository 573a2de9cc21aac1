package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name string
		data []byte
		ok   bool
	}{
		{"good.spv", spirv, true},
		{"odd.spv", spirv[:7], false},
		{"empty.spv", nil, false},
	} {
		p := writeFile(t, dir, tc.name, tc.data)
		code, err := LoadShader(p)
		if tc.ok != (err == nil) {
			t.Errorf("%s: err = %v", tc.name, err)
			continue
		}
		if tc.ok && !bytes.Equal(code, tc.data) {
			t.Errorf("%s: content changed", tc.name)
		}
	}
	if _, err := LoadShader(filepath.Join(dir, "missing.spv")); err == nil {
		t.Error("missing shader loaded")
	}
}

// 2x1: red, then green.
func sample() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(1, 0, color.NRGBA{0, 255, 0, 255})
	return img
}

var samplePixels = []byte{255, 0, 0, 255, 0, 255, 0, 255}

func TestDecodeTexture(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, sample()); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, sample()); err != nil {
		t.Fatal(err)
	}
	ppmData := append([]byte("P6\n2 1\n255\n"), 255, 0, 0, 0, 255, 0)

	for name, data := range map[string][]byte{
		"png": pngBuf.Bytes(),
		"bmp": bmpBuf.Bytes(),
		"ppm": ppmData,
	} {
		tex, err := DecodeTexture(bytes.NewReader(data))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if tex.Width != 2 || tex.Height != 1 {
			t.Errorf("%s: %dx%d", name, tex.Width, tex.Height)
		}
		if !bytes.Equal(tex.Pixels, samplePixels) {
			t.Errorf("%s: pixels %v", name, tex.Pixels)
		}
	}
}

func TestDecodeTextureSubImage(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	big.Set(2, 2, color.RGBA{1, 2, 3, 255})
	sub := big.SubImage(image.Rect(2, 2, 3, 3)).(*image.RGBA)
	pix := toRGBA(sub)
	if !bytes.Equal(pix, []byte{1, 2, 3, 255}) {
		t.Errorf("pixels %v", pix)
	}
}

func TestDecodeTextureGarbage(t *testing.T) {
	if _, err := DecodeTexture(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("garbage decoded")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, VertexShader, spirv)
	writeFile(t, dir, FragmentShader, spirv)
	var buf bytes.Buffer
	if err := png.Encode(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	tex := writeFile(t, dir, "tex.png", buf.Bytes())

	b, err := Load(context.Background(), dir, tex)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Vertex) != len(spirv) || len(b.Fragment) != len(spirv) || b.Texture.Width != 2 {
		t.Errorf("bundle = %+v", b)
	}

	if _, err := Load(context.Background(), dir, filepath.Join(dir, "nope.png")); err == nil {
		t.Error("missing texture loaded")
	}
	os.Remove(filepath.Join(dir, FragmentShader))
	if _, err := Load(context.Background(), dir, tex); err == nil {
		t.Error("missing fragment shader loaded")
	}
}
