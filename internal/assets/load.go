package assets

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Bundle is everything read from disk before the device is touched.
type Bundle struct {
	Vertex   []byte
	Fragment []byte
	Texture  *Texture
}

// Load reads both shaders from shaderDir and decodes texturePath
// concurrently. The first failure is returned.
func Load(ctx context.Context, shaderDir, texturePath string) (*Bundle, error) {
	var b Bundle
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b.Vertex, err = LoadShader(filepath.Join(shaderDir, VertexShader))
		return err
	})
	g.Go(func() (err error) {
		b.Fragment, err = LoadShader(filepath.Join(shaderDir, FragmentShader))
		return err
	})
	g.Go(func() (err error) {
		b.Texture, err = LoadTexture(texturePath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}
