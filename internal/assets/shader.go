// Package assets loads the files the renderer needs from disk: SPIR-V
// shaders and the texture.
package assets

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const (
	VertexShader   = "vert.spv"
	FragmentShader = "frag.spv"
)

// LoadShader reads a SPIR-V module. SPIR-V is a stream of 32-bit words, so
// a length that is not a multiple of 4 is rejected.
func LoadShader(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", filepath.Base(path))
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("shader %s: %d bytes is not a whole number of words", path, len(code))
	}
	return code, nil
}
