// Package mesh defines the vertex format shared by the vertex buffer and the
// pipeline's vertex input state, and the mesh the renderer draws.
package mesh

import (
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"

	"github.com/hellhand/vkmesh/internal/gpu"
)

type Vertex struct {
	Pos   mgl32.Vec3
	Color mgl32.Vec3
	UV    mgl32.Vec2
}

// Stride is the size of one vertex in the vertex buffer.
const Stride = uint32(unsafe.Sizeof(Vertex{}))

// Vertices are two textured quads stacked at z = +0.5 and z = -0.5.
var Vertices = []Vertex{
	{Pos: mgl32.Vec3{-0.5, -0.5, 0.5}, Color: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 0}},
	{Pos: mgl32.Vec3{0.5, -0.5, 0.5}, Color: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{1, 0}},
	{Pos: mgl32.Vec3{0.5, 0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{1, 1}},
	{Pos: mgl32.Vec3{-0.5, 0.5, 0.5}, Color: mgl32.Vec3{1, 1, 1}, UV: mgl32.Vec2{0, 1}},

	{Pos: mgl32.Vec3{-0.5, -0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 0}},
	{Pos: mgl32.Vec3{0.5, -0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{1, 0}},
	{Pos: mgl32.Vec3{0.5, 0.5, -0.5}, Color: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{1, 1}},
	{Pos: mgl32.Vec3{-0.5, 0.5, -0.5}, Color: mgl32.Vec3{1, 1, 1}, UV: mgl32.Vec2{0, 1}},
}

var Indices = []uint16{
	0, 1, 2, 2, 3, 0,
	4, 5, 6, 6, 7, 4,
}

const IndexType = gpu.IndexTypeUint16

// Bindings describes the single interleaved vertex buffer.
func Bindings() []gpu.VertexBinding {
	return []gpu.VertexBinding{{Binding: 0, Stride: Stride}}
}

// Attributes maps position, color and texture coordinate to locations 0-2.
func Attributes() []gpu.VertexAttribute {
	return []gpu.VertexAttribute{
		{Location: 0, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Pos))},
		{Location: 1, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
		{Location: 2, Binding: 0, Format: gpu.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
	}
}

func VertexBytes(verts []Vertex) []byte {
	if len(verts) == 0 {
		return nil
	}
	size := len(verts) * int(Stride)
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), size))
	return out
}

func IndexBytes(idxs []uint16) []byte {
	if len(idxs) == 0 {
		return nil
	}
	size := len(idxs) * 2
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&idxs[0])), size))
	return out
}
