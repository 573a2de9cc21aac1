package frame

import (
	"time"
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// UniformBlock matches the shader's uniform block: three column-major
// matrices.
type UniformBlock struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

const UniformSize = unsafe.Sizeof(UniformBlock{})

const degreesPerSecond = 90

var (
	eye    = mgl32.Vec3{1.5, 1.5, 1.5}
	center = mgl32.Vec3{0, 0, 0}
	up     = mgl32.Vec3{0, 0, 1}
)

// ComputeUniforms spins the model about Z and frames it from a fixed
// camera. The projection's Y axis is flipped for Vulkan clip space.
func ComputeUniforms(elapsed time.Duration, extent gpu.Extent2D) UniformBlock {
	angle := float32(elapsed.Seconds()) * mgl32.DegToRad(degreesPerSecond)
	aspect := float32(1)
	if extent.Height != 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 10.0)
	proj[5] *= -1
	return UniformBlock{
		Model: mgl32.HomogRotate3D(angle, up),
		View:  mgl32.LookAtV(eye, center, up),
		Proj:  proj,
	}
}

func (u *UniformBlock) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), UniformSize)
}
