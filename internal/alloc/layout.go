package alloc

import "github.com/hellhand/vkmesh/internal/gpu"

// Transition is the barrier scope for one image layout change.
type Transition struct {
	SrcAccess gpu.AccessFlags
	DstAccess gpu.AccessFlags
	SrcStage  gpu.PipelineStageFlags
	DstStage  gpu.PipelineStageFlags
}

type layoutPair struct{ from, to gpu.ImageLayout }

// Only the two texture upload steps are supported: fresh image to copy
// destination, and copy destination to sampled.
var transitions = map[layoutPair]Transition{
	{gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDstOptimal}: {
		SrcAccess: 0,
		DstAccess: gpu.AccessTransferWrite,
		SrcStage:  gpu.PipelineStageTopOfPipe,
		DstStage:  gpu.PipelineStageTransfer,
	},
	{gpu.ImageLayoutTransferDstOptimal, gpu.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: gpu.AccessTransferWrite,
		DstAccess: gpu.AccessShaderRead,
		SrcStage:  gpu.PipelineStageTransfer,
		DstStage:  gpu.PipelineStageFragmentShader,
	},
}

// LayoutTransition returns the barrier scope for from -> to.
func LayoutTransition(from, to gpu.ImageLayout) (Transition, error) {
	t, ok := transitions[layoutPair{from, to}]
	if !ok {
		return Transition{}, &gpu.UnsupportedLayoutTransitionError{Old: from, New: to}
	}
	return t, nil
}

func aspectOf(f gpu.Format) gpu.ImageAspectFlags {
	switch f {
	case gpu.FormatD32Sfloat:
		return gpu.ImageAspectDepth
	case gpu.FormatD32SfloatS8Uint, gpu.FormatD24UnormS8Uint:
		return gpu.ImageAspectDepth | gpu.ImageAspectStencil
	}
	return gpu.ImageAspectColor
}
