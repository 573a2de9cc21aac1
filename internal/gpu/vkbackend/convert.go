package vkbackend

import (
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// Flag types in package gpu allocate bits with 1<<iota; each table lists the
// Vulkan bit for gpu bit i.
var (
	bufferUsageBits = []uint32{
		uint32(vulkan.BufferUsageTransferSrcBit),
		uint32(vulkan.BufferUsageTransferDstBit),
		uint32(vulkan.BufferUsageUniformBufferBit),
		uint32(vulkan.BufferUsageIndexBufferBit),
		uint32(vulkan.BufferUsageVertexBufferBit),
	}
	imageUsageBits = []uint32{
		uint32(vulkan.ImageUsageTransferSrcBit),
		uint32(vulkan.ImageUsageTransferDstBit),
		uint32(vulkan.ImageUsageSampledBit),
		uint32(vulkan.ImageUsageColorAttachmentBit),
		uint32(vulkan.ImageUsageDepthStencilAttachmentBit),
	}
	aspectBits = []uint32{
		uint32(vulkan.ImageAspectColorBit),
		uint32(vulkan.ImageAspectDepthBit),
		uint32(vulkan.ImageAspectStencilBit),
	}
	memoryPropertyBits = []uint32{
		uint32(vulkan.MemoryPropertyDeviceLocalBit),
		uint32(vulkan.MemoryPropertyHostVisibleBit),
		uint32(vulkan.MemoryPropertyHostCoherentBit),
		uint32(vulkan.MemoryPropertyHostCachedBit),
		uint32(vulkan.MemoryPropertyLazilyAllocatedBit),
	}
	stageBits = []uint32{
		uint32(vulkan.PipelineStageTopOfPipeBit),
		uint32(vulkan.PipelineStageTransferBit),
		uint32(vulkan.PipelineStageFragmentShaderBit),
		uint32(vulkan.PipelineStageEarlyFragmentTestsBit),
		uint32(vulkan.PipelineStageColorAttachmentOutputBit),
		uint32(vulkan.PipelineStageBottomOfPipeBit),
	}
	accessBits = []uint32{
		uint32(vulkan.AccessTransferWriteBit),
		uint32(vulkan.AccessShaderReadBit),
		uint32(vulkan.AccessColorAttachmentWriteBit),
		uint32(vulkan.AccessDepthStencilAttachmentWriteBit),
	}
	formatFeatureBits = []uint32{
		uint32(vulkan.FormatFeatureSampledImageBit),
		uint32(vulkan.FormatFeatureDepthStencilAttachmentBit),
	}
	shaderStageBits = []uint32{
		uint32(vulkan.ShaderStageVertexBit),
		uint32(vulkan.ShaderStageFragmentBit),
	}
)

func toBits(f uint32, table []uint32) uint32 {
	var out uint32
	for i, b := range table {
		if f&(1<<i) != 0 {
			out |= b
		}
	}
	return out
}

func fromBits(v uint32, table []uint32) uint32 {
	var out uint32
	for i, b := range table {
		if v&b == b {
			out |= 1 << i
		}
	}
	return out
}

var formats = map[gpu.Format]vulkan.Format{
	gpu.FormatUndefined:       vulkan.FormatUndefined,
	gpu.FormatB8G8R8A8Srgb:    vulkan.FormatB8g8r8a8Srgb,
	gpu.FormatB8G8R8A8Unorm:   vulkan.FormatB8g8r8a8Unorm,
	gpu.FormatR8G8B8A8Srgb:    vulkan.FormatR8g8b8a8Srgb,
	gpu.FormatR8G8B8A8Unorm:   vulkan.FormatR8g8b8a8Unorm,
	gpu.FormatR32G32Sfloat:    vulkan.FormatR32g32Sfloat,
	gpu.FormatR32G32B32Sfloat: vulkan.FormatR32g32b32Sfloat,
	gpu.FormatD32Sfloat:       vulkan.FormatD32Sfloat,
	gpu.FormatD32SfloatS8Uint: vulkan.FormatD32SfloatS8Uint,
	gpu.FormatD24UnormS8Uint:  vulkan.FormatD24UnormS8Uint,
}

var formatsBack = func() map[vulkan.Format]gpu.Format {
	m := make(map[vulkan.Format]gpu.Format, len(formats))
	for g, v := range formats {
		m[v] = g
	}
	return m
}()

func vkFormat(f gpu.Format) vulkan.Format { return formats[f] }

// gpuFormat reports false for formats the renderer has no name for.
func gpuFormat(f vulkan.Format) (gpu.Format, bool) {
	g, ok := formatsBack[f]
	return g, ok
}

func vkColorSpace(c gpu.ColorSpace) vulkan.ColorSpace {
	switch c {
	case gpu.ColorSpaceExtendedSrgbLinear:
		return vulkan.ColorSpaceExtendedSrgbLinear
	case gpu.ColorSpaceHdr10St2084:
		return vulkan.ColorSpaceHdr10St2084
	}
	return vulkan.ColorSpaceSrgbNonlinear
}

func gpuColorSpace(c vulkan.ColorSpace) (gpu.ColorSpace, bool) {
	switch c {
	case vulkan.ColorSpaceSrgbNonlinear:
		return gpu.ColorSpaceSrgbNonlinear, true
	case vulkan.ColorSpaceExtendedSrgbLinear:
		return gpu.ColorSpaceExtendedSrgbLinear, true
	case vulkan.ColorSpaceHdr10St2084:
		return gpu.ColorSpaceHdr10St2084, true
	}
	return 0, false
}

var presentModes = []vulkan.PresentMode{
	gpu.PresentModeImmediate:   vulkan.PresentModeImmediate,
	gpu.PresentModeMailbox:     vulkan.PresentModeMailbox,
	gpu.PresentModeFifo:        vulkan.PresentModeFifo,
	gpu.PresentModeFifoRelaxed: vulkan.PresentModeFifoRelaxed,
}

func vkPresentMode(m gpu.PresentMode) vulkan.PresentMode { return presentModes[m] }

func gpuPresentMode(m vulkan.PresentMode) (gpu.PresentMode, bool) {
	for g, v := range presentModes {
		if v == m {
			return gpu.PresentMode(g), true
		}
	}
	return 0, false
}

var layouts = []vulkan.ImageLayout{
	gpu.ImageLayoutUndefined:                     vulkan.ImageLayoutUndefined,
	gpu.ImageLayoutGeneral:                       vulkan.ImageLayoutGeneral,
	gpu.ImageLayoutColorAttachmentOptimal:        vulkan.ImageLayoutColorAttachmentOptimal,
	gpu.ImageLayoutDepthStencilAttachmentOptimal: vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	gpu.ImageLayoutShaderReadOnlyOptimal:         vulkan.ImageLayoutShaderReadOnlyOptimal,
	gpu.ImageLayoutTransferSrcOptimal:            vulkan.ImageLayoutTransferSrcOptimal,
	gpu.ImageLayoutTransferDstOptimal:            vulkan.ImageLayoutTransferDstOptimal,
	gpu.ImageLayoutPresentSrc:                    vulkan.ImageLayoutPresentSrc,
}

func vkLayout(l gpu.ImageLayout) vulkan.ImageLayout { return layouts[l] }

func gpuAdapterType(t vulkan.PhysicalDeviceType) gpu.AdapterType {
	switch t {
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return gpu.AdapterTypeIntegratedGPU
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return gpu.AdapterTypeDiscreteGPU
	case vulkan.PhysicalDeviceTypeVirtualGpu:
		return gpu.AdapterTypeVirtualGPU
	case vulkan.PhysicalDeviceTypeCpu:
		return gpu.AdapterTypeCPU
	}
	return gpu.AdapterTypeOther
}

func vkTiling(t gpu.ImageTiling) vulkan.ImageTiling {
	if t == gpu.ImageTilingLinear {
		return vulkan.ImageTilingLinear
	}
	return vulkan.ImageTilingOptimal
}

func vkSharing(m gpu.SharingMode) vulkan.SharingMode {
	if m == gpu.SharingModeConcurrent {
		return vulkan.SharingModeConcurrent
	}
	return vulkan.SharingModeExclusive
}

func vkIndexType(t gpu.IndexType) vulkan.IndexType {
	if t == gpu.IndexTypeUint32 {
		return vulkan.IndexTypeUint32
	}
	return vulkan.IndexTypeUint16
}

func vkDescriptorType(t gpu.DescriptorType) vulkan.DescriptorType {
	if t == gpu.DescriptorTypeCombinedImageSampler {
		return vulkan.DescriptorTypeCombinedImageSampler
	}
	return vulkan.DescriptorTypeUniformBuffer
}

var loadOps = []vulkan.AttachmentLoadOp{
	gpu.AttachmentLoadOpLoad:     vulkan.AttachmentLoadOpLoad,
	gpu.AttachmentLoadOpClear:    vulkan.AttachmentLoadOpClear,
	gpu.AttachmentLoadOpDontCare: vulkan.AttachmentLoadOpDontCare,
}

func vkStoreOp(op gpu.AttachmentStoreOp) vulkan.AttachmentStoreOp {
	if op == gpu.AttachmentStoreOpDontCare {
		return vulkan.AttachmentStoreOpDontCare
	}
	return vulkan.AttachmentStoreOpStore
}

func vkTopology(t gpu.PrimitiveTopology) vulkan.PrimitiveTopology {
	if t == gpu.PrimitiveTopologyTriangleStrip {
		return vulkan.PrimitiveTopologyTriangleStrip
	}
	return vulkan.PrimitiveTopologyTriangleList
}

func vkCullMode(m gpu.CullMode) vulkan.CullModeFlags {
	switch m {
	case gpu.CullModeFront:
		return vulkan.CullModeFlags(vulkan.CullModeFrontBit)
	case gpu.CullModeBack:
		return vulkan.CullModeFlags(vulkan.CullModeBackBit)
	}
	return vulkan.CullModeFlags(vulkan.CullModeNone)
}

func vkFrontFace(f gpu.FrontFace) vulkan.FrontFace {
	if f == gpu.FrontFaceClockwise {
		return vulkan.FrontFaceClockwise
	}
	return vulkan.FrontFaceCounterClockwise
}

var compareOps = []vulkan.CompareOp{
	gpu.CompareOpNever:       vulkan.CompareOpNever,
	gpu.CompareOpLess:        vulkan.CompareOpLess,
	gpu.CompareOpLessOrEqual: vulkan.CompareOpLessOrEqual,
	gpu.CompareOpAlways:      vulkan.CompareOpAlways,
}

func vkDynamicState(s gpu.DynamicState) vulkan.DynamicState {
	if s == gpu.DynamicStateScissor {
		return vulkan.DynamicStateScissor
	}
	return vulkan.DynamicStateViewport
}

func vkBool(b bool) vulkan.Bool32 {
	if b {
		return vulkan.True
	}
	return vulkan.False
}

func vkSubpass(i uint32) uint32 {
	if i == gpu.SubpassExternal {
		return vulkan.SubpassExternal
	}
	return i
}

func resultError(op string, res vulkan.Result) error {
	return &gpu.ResultError{Op: op, Code: int32(res), Err: vulkan.Error(res)}
}

// status classifies acquire and present results. Anything that is neither
// success nor a stale swapchain is fatal.
func status(op string, res vulkan.Result) (gpu.Status, error) {
	switch res {
	case vulkan.Success:
		return gpu.StatusOK, nil
	case vulkan.Suboptimal:
		return gpu.StatusSuboptimal, nil
	case vulkan.ErrorOutOfDate:
		return gpu.StatusOutOfDate, nil
	}
	return gpu.StatusFatal, resultError(op, res)
}
