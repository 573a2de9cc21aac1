package gpu

import (
	"fmt"
	"math"
)

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Srgb
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

var formatNames = map[Format]string{
	FormatUndefined:       "UNDEFINED",
	FormatB8G8R8A8Srgb:    "B8G8R8A8_SRGB",
	FormatB8G8R8A8Unorm:   "B8G8R8A8_UNORM",
	FormatR8G8B8A8Srgb:    "R8G8B8A8_SRGB",
	FormatR8G8B8A8Unorm:   "R8G8B8A8_UNORM",
	FormatR32G32Sfloat:    "R32G32_SFLOAT",
	FormatR32G32B32Sfloat: "R32G32B32_SFLOAT",
	FormatD32Sfloat:       "D32_SFLOAT",
	FormatD32SfloatS8Uint: "D32_SFLOAT_S8_UINT",
	FormatD24UnormS8Uint:  "D24_UNORM_S8_UINT",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

type ColorSpace int

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceExtendedSrgbLinear
	ColorSpaceHdr10St2084
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int(m))
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

// UndefinedExtent in SurfaceCapabilities.CurrentExtent.Width means the surface
// size is decided by the swapchain.
const UndefinedExtent = math.MaxUint32

type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32 // 0 means no upper bound
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type AdapterType int

const (
	AdapterTypeOther AdapterType = iota
	AdapterTypeIntegratedGPU
	AdapterTypeDiscreteGPU
	AdapterTypeVirtualGPU
	AdapterTypeCPU
)

func (t AdapterType) String() string {
	switch t {
	case AdapterTypeIntegratedGPU:
		return "integrated"
	case AdapterTypeDiscreteGPU:
		return "discrete"
	case AdapterTypeVirtualGPU:
		return "virtual"
	case AdapterTypeCPU:
		return "cpu"
	}
	return "other"
}

type AdapterProperties struct {
	Name                 string
	Type                 AdapterType
	MaxImageDimension2D  uint32
	MaxSamplerAnisotropy float32
}

type AdapterFeatures struct {
	SamplerAnisotropy bool
}

type QueueFamily struct {
	Graphics bool
	Present  bool
	Count    uint32
}

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
	MemoryPropertyHostCached
	MemoryPropertyLazilyAllocated
)

func (f MemoryPropertyFlags) String() string {
	if f == 0 {
		return "none"
	}
	names := []string{"device-local", "host-visible", "host-coherent", "host-cached", "lazily-allocated"}
	s := ""
	for i, n := range names {
		if f&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n
	}
	return s
}

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     uint32
}

type MemoryProperties struct {
	Types []MemoryType
}

type MemoryRequirements struct {
	Size           DeviceSize
	Alignment      DeviceSize
	MemoryTypeBits uint32
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc BufferUsageFlags = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniformBuffer
	BufferUsageIndexBuffer
	BufferUsageVertexBuffer
)

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc ImageUsageFlags = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

type ImageAspectFlags uint32

const (
	ImageAspectColor ImageAspectFlags = 1 << iota
	ImageAspectDepth
	ImageAspectStencil
)

type ImageTiling int

const (
	ImageTilingOptimal ImageTiling = iota
	ImageTilingLinear
)

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutColorAttachmentOptimal
	ImageLayoutDepthStencilAttachmentOptimal
	ImageLayoutShaderReadOnlyOptimal
	ImageLayoutTransferSrcOptimal
	ImageLayoutTransferDstOptimal
	ImageLayoutPresentSrc
)

var layoutNames = [...]string{
	"undefined",
	"general",
	"color-attachment-optimal",
	"depth-stencil-attachment-optimal",
	"shader-read-only-optimal",
	"transfer-src-optimal",
	"transfer-dst-optimal",
	"present-src",
}

func (l ImageLayout) String() string {
	if l >= 0 && int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

// AllImageLayouts lists every layout the backends can express.
func AllImageLayouts() []ImageLayout {
	out := make([]ImageLayout, len(layoutNames))
	for i := range out {
		out[i] = ImageLayout(i)
	}
	return out
}

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe PipelineStageFlags = 1 << iota
	PipelineStageTransfer
	PipelineStageFragmentShader
	PipelineStageEarlyFragmentTests
	PipelineStageColorAttachmentOutput
	PipelineStageBottomOfPipe
)

type AccessFlags uint32

const (
	AccessTransferWrite AccessFlags = 1 << iota
	AccessShaderRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentWrite
)

type SharingMode int

const (
	SharingModeExclusive SharingMode = iota
	SharingModeConcurrent
)

type FormatFeatureFlags uint32

const (
	FormatFeatureSampledImage FormatFeatureFlags = 1 << iota
	FormatFeatureDepthStencilAttachment
)

type FormatProperties struct {
	LinearTilingFeatures  FormatFeatureFlags
	OptimalTilingFeatures FormatFeatureFlags
}

type IndexType int

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

type ShaderStageFlags uint32

const (
	ShaderStageVertex ShaderStageFlags = 1 << iota
	ShaderStageFragment
)

type DescriptorType int

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeCombinedImageSampler
)

type AttachmentLoadOp int

const (
	AttachmentLoadOpLoad AttachmentLoadOp = iota
	AttachmentLoadOpClear
	AttachmentLoadOpDontCare
)

type AttachmentStoreOp int

const (
	AttachmentStoreOpStore AttachmentStoreOp = iota
	AttachmentStoreOpDontCare
)

type PrimitiveTopology int

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
)

type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type FrontFace int

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpLessOrEqual
	CompareOpAlways
)

type DynamicState int

const (
	DynamicStateViewport DynamicState = iota
	DynamicStateScissor
)

// SubpassExternal refers to work outside the render pass in a dependency.
const SubpassExternal = ^uint32(0)
