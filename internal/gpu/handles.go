// Package gpu is the backend-neutral surface the renderer is written against.
// Handles are opaque integers issued by a backend; zero is the null handle.
package gpu

type (
	Buffer              uint64
	DeviceMemory        uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	ShaderModule        uint64
	RenderPass          uint64
	PipelineLayout      uint64
	Pipeline            uint64
	Framebuffer         uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
	Swapchain           uint64
)

// DeviceSize is a byte count or offset in device memory.
type DeviceSize uint64

// WholeSize maps or describes everything from an offset to the end.
const WholeSize = ^DeviceSize(0)

// NoTimeout is the fence/acquire timeout used throughout: wait forever.
const NoTimeout = ^uint64(0)
