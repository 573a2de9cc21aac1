package gpu

type DeviceCreateInfo struct {
	QueueFamilies     []uint32 // one queue requested from each, priority 1.0
	Extensions        []string
	SamplerAnisotropy bool
}

type BufferCreateInfo struct {
	Size        DeviceSize
	Usage       BufferUsageFlags
	SharingMode SharingMode
}

type ImageCreateInfo struct {
	Width  uint32
	Height uint32
	Format Format
	Tiling ImageTiling
	Usage  ImageUsageFlags
}

type ImageViewCreateInfo struct {
	Image  Image
	Format Format
	Aspect ImageAspectFlags
}

type SamplerCreateInfo struct {
	Anisotropy    bool
	MaxAnisotropy float32
}

type SwapchainCreateInfo struct {
	MinImageCount      uint32
	Format             SurfaceFormat
	Extent             Extent2D
	PresentMode        PresentMode
	SharingMode        SharingMode
	QueueFamilyIndices []uint32
}

type AttachmentDescription struct {
	Format         Format
	LoadOp         AttachmentLoadOp
	StoreOp        AttachmentStoreOp
	StencilLoadOp  AttachmentLoadOp
	StencilStoreOp AttachmentStoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

type AttachmentReference struct {
	Attachment uint32
	Layout     ImageLayout
}

type SubpassDescription struct {
	ColorAttachments []AttachmentReference
	DepthAttachment  *AttachmentReference
}

type SubpassDependency struct {
	SrcSubpass    uint32
	DstSubpass    uint32
	SrcStageMask  PipelineStageFlags
	DstStageMask  PipelineStageFlags
	SrcAccessMask AccessFlags
	DstAccessMask AccessFlags
}

type RenderPassCreateInfo struct {
	Attachments  []AttachmentDescription
	Subpasses    []SubpassDescription
	Dependencies []SubpassDependency
}

type ShaderStage struct {
	Stage  ShaderStageFlags
	Module ShaderModule
	Entry  string
}

type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type GraphicsPipelineCreateInfo struct {
	Stages           []ShaderStage
	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute
	Topology         PrimitiveTopology
	CullMode         CullMode
	FrontFace        FrontFace
	DepthTest        bool
	DepthWrite       bool
	DepthCompare     CompareOp
	BlendEnable      bool
	DynamicStates    []DynamicState
	Layout           PipelineLayout
	RenderPass       RenderPass
	Subpass          uint32
}

type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolCreateInfo struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset DeviceSize
	Range  DeviceSize
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// DescriptorWrite updates one binding of a set; exactly one of Buffer and
// Image is set, matching Type.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  *DescriptorBufferInfo
	Image   *DescriptorImageInfo
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

type ImageBarrier struct {
	Image     Image
	Aspect    ImageAspectFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

type BufferCopy struct {
	SrcOffset DeviceSize
	DstOffset DeviceSize
	Size      DeviceSize
}

type BufferImageCopy struct {
	BufferOffset DeviceSize
	Aspect       ImageAspectFlags
	Width        uint32
	Height       uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type RenderPassBeginInfo struct {
	RenderPass   RenderPass
	Framebuffer  Framebuffer
	Area         Rect2D
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}
