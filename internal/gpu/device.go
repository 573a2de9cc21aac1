package gpu

// Instance is an API instance bound to one presentation surface.
type Instance interface {
	Adapters() ([]Adapter, error)
	Destroy()
}

// Adapter is a physical device as seen through the instance's surface.
type Adapter interface {
	Properties() AdapterProperties
	Features() AdapterFeatures
	QueueFamilies() []QueueFamily
	Extensions() ([]string, error)
	SurfaceSupport() (SurfaceSupport, error)
	MemoryProperties() MemoryProperties
	FormatProperties(f Format) FormatProperties
	Open(info DeviceCreateInfo) (Device, error)
}

// Queue submits work and presents images.
type Queue interface {
	Submit(info SubmitInfo, fence Fence) error
	Present(info PresentInfo) (Status, error)
	WaitIdle() error
}

// Device is a logical device. Every Create/Allocate has a matching
// Destroy/Free; destroying a null handle is a no-op.
type Device interface {
	Queue(family uint32) Queue
	SurfaceCapabilities() (SurfaceCapabilities, error)
	WaitIdle() error
	Destroy()

	CreateBuffer(info BufferCreateInfo) (Buffer, error)
	DestroyBuffer(b Buffer)
	BufferMemoryRequirements(b Buffer) MemoryRequirements
	BindBufferMemory(b Buffer, m DeviceMemory, offset DeviceSize) error

	CreateImage(info ImageCreateInfo) (Image, error)
	DestroyImage(img Image)
	ImageMemoryRequirements(img Image) MemoryRequirements
	BindImageMemory(img Image, m DeviceMemory, offset DeviceSize) error

	AllocateMemory(size DeviceSize, typeIndex uint32) (DeviceMemory, error)
	FreeMemory(m DeviceMemory)
	// MapMemory returns a host view of size bytes starting at offset. The
	// slice is valid until UnmapMemory.
	MapMemory(m DeviceMemory, offset, size DeviceSize) ([]byte, error)
	UnmapMemory(m DeviceMemory)

	CreateImageView(info ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateSampler(info SamplerCreateInfo) (Sampler, error)
	DestroySampler(s Sampler)

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, Status, error)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(info DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateCommandPool(family uint32) (CommandPool, error)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, cbs []CommandBuffer)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	WaitForFence(f Fence, timeout uint64) error
	ResetFence(f Fence) error

	Recorder
}

// Recorder records commands into a command buffer.
type Recorder interface {
	BeginCommandBuffer(cb CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, region BufferCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, layout ImageLayout, region BufferImageCopy)
	CmdPipelineBarrier(cb CommandBuffer, srcStage, dstStage PipelineStageFlags, barrier ImageBarrier)

	CmdBeginRenderPass(cb CommandBuffer, info RenderPassBeginInfo)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdSetViewport(cb CommandBuffer, vp Viewport)
	CmdSetScissor(cb CommandBuffer, r Rect2D)
	CmdBindVertexBuffer(cb CommandBuffer, b Buffer, offset DeviceSize)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, offset DeviceSize, t IndexType)
	CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount uint32)
}
