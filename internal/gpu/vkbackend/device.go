package vkbackend

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

type allocation struct {
	mem  vulkan.DeviceMemory
	size gpu.DeviceSize
}

// Device is a logical device. It is not safe for concurrent use; the render
// loop owns it.
type Device struct {
	adapter *Adapter
	dev     vulkan.Device
	log     *slog.Logger
	queues  map[uint32]*Queue

	next         uint64
	buffers      table[gpu.Buffer, vulkan.Buffer]
	memory       table[gpu.DeviceMemory, allocation]
	images       table[gpu.Image, vulkan.Image]
	views        table[gpu.ImageView, vulkan.ImageView]
	samplers     table[gpu.Sampler, vulkan.Sampler]
	shaders      table[gpu.ShaderModule, vulkan.ShaderModule]
	renderPasses table[gpu.RenderPass, vulkan.RenderPass]
	layouts      table[gpu.PipelineLayout, vulkan.PipelineLayout]
	pipelines    table[gpu.Pipeline, vulkan.Pipeline]
	framebuffers table[gpu.Framebuffer, vulkan.Framebuffer]
	setLayouts   table[gpu.DescriptorSetLayout, vulkan.DescriptorSetLayout]
	descPools    table[gpu.DescriptorPool, vulkan.DescriptorPool]
	sets         table[gpu.DescriptorSet, vulkan.DescriptorSet]
	cmdPools     table[gpu.CommandPool, vulkan.CommandPool]
	cmdBuffers   table[gpu.CommandBuffer, vulkan.CommandBuffer]
	semaphores   table[gpu.Semaphore, vulkan.Semaphore]
	fences       table[gpu.Fence, vulkan.Fence]
	swapchains   table[gpu.Swapchain, vulkan.Swapchain]

	// children released implicitly with their parent
	setOwner       map[gpu.DescriptorSet]gpu.DescriptorPool
	cmdOwner       map[gpu.CommandBuffer]gpu.CommandPool
	swapchainImage map[gpu.Swapchain][]gpu.Image
}

var _ gpu.Device = (*Device)(nil)

func newDevice(a *Adapter, dev vulkan.Device) *Device {
	d := &Device{
		adapter:        a,
		dev:            dev,
		log:            a.in.log,
		queues:         make(map[uint32]*Queue),
		setOwner:       make(map[gpu.DescriptorSet]gpu.DescriptorPool),
		cmdOwner:       make(map[gpu.CommandBuffer]gpu.CommandPool),
		swapchainImage: make(map[gpu.Swapchain][]gpu.Image),
	}
	d.buffers = newTable[gpu.Buffer, vulkan.Buffer](&d.next)
	d.memory = newTable[gpu.DeviceMemory, allocation](&d.next)
	d.images = newTable[gpu.Image, vulkan.Image](&d.next)
	d.views = newTable[gpu.ImageView, vulkan.ImageView](&d.next)
	d.samplers = newTable[gpu.Sampler, vulkan.Sampler](&d.next)
	d.shaders = newTable[gpu.ShaderModule, vulkan.ShaderModule](&d.next)
	d.renderPasses = newTable[gpu.RenderPass, vulkan.RenderPass](&d.next)
	d.layouts = newTable[gpu.PipelineLayout, vulkan.PipelineLayout](&d.next)
	d.pipelines = newTable[gpu.Pipeline, vulkan.Pipeline](&d.next)
	d.framebuffers = newTable[gpu.Framebuffer, vulkan.Framebuffer](&d.next)
	d.setLayouts = newTable[gpu.DescriptorSetLayout, vulkan.DescriptorSetLayout](&d.next)
	d.descPools = newTable[gpu.DescriptorPool, vulkan.DescriptorPool](&d.next)
	d.sets = newTable[gpu.DescriptorSet, vulkan.DescriptorSet](&d.next)
	d.cmdPools = newTable[gpu.CommandPool, vulkan.CommandPool](&d.next)
	d.cmdBuffers = newTable[gpu.CommandBuffer, vulkan.CommandBuffer](&d.next)
	d.semaphores = newTable[gpu.Semaphore, vulkan.Semaphore](&d.next)
	d.fences = newTable[gpu.Fence, vulkan.Fence](&d.next)
	d.swapchains = newTable[gpu.Swapchain, vulkan.Swapchain](&d.next)
	return d
}

func (d *Device) Queue(family uint32) gpu.Queue {
	if q, ok := d.queues[family]; ok {
		return q
	}
	var vq vulkan.Queue
	vulkan.GetDeviceQueue(d.dev, family, 0, &vq)
	q := &Queue{d: d, q: vq}
	d.queues[family] = q
	return q
}

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	caps, _, err := surfaceCapabilities(d.adapter.pd, d.adapter.in.surface)
	return caps, err
}

func (d *Device) WaitIdle() error {
	if res := vulkan.DeviceWaitIdle(d.dev); res != vulkan.Success {
		return resultError("device wait idle", res)
	}
	return nil
}

// Destroy destroys the logical device. Anything still registered at this
// point leaked; it is reported rather than released.
func (d *Device) Destroy() {
	if d.dev == vulkan.Device(vulkan.NullHandle) {
		return
	}
	live := d.buffers.len() + d.memory.len() + d.images.len() + d.views.len() +
		d.samplers.len() + d.shaders.len() + d.renderPasses.len() + d.layouts.len() +
		d.pipelines.len() + d.framebuffers.len() + d.setLayouts.len() + d.descPools.len() +
		d.cmdPools.len() + d.semaphores.len() + d.fences.len() + d.swapchains.len()
	if live > 0 {
		d.log.Warn("destroying device with live objects", slog.Int("count", live))
	}
	vulkan.DestroyDevice(d.dev, nil)
	d.dev = vulkan.Device(vulkan.NullHandle)
}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        vulkan.DeviceSize(info.Size),
		Usage:       vulkan.BufferUsageFlags(toBits(uint32(info.Usage), bufferUsageBits)),
		SharingMode: vkSharing(info.SharingMode),
	}
	var buffer vulkan.Buffer
	if res := vulkan.CreateBuffer(d.dev, &bufferInfo, nil, &buffer); res != vulkan.Success {
		return 0, resultError("create buffer", res)
	}
	return d.buffers.add(buffer), nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if buffer, ok := d.buffers.take(b); ok {
		vulkan.DestroyBuffer(d.dev, buffer, nil)
	}
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	var req vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(d.dev, d.buffers.get(b), &req)
	req.Deref()
	return memoryRequirements(req)
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset gpu.DeviceSize) error {
	res := vulkan.BindBufferMemory(d.dev, d.buffers.get(b), d.memory.get(m).mem, vulkan.DeviceSize(offset))
	if res != vulkan.Success {
		return resultError("bind buffer memory", res)
	}
	return nil
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vkFormat(info.Format),
		Tiling:        vkTiling(info.Tiling),
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         vulkan.ImageUsageFlags(toBits(uint32(info.Usage), imageUsageBits)),
		Samples:       vulkan.SampleCount1Bit,
		SharingMode:   vulkan.SharingModeExclusive,
	}
	var image vulkan.Image
	if res := vulkan.CreateImage(d.dev, &createInfo, nil, &image); res != vulkan.Success {
		return 0, resultError("create image", res)
	}
	return d.images.add(image), nil
}

// DestroyImage ignores swapchain images; they go with their swapchain.
func (d *Device) DestroyImage(img gpu.Image) {
	for _, owned := range d.swapchainImage {
		for _, s := range owned {
			if s == img {
				return
			}
		}
	}
	if image, ok := d.images.take(img); ok {
		vulkan.DestroyImage(d.dev, image, nil)
	}
}

func (d *Device) ImageMemoryRequirements(img gpu.Image) gpu.MemoryRequirements {
	var req vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(d.dev, d.images.get(img), &req)
	req.Deref()
	return memoryRequirements(req)
}

func (d *Device) BindImageMemory(img gpu.Image, m gpu.DeviceMemory, offset gpu.DeviceSize) error {
	res := vulkan.BindImageMemory(d.dev, d.images.get(img), d.memory.get(m).mem, vulkan.DeviceSize(offset))
	if res != vulkan.Success {
		return resultError("bind image memory", res)
	}
	return nil
}

func memoryRequirements(req vulkan.MemoryRequirements) gpu.MemoryRequirements {
	return gpu.MemoryRequirements{
		Size:           gpu.DeviceSize(req.Size),
		Alignment:      gpu.DeviceSize(req.Alignment),
		MemoryTypeBits: req.MemoryTypeBits,
	}
}

func (d *Device) AllocateMemory(size gpu.DeviceSize, typeIndex uint32) (gpu.DeviceMemory, error) {
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vulkan.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(d.dev, &allocInfo, nil, &memory); res != vulkan.Success {
		return 0, resultError("allocate memory", res)
	}
	return d.memory.add(allocation{mem: memory, size: size}), nil
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	if a, ok := d.memory.take(m); ok {
		vulkan.FreeMemory(d.dev, a.mem, nil)
	}
}

func (d *Device) MapMemory(m gpu.DeviceMemory, offset, size gpu.DeviceSize) ([]byte, error) {
	a, ok := d.memory.lookup(m)
	if !ok {
		return nil, errors.Newf("map memory: unknown allocation %d", m)
	}
	if size == gpu.WholeSize {
		size = a.size - offset
	}
	var data unsafe.Pointer
	res := vulkan.MapMemory(d.dev, a.mem, vulkan.DeviceSize(offset), vulkan.DeviceSize(size), 0, &data)
	if res != vulkan.Success {
		return nil, resultError("map memory", res)
	}
	return hostBytes(data, size), nil
}

// hostBytes views size bytes of mapped memory starting at p.
func hostBytes(p unsafe.Pointer, size gpu.DeviceSize) []byte {
	return unsafe.Slice((*byte)(p), int(size))
}

func (d *Device) UnmapMemory(m gpu.DeviceMemory) {
	vulkan.UnmapMemory(d.dev, d.memory.get(m).mem)
}

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(info.Image),
		ViewType: vulkan.ImageViewType2d,
		Format:   vkFormat(info.Format),
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(info.Aspect),
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(d.dev, &viewInfo, nil, &view); res != vulkan.Success {
		return 0, resultError("create image view", res)
	}
	return d.views.add(view), nil
}

func subresourceRange(aspect gpu.ImageAspectFlags) vulkan.ImageSubresourceRange {
	return vulkan.ImageSubresourceRange{
		AspectMask:     vulkan.ImageAspectFlags(toBits(uint32(aspect), aspectBits)),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	if view, ok := d.views.take(v); ok {
		vulkan.DestroyImageView(d.dev, view, nil)
	}
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	if sampler, ok := d.samplers.take(s); ok {
		vulkan.DestroySampler(d.dev, sampler, nil)
	}
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	_, transform, err := surfaceCapabilities(d.adapter.pd, d.adapter.in.surface)
	if err != nil {
		return 0, err
	}
	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          d.adapter.in.surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vkFormat(info.Format.Format),
		ImageColorSpace:  vkColorSpace(info.Format.ColorSpace),
		ImageExtent:      vulkan.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		ImageSharingMode: vkSharing(info.SharingMode),
		PreTransform:     transform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      vkPresentMode(info.PresentMode),
		Clipped:          vulkan.True,
		OldSwapchain:     vulkan.Swapchain(vulkan.NullHandle),
	}
	if info.SharingMode == gpu.SharingModeConcurrent {
		createInfo.QueueFamilyIndexCount = uint32(len(info.QueueFamilyIndices))
		createInfo.PQueueFamilyIndices = info.QueueFamilyIndices
	}
	var sc vulkan.Swapchain
	if res := vulkan.CreateSwapchain(d.dev, &createInfo, nil, &sc); res != vulkan.Success {
		return 0, resultError("create swapchain", res)
	}
	return d.swapchains.add(sc), nil
}

func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	sc, ok := d.swapchains.take(h)
	if !ok {
		return
	}
	for _, img := range d.swapchainImage[h] {
		d.images.take(img)
	}
	delete(d.swapchainImage, h)
	vulkan.DestroySwapchain(d.dev, sc, nil)
}

// SwapchainImages registers the presentation images once per swapchain.
func (d *Device) SwapchainImages(h gpu.Swapchain) ([]gpu.Image, error) {
	if imgs, ok := d.swapchainImage[h]; ok {
		return imgs, nil
	}
	sc := d.swapchains.get(h)
	var count uint32
	if res := vulkan.GetSwapchainImages(d.dev, sc, &count, nil); res != vulkan.Success {
		return nil, resultError("get swapchain images", res)
	}
	images := make([]vulkan.Image, count)
	if res := vulkan.GetSwapchainImages(d.dev, sc, &count, images); res != vulkan.Success {
		return nil, resultError("get swapchain images", res)
	}
	out := make([]gpu.Image, len(images))
	for i, img := range images {
		out[i] = d.images.add(img)
	}
	d.swapchainImage[h] = out
	return out, nil
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Status, error) {
	var idx uint32
	res := vulkan.AcquireNextImage(d.dev, d.swapchains.get(h), timeout, d.semaphores.get(signal), vulkan.Fence(vulkan.NullHandle), &idx)
	st, err := status("acquire next image", res)
	return idx, st, err
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Newf("shader code length %d is not a multiple of 4", len(code))
	}
	words := spirvWords(code)
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(d.dev, &createInfo, nil, &module); res != vulkan.Success {
		return 0, resultError("create shader module", res)
	}
	return d.shaders.add(module), nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	if module, ok := d.shaders.take(m); ok {
		vulkan.DestroyShaderModule(d.dev, module, nil)
	}
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	attachments := make([]vulkan.AttachmentDescription, len(info.Attachments))
	for i, a := range info.Attachments {
		attachments[i] = vulkan.AttachmentDescription{
			Format:         vkFormat(a.Format),
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         loadOps[a.LoadOp],
			StoreOp:        vkStoreOp(a.StoreOp),
			StencilLoadOp:  loadOps[a.StencilLoadOp],
			StencilStoreOp: vkStoreOp(a.StencilStoreOp),
			InitialLayout:  vkLayout(a.InitialLayout),
			FinalLayout:    vkLayout(a.FinalLayout),
		}
	}
	subpasses := make([]vulkan.SubpassDescription, len(info.Subpasses))
	for i, s := range info.Subpasses {
		colors := make([]vulkan.AttachmentReference, len(s.ColorAttachments))
		for j, c := range s.ColorAttachments {
			colors[j] = vulkan.AttachmentReference{Attachment: c.Attachment, Layout: vkLayout(c.Layout)}
		}
		subpasses[i] = vulkan.SubpassDescription{
			PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colors)),
			PColorAttachments:    colors,
		}
		if s.DepthAttachment != nil {
			subpasses[i].PDepthStencilAttachment = &vulkan.AttachmentReference{
				Attachment: s.DepthAttachment.Attachment,
				Layout:     vkLayout(s.DepthAttachment.Layout),
			}
		}
	}
	deps := make([]vulkan.SubpassDependency, len(info.Dependencies))
	for i, dep := range info.Dependencies {
		deps[i] = vulkan.SubpassDependency{
			SrcSubpass:    vkSubpass(dep.SrcSubpass),
			DstSubpass:    vkSubpass(dep.DstSubpass),
			SrcStageMask:  vulkan.PipelineStageFlags(toBits(uint32(dep.SrcStageMask), stageBits)),
			DstStageMask:  vulkan.PipelineStageFlags(toBits(uint32(dep.DstStageMask), stageBits)),
			SrcAccessMask: vulkan.AccessFlags(toBits(uint32(dep.SrcAccessMask), accessBits)),
			DstAccessMask: vulkan.AccessFlags(toBits(uint32(dep.DstAccessMask), accessBits)),
		}
	}
	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}
	var rp vulkan.RenderPass
	if res := vulkan.CreateRenderPass(d.dev, &createInfo, nil, &rp); res != vulkan.Success {
		return 0, resultError("create render pass", res)
	}
	return d.renderPasses.add(rp), nil
}

func (d *Device) DestroyRenderPass(h gpu.RenderPass) {
	if rp, ok := d.renderPasses.take(h); ok {
		vulkan.DestroyRenderPass(d.dev, rp, nil)
	}
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	layouts := d.setLayouts.all(setLayouts)
	info := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: 0,
	}
	var layout vulkan.PipelineLayout
	if res := vulkan.CreatePipelineLayout(d.dev, &info, nil, &layout); res != vulkan.Success {
		return 0, resultError("create pipeline layout", res)
	}
	return d.layouts.add(layout), nil
}

func (d *Device) DestroyPipelineLayout(h gpu.PipelineLayout) {
	if l, ok := d.layouts.take(h); ok {
		vulkan.DestroyPipelineLayout(d.dev, l, nil)
	}
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	stages := make([]vulkan.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		stages[i] = vulkan.PipelineShaderStageCreateInfo{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFlagBits(toBits(uint32(s.Stage), shaderStageBits)),
			Module: d.shaders.get(s.Module),
			PName:  safeString(s.Entry),
		}
	}

	bindings := make([]vulkan.VertexInputBindingDescription, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		bindings[i] = vulkan.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vulkan.VertexInputRateVertex,
		}
	}
	attributes := make([]vulkan.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attributes[i] = vulkan.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vkTopology(info.Topology),
		PrimitiveRestartEnable: vulkan.False,
	}
	// viewport and scissor are dynamic; only the counts are fixed here
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             vulkan.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vkCullMode(info.CullMode),
		FrontFace:               vkFrontFace(info.FrontFace),
		DepthBiasEnable:         vulkan.False,
	}
	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vulkan.SampleCount1Bit,
	}
	depthStencil := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(info.DepthTest),
		DepthWriteEnable:      vkBool(info.DepthWrite),
		DepthCompareOp:        compareOps[info.DepthCompare],
		DepthBoundsTestEnable: vulkan.False,
		StencilTestEnable:     vulkan.False,
	}
	colorBlendAttachment := vulkan.PipelineColorBlendAttachmentState{
		ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		BlendEnable:    vkBool(info.BlendEnable),
	}
	if info.BlendEnable {
		colorBlendAttachment.SrcColorBlendFactor = vulkan.BlendFactorSrcAlpha
		colorBlendAttachment.DstColorBlendFactor = vulkan.BlendFactorOneMinusSrcAlpha
		colorBlendAttachment.ColorBlendOp = vulkan.BlendOpAdd
		colorBlendAttachment.SrcAlphaBlendFactor = vulkan.BlendFactorOne
		colorBlendAttachment.DstAlphaBlendFactor = vulkan.BlendFactorZero
		colorBlendAttachment.AlphaBlendOp = vulkan.BlendOpAdd
	}
	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}
	dynamic := make([]vulkan.DynamicState, len(info.DynamicStates))
	for i, s := range info.DynamicStates {
		dynamic[i] = vkDynamicState(s)
	}
	dynamicState := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamic)),
		PDynamicStates:    dynamic,
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              d.layouts.get(info.Layout),
		RenderPass:          d.renderPasses.get(info.RenderPass),
		Subpass:             info.Subpass,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	res := vulkan.CreateGraphicsPipelines(d.dev, vulkan.PipelineCache(vulkan.NullHandle), 1,
		[]vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)
	if res != vulkan.Success {
		return 0, resultError("create graphics pipeline", res)
	}
	return d.pipelines.add(pipelines[0]), nil
}

func (d *Device) DestroyPipeline(h gpu.Pipeline) {
	if p, ok := d.pipelines.take(h); ok {
		vulkan.DestroyPipeline(d.dev, p, nil)
	}
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	attachments := d.views.all(info.Attachments)
	createInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      d.renderPasses.get(info.RenderPass),
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          1,
	}
	var fb vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(d.dev, &createInfo, nil, &fb); res != vulkan.Success {
		return 0, resultError("create framebuffer", res)
	}
	return d.framebuffers.add(fb), nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	if fb, ok := d.framebuffers.take(h); ok {
		vulkan.DestroyFramebuffer(d.dev, fb, nil)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	vkBindings := make([]vulkan.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vulkan.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vulkan.ShaderStageFlags(toBits(uint32(b.Stages), shaderStageBits)),
		}
	}
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vulkan.DescriptorSetLayout
	if res := vulkan.CreateDescriptorSetLayout(d.dev, &layoutInfo, nil, &layout); res != vulkan.Success {
		return 0, resultError("create descriptor set layout", res)
	}
	return d.setLayouts.add(layout), nil
}

func (d *Device) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	if l, ok := d.setLayouts.take(h); ok {
		vulkan.DestroyDescriptorSetLayout(d.dev, l, nil)
	}
}

func (d *Device) CreateDescriptorPool(info gpu.DescriptorPoolCreateInfo) (gpu.DescriptorPool, error) {
	sizes := make([]vulkan.DescriptorPoolSize, len(info.Sizes))
	for i, s := range info.Sizes {
		sizes[i] = vulkan.DescriptorPoolSize{
			Type:            vkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vulkan.DescriptorPool
	if res := vulkan.CreateDescriptorPool(d.dev, &poolInfo, nil, &pool); res != vulkan.Success {
		return 0, resultError("create descriptor pool", res)
	}
	return d.descPools.add(pool), nil
}

// DestroyDescriptorPool also forgets the sets allocated from it.
func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	pool, ok := d.descPools.take(h)
	if !ok {
		return
	}
	for set, owner := range d.setOwner {
		if owner == h {
			d.sets.take(set)
			delete(d.setOwner, set)
		}
	}
	vulkan.DestroyDescriptorPool(d.dev, pool, nil)
}

func (d *Device) AllocateDescriptorSets(h gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	if len(layouts) == 0 {
		return nil, nil
	}
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descPools.get(h),
		DescriptorSetCount: uint32(len(layouts)),
		PSetLayouts:        d.setLayouts.all(layouts),
	}
	sets := make([]vulkan.DescriptorSet, len(layouts))
	if res := vulkan.AllocateDescriptorSets(d.dev, &allocInfo, &sets[0]); res != vulkan.Success {
		return nil, resultError("allocate descriptor sets", res)
	}
	out := make([]gpu.DescriptorSet, len(sets))
	for i, s := range sets {
		out[i] = d.sets.add(s)
		d.setOwner[out[i]] = h
	}
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	vkWrites := make([]vulkan.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vkWrites[i] = vulkan.WriteDescriptorSet{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          d.sets.get(w.Set),
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  vkDescriptorType(w.Type),
			DescriptorCount: 1,
		}
		if w.Buffer != nil {
			vkWrites[i].PBufferInfo = []vulkan.DescriptorBufferInfo{{
				Buffer: d.buffers.get(w.Buffer.Buffer),
				Offset: vulkan.DeviceSize(w.Buffer.Offset),
				Range:  vulkan.DeviceSize(w.Buffer.Range),
			}}
		}
		if w.Image != nil {
			vkWrites[i].PImageInfo = []vulkan.DescriptorImageInfo{{
				Sampler:     d.samplers.get(w.Image.Sampler),
				ImageView:   d.views.get(w.Image.View),
				ImageLayout: vkLayout(w.Image.Layout),
			}}
		}
	}
	vulkan.UpdateDescriptorSets(d.dev, uint32(len(vkWrites)), vkWrites, 0, nil)
}

func (d *Device) CreateCommandPool(family uint32) (gpu.CommandPool, error) {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vulkan.CommandPool
	if res := vulkan.CreateCommandPool(d.dev, &poolInfo, nil, &pool); res != vulkan.Success {
		return 0, resultError("create command pool", res)
	}
	return d.cmdPools.add(pool), nil
}

// DestroyCommandPool also forgets the command buffers allocated from it.
func (d *Device) DestroyCommandPool(h gpu.CommandPool) {
	pool, ok := d.cmdPools.take(h)
	if !ok {
		return
	}
	for cb, owner := range d.cmdOwner {
		if owner == h {
			d.cmdBuffers.take(cb)
			delete(d.cmdOwner, cb)
		}
	}
	vulkan.DestroyCommandPool(d.dev, pool, nil)
}

func (d *Device) AllocateCommandBuffers(h gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPools.get(h),
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	cbs := make([]vulkan.CommandBuffer, count)
	if res := vulkan.AllocateCommandBuffers(d.dev, &allocInfo, cbs); res != vulkan.Success {
		return nil, resultError("allocate command buffers", res)
	}
	out := make([]gpu.CommandBuffer, count)
	for i, cb := range cbs {
		out[i] = d.cmdBuffers.add(cb)
		d.cmdOwner[out[i]] = h
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(h gpu.CommandPool, cbs []gpu.CommandBuffer) {
	var native []vulkan.CommandBuffer
	for _, cb := range cbs {
		if v, ok := d.cmdBuffers.take(cb); ok {
			native = append(native, v)
			delete(d.cmdOwner, cb)
		}
	}
	if len(native) > 0 {
		vulkan.FreeCommandBuffers(d.dev, d.cmdPools.get(h), uint32(len(native)), native)
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semInfo := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	var sem vulkan.Semaphore
	if res := vulkan.CreateSemaphore(d.dev, &semInfo, nil, &sem); res != vulkan.Success {
		return 0, resultError("create semaphore", res)
	}
	return d.semaphores.add(sem), nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	if s, ok := d.semaphores.take(h); ok {
		vulkan.DestroySemaphore(d.dev, s, nil)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceInfo.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var fence vulkan.Fence
	if res := vulkan.CreateFence(d.dev, &fenceInfo, nil, &fence); res != vulkan.Success {
		return 0, resultError("create fence", res)
	}
	return d.fences.add(fence), nil
}

func (d *Device) DestroyFence(h gpu.Fence) {
	if f, ok := d.fences.take(h); ok {
		vulkan.DestroyFence(d.dev, f, nil)
	}
}

func (d *Device) WaitForFence(h gpu.Fence, timeout uint64) error {
	res := vulkan.WaitForFences(d.dev, 1, []vulkan.Fence{d.fences.get(h)}, vulkan.True, timeout)
	if res != vulkan.Success {
		return resultError("wait for fence", res)
	}
	return nil
}

func (d *Device) ResetFence(h gpu.Fence) error {
	if res := vulkan.ResetFences(d.dev, 1, []vulkan.Fence{d.fences.get(h)}); res != vulkan.Success {
		return resultError("reset fence", res)
	}
	return nil
}

// spirvWords copies code, whose length is a multiple of 4, into words with
// the same byte layout.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(code)), code)
	return words
}
