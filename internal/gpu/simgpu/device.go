package simgpu

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/gpu"
)

type Kind string

const (
	KindBuffer              Kind = "buffer"
	KindMemory              Kind = "memory"
	KindImage               Kind = "image"
	KindSwapchainImage      Kind = "swapchain-image"
	KindImageView           Kind = "image-view"
	KindSampler             Kind = "sampler"
	KindShaderModule        Kind = "shader-module"
	KindRenderPass          Kind = "render-pass"
	KindPipelineLayout      Kind = "pipeline-layout"
	KindPipeline            Kind = "pipeline"
	KindFramebuffer         Kind = "framebuffer"
	KindDescriptorSetLayout Kind = "descriptor-set-layout"
	KindDescriptorPool      Kind = "descriptor-pool"
	KindDescriptorSet       Kind = "descriptor-set"
	KindCommandPool         Kind = "command-pool"
	KindCommandBuffer       Kind = "command-buffer"
	KindSemaphore           Kind = "semaphore"
	KindFence               Kind = "fence"
	KindSwapchain           Kind = "swapchain"
)

// Call is one create or destroy observed by the device, in order.
type Call struct {
	Name   string
	Handle uint64
}

type object struct {
	kind  Kind
	owner uint64
}

type buffer struct {
	info   gpu.BufferCreateInfo
	mem    uint64
	offset gpu.DeviceSize
}

type image struct {
	info      gpu.ImageCreateInfo
	mem       uint64
	offset    gpu.DeviceSize
	layout    gpu.ImageLayout
	swapchain bool
}

type memory struct {
	data      []byte
	typeIndex uint32
	mapped    bool
}

type swapchain struct {
	info   gpu.SwapchainCreateInfo
	images []uint64
	next   uint32
}

type fence struct {
	signaled bool
	pending  bool
}

type descriptorPool struct {
	info gpu.DescriptorPoolCreateInfo
	used uint32
}

// Device is the simulated logical device. It is not safe for concurrent use;
// the renderer drives it from a single goroutine.
type Device struct {
	adapter *Adapter

	// Latency is how many submissions stay in flight before the oldest
	// completes on its own. Waiting on a fence or idling completes earlier.
	Latency int

	next       uint64
	objects    map[uint64]*object
	created    map[Kind]int
	destroyed  map[Kind]int
	calls      []Call
	violations []string
	failures   map[string]error

	buffers      map[uint64]*buffer
	images       map[uint64]*image
	memory       map[uint64]*memory
	views        map[uint64]uint64
	swapchains   map[uint64]*swapchain
	fences       map[uint64]*fence
	semaphores   map[uint64]bool
	cmds         map[uint64]*cmdBuffer
	renderPasses map[uint64]gpu.RenderPassCreateInfo
	pipelines    map[uint64]gpu.GraphicsPipelineCreateInfo
	framebuffers map[uint64]gpu.FramebufferCreateInfo
	pools        map[uint64]*descriptorPool
	setWrites    map[uint64][]gpu.DescriptorWrite

	queues        map[uint32]*queue
	seq           int
	pending       []*Submission
	history       []*Submission
	acquireScript []gpu.Status
	presentScript []gpu.Status
	presented     []uint32
	idleWaits     int
	gone          bool
}

func newDevice(a *Adapter) *Device {
	return &Device{
		adapter:      a,
		Latency:      2,
		objects:      make(map[uint64]*object),
		created:      make(map[Kind]int),
		destroyed:    make(map[Kind]int),
		failures:     make(map[string]error),
		buffers:      make(map[uint64]*buffer),
		images:       make(map[uint64]*image),
		memory:       make(map[uint64]*memory),
		views:        make(map[uint64]uint64),
		swapchains:   make(map[uint64]*swapchain),
		fences:       make(map[uint64]*fence),
		semaphores:   make(map[uint64]bool),
		cmds:         make(map[uint64]*cmdBuffer),
		renderPasses: make(map[uint64]gpu.RenderPassCreateInfo),
		pipelines:    make(map[uint64]gpu.GraphicsPipelineCreateInfo),
		framebuffers: make(map[uint64]gpu.FramebufferCreateInfo),
		pools:        make(map[uint64]*descriptorPool),
		setWrites:    make(map[uint64][]gpu.DescriptorWrite),
		queues:       make(map[uint32]*queue),
	}
}

// FailNext makes the next call of op (a Device method name such as
// "CreateFramebuffer") return err.
func (d *Device) FailNext(op string, err error) {
	d.failures[op] = err
}

func (d *Device) injected(op string) error {
	err, ok := d.failures[op]
	if !ok {
		return nil
	}
	delete(d.failures, op)
	return &gpu.ResultError{Op: op, Code: -1, Err: err}
}

func (d *Device) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) add(kind Kind, owner uint64) uint64 {
	d.next++
	h := d.next
	d.objects[h] = &object{kind: kind, owner: owner}
	d.created[kind]++
	d.calls = append(d.calls, Call{Name: "create " + string(kind), Handle: h})
	return h
}

// remove retires h. It reports false for the null handle and for handles that
// are unknown or of the wrong kind; the latter are recorded as violations.
func (d *Device) remove(h uint64, kind Kind) bool {
	if h == 0 {
		return false
	}
	obj, ok := d.objects[h]
	if !ok || obj.kind != kind {
		d.violate("destroy of unknown %s %d", kind, h)
		return false
	}
	if d.inFlight(h) {
		d.violate("destroy of %s %d referenced by in-flight work", kind, h)
	}
	delete(d.objects, h)
	d.destroyed[kind]++
	d.calls = append(d.calls, Call{Name: "destroy " + string(kind), Handle: h})
	return true
}

func (d *Device) exists(h uint64, kind Kind) bool {
	obj, ok := d.objects[h]
	return ok && obj.kind == kind
}

func (d *Device) Queue(family uint32) gpu.Queue {
	q, ok := d.queues[family]
	if !ok {
		q = &queue{dev: d, family: family}
		d.queues[family] = q
	}
	return q
}

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	return d.adapter.Surface.Capabilities, nil
}

func (d *Device) WaitIdle() error {
	d.idleWaits++
	d.drain(len(d.pending))
	return nil
}

func (d *Device) Destroy() {
	if d.gone {
		return
	}
	d.drain(len(d.pending))
	if n := len(d.objects); n > 0 {
		d.violate("device destroyed with %d live object(s): %v", n, d.LiveObjects())
	}
	d.gone = true
}

func (d *Device) typeBits() uint32 {
	if d.adapter.TypeBits != 0 {
		return d.adapter.TypeBits
	}
	return uint32(1)<<len(d.adapter.Memory.Types) - 1
}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	if err := d.injected("CreateBuffer"); err != nil {
		return 0, err
	}
	if info.Size == 0 {
		return 0, &gpu.ResultError{Op: "create buffer", Code: -2, Err: errors.New("zero size")}
	}
	h := d.add(KindBuffer, 0)
	d.buffers[h] = &buffer{info: info}
	return gpu.Buffer(h), nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if d.remove(uint64(b), KindBuffer) {
		delete(d.buffers, uint64(b))
	}
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	buf, ok := d.buffers[uint64(b)]
	if !ok {
		d.violate("memory requirements of unknown buffer %d", b)
		return gpu.MemoryRequirements{}
	}
	return gpu.MemoryRequirements{Size: align(buf.info.Size, 16), Alignment: 16, MemoryTypeBits: d.typeBits()}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset gpu.DeviceSize) error {
	buf, ok := d.buffers[uint64(b)]
	if !ok {
		return errors.Newf("simgpu: bind unknown buffer %d", b)
	}
	mem, ok := d.memory[uint64(m)]
	if !ok {
		return errors.Newf("simgpu: bind unknown memory %d", m)
	}
	if buf.mem != 0 {
		d.violate("buffer %d bound twice", b)
	}
	if offset+buf.info.Size > gpu.DeviceSize(len(mem.data)) {
		return &gpu.ResultError{Op: "bind buffer memory", Code: -2, Err: errors.New("range exceeds allocation")}
	}
	buf.mem, buf.offset = uint64(m), offset
	return nil
}

func bytesPerPixel(f gpu.Format) gpu.DeviceSize {
	switch f {
	case gpu.FormatD32SfloatS8Uint:
		return 8
	case gpu.FormatR32G32Sfloat:
		return 8
	case gpu.FormatR32G32B32Sfloat:
		return 12
	}
	return 4
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	if err := d.injected("CreateImage"); err != nil {
		return 0, err
	}
	if info.Width == 0 || info.Height == 0 {
		d.violate("image with zero extent %dx%d", info.Width, info.Height)
		return 0, &gpu.ResultError{Op: "create image", Code: -2, Err: errors.New("zero extent")}
	}
	h := d.add(KindImage, 0)
	d.images[h] = &image{info: info, layout: gpu.ImageLayoutUndefined}
	return gpu.Image(h), nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	if im, ok := d.images[uint64(img)]; ok && im.swapchain {
		d.violate("destroy of swapchain-owned image %d", img)
		return
	}
	if d.remove(uint64(img), KindImage) {
		delete(d.images, uint64(img))
	}
}

func (d *Device) ImageMemoryRequirements(img gpu.Image) gpu.MemoryRequirements {
	im, ok := d.images[uint64(img)]
	if !ok {
		d.violate("memory requirements of unknown image %d", img)
		return gpu.MemoryRequirements{}
	}
	size := gpu.DeviceSize(im.info.Width) * gpu.DeviceSize(im.info.Height) * bytesPerPixel(im.info.Format)
	return gpu.MemoryRequirements{Size: align(size, 256), Alignment: 256, MemoryTypeBits: d.typeBits()}
}

func (d *Device) BindImageMemory(img gpu.Image, m gpu.DeviceMemory, offset gpu.DeviceSize) error {
	im, ok := d.images[uint64(img)]
	if !ok {
		return errors.Newf("simgpu: bind unknown image %d", img)
	}
	if _, ok := d.memory[uint64(m)]; !ok {
		return errors.Newf("simgpu: bind unknown memory %d", m)
	}
	if im.mem != 0 {
		d.violate("image %d bound twice", img)
	}
	im.mem, im.offset = uint64(m), offset
	return nil
}

func (d *Device) AllocateMemory(size gpu.DeviceSize, typeIndex uint32) (gpu.DeviceMemory, error) {
	if err := d.injected("AllocateMemory"); err != nil {
		return 0, err
	}
	if int(typeIndex) >= len(d.adapter.Memory.Types) {
		d.violate("allocation from nonexistent memory type %d", typeIndex)
		return 0, &gpu.ResultError{Op: "allocate memory", Code: -2, Err: errors.New("bad memory type")}
	}
	h := d.add(KindMemory, 0)
	d.memory[h] = &memory{data: make([]byte, size), typeIndex: typeIndex}
	return gpu.DeviceMemory(h), nil
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	if d.remove(uint64(m), KindMemory) {
		delete(d.memory, uint64(m))
	}
}

func (d *Device) MapMemory(m gpu.DeviceMemory, offset, size gpu.DeviceSize) ([]byte, error) {
	mem, ok := d.memory[uint64(m)]
	if !ok {
		return nil, errors.Newf("simgpu: map unknown memory %d", m)
	}
	if d.adapter.Memory.Types[mem.typeIndex].PropertyFlags&gpu.MemoryPropertyHostVisible == 0 {
		d.violate("map of non host-visible memory %d", m)
		return nil, &gpu.ResultError{Op: "map memory", Code: -5, Err: errors.New("memory not host visible")}
	}
	if mem.mapped {
		d.violate("memory %d mapped twice", m)
		return nil, &gpu.ResultError{Op: "map memory", Code: -5, Err: errors.New("already mapped")}
	}
	if size == gpu.WholeSize {
		size = gpu.DeviceSize(len(mem.data)) - offset
	}
	if offset+size > gpu.DeviceSize(len(mem.data)) {
		return nil, &gpu.ResultError{Op: "map memory", Code: -5, Err: errors.New("range exceeds allocation")}
	}
	mem.mapped = true
	return mem.data[offset : offset+size : offset+size], nil
}

func (d *Device) UnmapMemory(m gpu.DeviceMemory) {
	mem, ok := d.memory[uint64(m)]
	if !ok || !mem.mapped {
		d.violate("unmap of unmapped memory %d", m)
		return
	}
	mem.mapped = false
}

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	if err := d.injected("CreateImageView"); err != nil {
		return 0, err
	}
	if _, ok := d.images[uint64(info.Image)]; !ok {
		return 0, errors.Newf("simgpu: view of unknown image %d", info.Image)
	}
	h := d.add(KindImageView, uint64(info.Image))
	d.views[h] = uint64(info.Image)
	return gpu.ImageView(h), nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	if d.remove(uint64(v), KindImageView) {
		delete(d.views, uint64(v))
	}
}

func (d *Device) CreateSampler(info gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	if err := d.injected("CreateSampler"); err != nil {
		return 0, err
	}
	if info.Anisotropy && info.MaxAnisotropy > d.adapter.Props.MaxSamplerAnisotropy {
		d.violate("sampler anisotropy %.1f above limit %.1f", info.MaxAnisotropy, d.adapter.Props.MaxSamplerAnisotropy)
	}
	return gpu.Sampler(d.add(KindSampler, 0)), nil
}

func (d *Device) DestroySampler(s gpu.Sampler) { d.remove(uint64(s), KindSampler) }

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	if err := d.injected("CreateSwapchain"); err != nil {
		return 0, err
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		d.violate("swapchain with zero extent")
		return 0, &gpu.ResultError{Op: "create swapchain", Code: -3, Err: errors.New("zero extent")}
	}
	if info.SharingMode == gpu.SharingModeConcurrent && len(info.QueueFamilyIndices) < 2 {
		d.violate("concurrent swapchain sharing with %d queue families", len(info.QueueFamilyIndices))
	}
	h := d.add(KindSwapchain, 0)
	sc := &swapchain{info: info}
	for i := uint32(0); i < info.MinImageCount; i++ {
		img := d.add(KindSwapchainImage, h)
		d.images[img] = &image{
			info: gpu.ImageCreateInfo{
				Width:  info.Extent.Width,
				Height: info.Extent.Height,
				Format: info.Format.Format,
				Usage:  gpu.ImageUsageColorAttachment,
			},
			swapchain: true,
		}
		sc.images = append(sc.images, img)
	}
	d.swapchains[h] = sc
	return gpu.Swapchain(h), nil
}

func (d *Device) DestroySwapchain(s gpu.Swapchain) {
	sc, ok := d.swapchains[uint64(s)]
	if !d.remove(uint64(s), KindSwapchain) || !ok {
		return
	}
	for _, img := range sc.images {
		for v, owner := range d.views {
			if owner == img {
				d.violate("swapchain %d destroyed before view %d of its image", s, v)
			}
		}
		delete(d.objects, img)
		delete(d.images, img)
		d.destroyed[KindSwapchainImage]++
	}
	delete(d.swapchains, uint64(s))
}

func (d *Device) SwapchainImages(s gpu.Swapchain) ([]gpu.Image, error) {
	sc, ok := d.swapchains[uint64(s)]
	if !ok {
		return nil, errors.Newf("simgpu: unknown swapchain %d", s)
	}
	out := make([]gpu.Image, len(sc.images))
	for i, img := range sc.images {
		out[i] = gpu.Image(img)
	}
	return out, nil
}

func (d *Device) AcquireNextImage(s gpu.Swapchain, _ uint64, signal gpu.Semaphore) (uint32, gpu.Status, error) {
	sc, ok := d.swapchains[uint64(s)]
	if !ok {
		return 0, gpu.StatusFatal, errors.Newf("simgpu: acquire from unknown swapchain %d", s)
	}
	status := gpu.StatusOK
	if len(d.acquireScript) > 0 {
		status, d.acquireScript = d.acquireScript[0], d.acquireScript[1:]
	} else if cur := d.adapter.Surface.Capabilities.CurrentExtent; cur.Width != gpu.UndefinedExtent && cur != sc.info.Extent {
		status = gpu.StatusOutOfDate
	}
	switch status {
	case gpu.StatusFatal:
		return 0, status, &gpu.ResultError{Op: "acquire next image", Code: -4, Err: errors.New("device lost")}
	case gpu.StatusOutOfDate:
		return 0, status, nil
	}
	if d.semaphores[uint64(signal)] {
		d.violate("acquire signals already signaled semaphore %d", signal)
	}
	d.semaphores[uint64(signal)] = true
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return idx, status, nil
}

// ScriptAcquire queues statuses returned by the next AcquireNextImage calls.
func (d *Device) ScriptAcquire(statuses ...gpu.Status) {
	d.acquireScript = append(d.acquireScript, statuses...)
}

// ScriptPresent queues statuses returned by the next Present calls.
func (d *Device) ScriptPresent(statuses ...gpu.Status) {
	d.presentScript = append(d.presentScript, statuses...)
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if err := d.injected("CreateShaderModule"); err != nil {
		return 0, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, &gpu.ResultError{Op: "create shader module", Code: -13, Err: errors.New("invalid code size")}
	}
	return gpu.ShaderModule(d.add(KindShaderModule, 0)), nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) { d.remove(uint64(m), KindShaderModule) }

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	if err := d.injected("CreateRenderPass"); err != nil {
		return 0, err
	}
	h := d.add(KindRenderPass, 0)
	d.renderPasses[h] = info
	return gpu.RenderPass(h), nil
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	if d.remove(uint64(rp), KindRenderPass) {
		delete(d.renderPasses, uint64(rp))
	}
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	if err := d.injected("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	for _, l := range setLayouts {
		if !d.exists(uint64(l), KindDescriptorSetLayout) {
			return 0, errors.Newf("simgpu: unknown descriptor set layout %d", l)
		}
	}
	return gpu.PipelineLayout(d.add(KindPipelineLayout, 0)), nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) { d.remove(uint64(l), KindPipelineLayout) }

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	if err := d.injected("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	for _, st := range info.Stages {
		if !d.exists(uint64(st.Module), KindShaderModule) {
			return 0, errors.Newf("simgpu: unknown shader module %d", st.Module)
		}
	}
	if !d.exists(uint64(info.RenderPass), KindRenderPass) || !d.exists(uint64(info.Layout), KindPipelineLayout) {
		return 0, errors.New("simgpu: pipeline references unknown render pass or layout")
	}
	h := d.add(KindPipeline, 0)
	d.pipelines[h] = info
	return gpu.Pipeline(h), nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	if d.remove(uint64(p), KindPipeline) {
		delete(d.pipelines, uint64(p))
	}
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	if err := d.injected("CreateFramebuffer"); err != nil {
		return 0, err
	}
	if !d.exists(uint64(info.RenderPass), KindRenderPass) {
		return 0, errors.Newf("simgpu: framebuffer for unknown render pass %d", info.RenderPass)
	}
	for _, v := range info.Attachments {
		if !d.exists(uint64(v), KindImageView) {
			return 0, errors.Newf("simgpu: framebuffer attachment %d is not a live view", v)
		}
	}
	if info.Width == 0 || info.Height == 0 {
		d.violate("framebuffer with zero extent")
	}
	h := d.add(KindFramebuffer, 0)
	d.framebuffers[h] = info
	return gpu.Framebuffer(h), nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	if d.remove(uint64(fb), KindFramebuffer) {
		delete(d.framebuffers, uint64(fb))
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	if err := d.injected("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(d.add(KindDescriptorSetLayout, 0)), nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	d.remove(uint64(l), KindDescriptorSetLayout)
}

func (d *Device) CreateDescriptorPool(info gpu.DescriptorPoolCreateInfo) (gpu.DescriptorPool, error) {
	if err := d.injected("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	h := d.add(KindDescriptorPool, 0)
	d.pools[h] = &descriptorPool{info: info}
	return gpu.DescriptorPool(h), nil
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	if !d.remove(uint64(p), KindDescriptorPool) {
		return
	}
	delete(d.pools, uint64(p))
	for h, obj := range d.objects {
		if obj.kind == KindDescriptorSet && obj.owner == uint64(p) {
			delete(d.objects, h)
			delete(d.setWrites, h)
			d.destroyed[KindDescriptorSet]++
		}
	}
}

func (d *Device) AllocateDescriptorSets(p gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	if err := d.injected("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	pool, ok := d.pools[uint64(p)]
	if !ok {
		return nil, errors.Newf("simgpu: unknown descriptor pool %d", p)
	}
	if pool.used+uint32(len(layouts)) > pool.info.MaxSets {
		return nil, &gpu.ResultError{Op: "allocate descriptor sets", Code: -1000069000, Err: errors.New("out of pool memory")}
	}
	pool.used += uint32(len(layouts))
	out := make([]gpu.DescriptorSet, len(layouts))
	for i := range layouts {
		out[i] = gpu.DescriptorSet(d.add(KindDescriptorSet, uint64(p)))
	}
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	for _, w := range writes {
		if !d.exists(uint64(w.Set), KindDescriptorSet) {
			d.violate("update of unknown descriptor set %d", w.Set)
			continue
		}
		d.setWrites[uint64(w.Set)] = append(d.setWrites[uint64(w.Set)], w)
	}
}

func (d *Device) CreateCommandPool(family uint32) (gpu.CommandPool, error) {
	if err := d.injected("CreateCommandPool"); err != nil {
		return 0, err
	}
	if int(family) >= len(d.adapter.Families) {
		return 0, errors.Newf("simgpu: unknown queue family %d", family)
	}
	return gpu.CommandPool(d.add(KindCommandPool, 0)), nil
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	if !d.remove(uint64(p), KindCommandPool) {
		return
	}
	for h, cb := range d.cmds {
		if cb.pool == uint64(p) {
			delete(d.objects, h)
			delete(d.cmds, h)
			d.destroyed[KindCommandBuffer]++
		}
	}
}

func (d *Device) AllocateCommandBuffers(p gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	if err := d.injected("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	if !d.exists(uint64(p), KindCommandPool) {
		return nil, errors.Newf("simgpu: unknown command pool %d", p)
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		h := d.add(KindCommandBuffer, uint64(p))
		d.cmds[h] = &cmdBuffer{pool: uint64(p)}
		out[i] = gpu.CommandBuffer(h)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(p gpu.CommandPool, cbs []gpu.CommandBuffer) {
	for _, cb := range cbs {
		c, ok := d.cmds[uint64(cb)]
		if ok && c.state == cbPending {
			d.violate("free of pending command buffer %d", cb)
		}
		if d.remove(uint64(cb), KindCommandBuffer) {
			delete(d.cmds, uint64(cb))
		}
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.injected("CreateSemaphore"); err != nil {
		return 0, err
	}
	h := d.add(KindSemaphore, 0)
	d.semaphores[h] = false
	return gpu.Semaphore(h), nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	if d.remove(uint64(s), KindSemaphore) {
		delete(d.semaphores, uint64(s))
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.injected("CreateFence"); err != nil {
		return 0, err
	}
	h := d.add(KindFence, 0)
	d.fences[h] = &fence{signaled: signaled}
	return gpu.Fence(h), nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if d.remove(uint64(f), KindFence) {
		delete(d.fences, uint64(f))
	}
}

func (d *Device) WaitForFence(f gpu.Fence, _ uint64) error {
	fc, ok := d.fences[uint64(f)]
	if !ok {
		return errors.Newf("simgpu: wait on unknown fence %d", f)
	}
	if fc.signaled {
		return nil
	}
	for i, s := range d.pending {
		if s.Fence == f {
			d.drain(i + 1)
			return nil
		}
	}
	d.violate("wait on unsignaled fence %d with no pending work", f)
	return &gpu.ResultError{Op: "wait for fences", Code: 2, Err: errors.New("timeout")}
}

func (d *Device) ResetFence(f gpu.Fence) error {
	fc, ok := d.fences[uint64(f)]
	if !ok {
		return errors.Newf("simgpu: reset unknown fence %d", f)
	}
	if fc.pending {
		d.violate("reset of fence %d still owned by a pending submission", f)
		return &gpu.ResultError{Op: "reset fences", Code: -1, Err: errors.New("fence in use")}
	}
	fc.signaled = false
	return nil
}

func align(v, a gpu.DeviceSize) gpu.DeviceSize {
	return (v + a - 1) / a * a
}
