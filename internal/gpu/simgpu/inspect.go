package simgpu

import "github.com/hellhand/vkmesh/internal/gpu"

// Live returns how many objects of kind exist.
func (d *Device) Live(kind Kind) int {
	n := 0
	for _, obj := range d.objects {
		if obj.kind == kind {
			n++
		}
	}
	return n
}

// LiveObjects counts every live object by kind.
func (d *Device) LiveObjects() map[Kind]int {
	out := make(map[Kind]int)
	for _, obj := range d.objects {
		out[obj.kind]++
	}
	return out
}

func (d *Device) Created(kind Kind) int { return d.created[kind] }

func (d *Device) Destroyed(kind Kind) int { return d.destroyed[kind] }

// Calls returns the ordered create/destroy log.
func (d *Device) Calls() []Call { return append([]Call(nil), d.calls...) }

// ResetCalls clears the create/destroy log.
func (d *Device) ResetCalls() { d.calls = nil }

// Violations returns every misuse recorded so far.
func (d *Device) Violations() []string { return append([]string(nil), d.violations...) }

// IdleWaits counts Device.WaitIdle calls.
func (d *Device) IdleWaits() int { return d.idleWaits }

// Gone reports whether Destroy was called.
func (d *Device) Gone() bool { return d.gone }

func copySubmissions(in []*Submission) []Submission {
	out := make([]Submission, len(in))
	for i, s := range in {
		out[i] = *s
	}
	return out
}

// InFlight returns the submissions the simulated GPU has not completed yet.
func (d *Device) InFlight() []Submission { return copySubmissions(d.pending) }

// Submissions returns every submission ever made.
func (d *Device) Submissions() []Submission { return copySubmissions(d.history) }

// Presented returns the image index of every successful present.
func (d *Device) Presented() []uint32 { return append([]uint32(nil), d.presented...) }

// Recorded returns the commands currently recorded in cb.
func (d *Device) Recorded(cb gpu.CommandBuffer) []Op {
	c, ok := d.cmds[uint64(cb)]
	if !ok {
		return nil
	}
	return append([]Op(nil), c.ops...)
}

// BufferData returns a copy of the bytes bound to b.
func (d *Device) BufferData(b gpu.Buffer) []byte {
	return append([]byte(nil), d.bufferBytes(uint64(b))...)
}

func (d *Device) BufferInfo(b gpu.Buffer) (gpu.BufferCreateInfo, bool) {
	buf, ok := d.buffers[uint64(b)]
	if !ok {
		return gpu.BufferCreateInfo{}, false
	}
	return buf.info, true
}

// ImageData returns a copy of the texels bound to img.
func (d *Device) ImageData(img gpu.Image) []byte {
	return append([]byte(nil), d.imageBytes(uint64(img))...)
}

// ImageLayout is the layout img is in after all completed barriers.
func (d *Device) ImageLayout(img gpu.Image) gpu.ImageLayout {
	if im, ok := d.images[uint64(img)]; ok {
		return im.layout
	}
	return gpu.ImageLayoutUndefined
}

func (d *Device) ImageInfo(img gpu.Image) (gpu.ImageCreateInfo, bool) {
	im, ok := d.images[uint64(img)]
	if !ok {
		return gpu.ImageCreateInfo{}, false
	}
	return im.info, true
}

// MemoryType returns the type index m was allocated from.
func (d *Device) MemoryType(m gpu.DeviceMemory) (uint32, bool) {
	mem, ok := d.memory[uint64(m)]
	if !ok {
		return 0, false
	}
	return mem.typeIndex, true
}

func (d *Device) RenderPassInfo(rp gpu.RenderPass) (gpu.RenderPassCreateInfo, bool) {
	info, ok := d.renderPasses[uint64(rp)]
	return info, ok
}

func (d *Device) PipelineInfo(p gpu.Pipeline) (gpu.GraphicsPipelineCreateInfo, bool) {
	info, ok := d.pipelines[uint64(p)]
	return info, ok
}

func (d *Device) FramebufferInfo(fb gpu.Framebuffer) (gpu.FramebufferCreateInfo, bool) {
	info, ok := d.framebuffers[uint64(fb)]
	return info, ok
}

func (d *Device) SwapchainInfo(sc gpu.Swapchain) (gpu.SwapchainCreateInfo, bool) {
	s, ok := d.swapchains[uint64(sc)]
	if !ok {
		return gpu.SwapchainCreateInfo{}, false
	}
	return s.info, true
}

// DescriptorWrites returns every write applied to set.
func (d *Device) DescriptorWrites(set gpu.DescriptorSet) []gpu.DescriptorWrite {
	return append([]gpu.DescriptorWrite(nil), d.setWrites[uint64(set)]...)
}

// SemaphoreSignaled reports the host-side view of s.
func (d *Device) SemaphoreSignaled(s gpu.Semaphore) bool { return d.semaphores[uint64(s)] }
