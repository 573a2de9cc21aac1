package simgpu

import (
	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/gpu"
)

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
)

// Op is one recorded command.
type Op struct {
	Name string
	Refs []uint64
	run  func(d *Device)
}

type cmdBuffer struct {
	pool    uint64
	state   cbState
	oneTime bool
	ops     []Op
}

func (d *Device) cmd(cb gpu.CommandBuffer, op Op) {
	c, ok := d.cmds[uint64(cb)]
	if !ok {
		d.violate("%s on unknown command buffer %d", op.Name, cb)
		return
	}
	if c.state != cbRecording {
		d.violate("%s on command buffer %d outside recording", op.Name, cb)
		return
	}
	c.ops = append(c.ops, op)
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	c, ok := d.cmds[uint64(cb)]
	if !ok {
		return errors.Newf("simgpu: begin unknown command buffer %d", cb)
	}
	switch c.state {
	case cbPending:
		d.violate("begin of command buffer %d while in flight", cb)
		return &gpu.ResultError{Op: "begin command buffer", Code: -1, Err: errors.New("command buffer pending")}
	case cbRecording:
		return errors.Newf("simgpu: command buffer %d already recording", cb)
	}
	c.state, c.oneTime, c.ops = cbRecording, oneTimeSubmit, nil
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	c, ok := d.cmds[uint64(cb)]
	if !ok || c.state != cbRecording {
		return errors.Newf("simgpu: end of command buffer %d outside recording", cb)
	}
	c.state = cbExecutable
	return nil
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	c, ok := d.cmds[uint64(cb)]
	if !ok {
		return errors.Newf("simgpu: reset unknown command buffer %d", cb)
	}
	if c.state == cbPending {
		d.violate("reset of command buffer %d while in flight", cb)
		return &gpu.ResultError{Op: "reset command buffer", Code: -1, Err: errors.New("command buffer pending")}
	}
	c.state, c.ops = cbInitial, nil
	return nil
}

func (d *Device) bufferBytes(h uint64) []byte {
	b, ok := d.buffers[h]
	if !ok || b.mem == 0 {
		return nil
	}
	m, ok := d.memory[b.mem]
	if !ok {
		return nil
	}
	return m.data[b.offset : b.offset+b.info.Size]
}

func (d *Device) imageBytes(h uint64) []byte {
	im, ok := d.images[h]
	if !ok || im.mem == 0 {
		return nil
	}
	m, ok := d.memory[im.mem]
	if !ok {
		return nil
	}
	size := gpu.DeviceSize(im.info.Width) * gpu.DeviceSize(im.info.Height) * bytesPerPixel(im.info.Format)
	return m.data[im.offset : im.offset+size]
}

func (d *Device) CmdCopyBuffer(cb gpu.CommandBuffer, src, dst gpu.Buffer, region gpu.BufferCopy) {
	d.cmd(cb, Op{Name: "copy-buffer", Refs: []uint64{uint64(src), uint64(dst)}, run: func(d *Device) {
		s, t := d.bufferBytes(uint64(src)), d.bufferBytes(uint64(dst))
		if s == nil || t == nil {
			d.violate("copy between unbound buffers %d -> %d", src, dst)
			return
		}
		if d.buffers[uint64(src)].info.Usage&gpu.BufferUsageTransferSrc == 0 ||
			d.buffers[uint64(dst)].info.Usage&gpu.BufferUsageTransferDst == 0 {
			d.violate("copy %d -> %d without transfer usage", src, dst)
		}
		copy(t[region.DstOffset:region.DstOffset+region.Size], s[region.SrcOffset:region.SrcOffset+region.Size])
	}})
}

func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, region gpu.BufferImageCopy) {
	d.cmd(cb, Op{Name: "copy-buffer-to-image", Refs: []uint64{uint64(src), uint64(dst)}, run: func(d *Device) {
		im, ok := d.images[uint64(dst)]
		if !ok {
			d.violate("copy into unknown image %d", dst)
			return
		}
		if layout != gpu.ImageLayoutTransferDstOptimal || im.layout != layout {
			d.violate("copy into image %d in layout %s (declared %s)", dst, im.layout, layout)
		}
		s, t := d.bufferBytes(uint64(src)), d.imageBytes(uint64(dst))
		if s == nil || t == nil {
			d.violate("copy between unbound resources %d -> %d", src, dst)
			return
		}
		n := gpu.DeviceSize(region.Width) * gpu.DeviceSize(region.Height) * bytesPerPixel(im.info.Format)
		copy(t[:n], s[region.BufferOffset:region.BufferOffset+n])
	}})
}

func (d *Device) CmdPipelineBarrier(cb gpu.CommandBuffer, srcStage, dstStage gpu.PipelineStageFlags, b gpu.ImageBarrier) {
	d.cmd(cb, Op{Name: "pipeline-barrier", Refs: []uint64{uint64(b.Image)}, run: func(d *Device) {
		im, ok := d.images[uint64(b.Image)]
		if !ok {
			d.violate("barrier on unknown image %d", b.Image)
			return
		}
		if b.OldLayout != gpu.ImageLayoutUndefined && im.layout != b.OldLayout {
			d.violate("barrier on image %d from %s but image is %s", b.Image, b.OldLayout, im.layout)
		}
		im.layout = b.NewLayout
	}})
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, info gpu.RenderPassBeginInfo) {
	refs := []uint64{uint64(info.RenderPass), uint64(info.Framebuffer)}
	if fb, ok := d.framebuffers[uint64(info.Framebuffer)]; ok {
		for _, v := range fb.Attachments {
			refs = append(refs, uint64(v), d.views[uint64(v)])
		}
		if info.Area.Extent.Width > fb.Width || info.Area.Extent.Height > fb.Height {
			d.violate("render area %dx%d exceeds framebuffer %dx%d",
				info.Area.Extent.Width, info.Area.Extent.Height, fb.Width, fb.Height)
		}
	} else {
		d.violate("render pass begin with unknown framebuffer %d", info.Framebuffer)
	}
	d.cmd(cb, Op{Name: "begin-render-pass", Refs: refs})
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.cmd(cb, Op{Name: "end-render-pass"})
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	d.cmd(cb, Op{Name: "bind-pipeline", Refs: []uint64{uint64(p)}})
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, vp gpu.Viewport) {
	d.cmd(cb, Op{Name: "set-viewport"})
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, r gpu.Rect2D) {
	d.cmd(cb, Op{Name: "set-scissor"})
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, b gpu.Buffer, offset gpu.DeviceSize) {
	d.cmd(cb, Op{Name: "bind-vertex-buffer", Refs: []uint64{uint64(b)}})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, b gpu.Buffer, offset gpu.DeviceSize, t gpu.IndexType) {
	d.cmd(cb, Op{Name: "bind-index-buffer", Refs: []uint64{uint64(b)}})
}

func (d *Device) CmdBindDescriptorSet(cb gpu.CommandBuffer, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	refs := []uint64{uint64(layout), uint64(set)}
	for _, w := range d.setWrites[uint64(set)] {
		if w.Buffer != nil {
			refs = append(refs, uint64(w.Buffer.Buffer))
		}
		if w.Image != nil {
			refs = append(refs, uint64(w.Image.View), uint64(w.Image.Sampler))
		}
	}
	d.cmd(cb, Op{Name: "bind-descriptor-set", Refs: refs})
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount uint32) {
	d.cmd(cb, Op{Name: "draw-indexed"})
}

// Submission is one queue submit as observed by the device.
type Submission struct {
	Seq            int
	Family         uint32
	CommandBuffers []gpu.CommandBuffer
	Fence          gpu.Fence
	Waits          []gpu.Semaphore
	Signals        []gpu.Semaphore
}

type queue struct {
	dev    *Device
	family uint32
}

func (q *queue) Submit(info gpu.SubmitInfo, f gpu.Fence) error {
	d := q.dev
	if err := d.injected("Submit"); err != nil {
		return err
	}
	for _, cb := range info.CommandBuffers {
		c, ok := d.cmds[uint64(cb)]
		if !ok {
			return errors.Newf("simgpu: submit of unknown command buffer %d", cb)
		}
		if c.state == cbPending {
			d.violate("submit of command buffer %d already in flight", cb)
			return &gpu.ResultError{Op: "queue submit", Code: -1, Err: errors.New("command buffer pending")}
		}
		if c.state != cbExecutable {
			return errors.Newf("simgpu: submit of command buffer %d that is not executable", cb)
		}
	}
	if f != 0 {
		fc, ok := d.fences[uint64(f)]
		if !ok {
			return errors.Newf("simgpu: submit with unknown fence %d", f)
		}
		if fc.signaled || fc.pending {
			d.violate("submit with fence %d that is not unsignaled", f)
		}
		fc.pending = true
	}
	if len(info.WaitStages) != len(info.WaitSemaphores) {
		d.violate("submit with %d wait semaphores but %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}
	for _, s := range info.WaitSemaphores {
		if !d.semaphores[uint64(s)] {
			d.violate("submit waits on unsignaled semaphore %d", s)
		}
		d.semaphores[uint64(s)] = false
	}
	for _, s := range info.SignalSemaphores {
		if d.semaphores[uint64(s)] {
			d.violate("submit signals already signaled semaphore %d", s)
		}
		d.semaphores[uint64(s)] = true
	}
	for _, cb := range info.CommandBuffers {
		d.cmds[uint64(cb)].state = cbPending
	}
	d.seq++
	s := &Submission{
		Seq:            d.seq,
		Family:         q.family,
		CommandBuffers: append([]gpu.CommandBuffer(nil), info.CommandBuffers...),
		Fence:          f,
		Waits:          append([]gpu.Semaphore(nil), info.WaitSemaphores...),
		Signals:        append([]gpu.Semaphore(nil), info.SignalSemaphores...),
	}
	d.pending = append(d.pending, s)
	d.history = append(d.history, s)
	if over := len(d.pending) - d.Latency; over > 0 {
		d.drain(over)
	}
	return nil
}

func (q *queue) Present(info gpu.PresentInfo) (gpu.Status, error) {
	d := q.dev
	sc, ok := d.swapchains[uint64(info.Swapchain)]
	if !ok {
		return gpu.StatusFatal, errors.Newf("simgpu: present to unknown swapchain %d", info.Swapchain)
	}
	if int(info.ImageIndex) >= len(sc.images) {
		return gpu.StatusFatal, errors.Newf("simgpu: present of image %d out of %d", info.ImageIndex, len(sc.images))
	}
	for _, s := range info.WaitSemaphores {
		if !d.semaphores[uint64(s)] {
			d.violate("present waits on unsignaled semaphore %d", s)
		}
		d.semaphores[uint64(s)] = false
	}
	status := gpu.StatusOK
	if len(d.presentScript) > 0 {
		status, d.presentScript = d.presentScript[0], d.presentScript[1:]
	}
	if status == gpu.StatusFatal {
		return status, &gpu.ResultError{Op: "queue present", Code: -4, Err: errors.New("device lost")}
	}
	d.presented = append(d.presented, info.ImageIndex)
	return status, nil
}

func (q *queue) WaitIdle() error {
	q.dev.drain(len(q.dev.pending))
	return nil
}

// drain completes the n oldest pending submissions in order.
func (d *Device) drain(n int) {
	for i := 0; i < n && len(d.pending) > 0; i++ {
		s := d.pending[0]
		d.pending = d.pending[1:]
		for _, cb := range s.CommandBuffers {
			c, ok := d.cmds[uint64(cb)]
			if !ok {
				continue
			}
			for _, op := range c.ops {
				if op.run != nil {
					op.run(d)
				}
			}
			c.state = cbExecutable
			if c.oneTime {
				c.state = cbInitial
			}
		}
		if fc, ok := d.fences[uint64(s.Fence)]; ok {
			fc.pending, fc.signaled = false, true
		}
	}
}

func (d *Device) inFlight(h uint64) bool {
	for _, s := range d.pending {
		if uint64(s.Fence) == h {
			return true
		}
		for _, cb := range s.CommandBuffers {
			if uint64(cb) == h {
				return true
			}
			c, ok := d.cmds[uint64(cb)]
			if !ok {
				continue
			}
			for _, op := range c.ops {
				for _, r := range op.Refs {
					if r == h {
						return true
					}
				}
			}
		}
	}
	return false
}
