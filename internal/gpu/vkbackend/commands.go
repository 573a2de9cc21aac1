package vkbackend

import (
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// Queue is a device queue. Queues with the same family share one value.
type Queue struct {
	d *Device
	q vulkan.Queue
}

var _ gpu.Queue = (*Queue)(nil)

func (q *Queue) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	stages := make([]vulkan.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vulkan.PipelineStageFlags(toBits(uint32(s), stageBits))
	}
	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.WaitSemaphores)),
		PWaitSemaphores:      q.d.semaphores.all(info.WaitSemaphores),
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(info.CommandBuffers)),
		PCommandBuffers:      q.d.cmdBuffers.all(info.CommandBuffers),
		SignalSemaphoreCount: uint32(len(info.SignalSemaphores)),
		PSignalSemaphores:    q.d.semaphores.all(info.SignalSemaphores),
	}
	f := vulkan.Fence(vulkan.NullHandle)
	if fence != 0 {
		f = q.d.fences.get(fence)
	}
	if res := vulkan.QueueSubmit(q.q, 1, []vulkan.SubmitInfo{submitInfo}, f); res != vulkan.Success {
		return resultError("queue submit", res)
	}
	return nil
}

func (q *Queue) Present(info gpu.PresentInfo) (gpu.Status, error) {
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.WaitSemaphores)),
		PWaitSemaphores:    q.d.semaphores.all(info.WaitSemaphores),
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{q.d.swapchains.get(info.Swapchain)},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	return status("queue present", vulkan.QueuePresent(q.q, &presentInfo))
}

func (q *Queue) WaitIdle() error {
	if res := vulkan.QueueWaitIdle(q.q); res != vulkan.Success {
		return resultError("queue wait idle", res)
	}
	return nil
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags = vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vulkan.BeginCommandBuffer(d.cmdBuffers.get(cb), &beginInfo); res != vulkan.Success {
		return resultError("begin command buffer", res)
	}
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	if res := vulkan.EndCommandBuffer(d.cmdBuffers.get(cb)); res != vulkan.Success {
		return resultError("end command buffer", res)
	}
	return nil
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	if res := vulkan.ResetCommandBuffer(d.cmdBuffers.get(cb), 0); res != vulkan.Success {
		return resultError("reset command buffer", res)
	}
	return nil
}

func (d *Device) CmdCopyBuffer(cb gpu.CommandBuffer, src, dst gpu.Buffer, region gpu.BufferCopy) {
	vulkan.CmdCopyBuffer(d.cmdBuffers.get(cb), d.buffers.get(src), d.buffers.get(dst), 1, []vulkan.BufferCopy{{
		SrcOffset: vulkan.DeviceSize(region.SrcOffset),
		DstOffset: vulkan.DeviceSize(region.DstOffset),
		Size:      vulkan.DeviceSize(region.Size),
	}})
}

func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, region gpu.BufferImageCopy) {
	vulkan.CmdCopyBufferToImage(d.cmdBuffers.get(cb), d.buffers.get(src), d.images.get(dst), vkLayout(layout), 1, []vulkan.BufferImageCopy{{
		BufferOffset:      vulkan.DeviceSize(region.BufferOffset),
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask:     vulkan.ImageAspectFlags(toBits(uint32(region.Aspect), aspectBits)),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vulkan.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vulkan.Extent3D{Width: region.Width, Height: region.Height, Depth: 1},
	}})
}

func (d *Device) CmdPipelineBarrier(cb gpu.CommandBuffer, srcStage, dstStage gpu.PipelineStageFlags, b gpu.ImageBarrier) {
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vulkan.AccessFlags(toBits(uint32(b.SrcAccess), accessBits)),
		DstAccessMask:       vulkan.AccessFlags(toBits(uint32(b.DstAccess), accessBits)),
		OldLayout:           vkLayout(b.OldLayout),
		NewLayout:           vkLayout(b.NewLayout),
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               d.images.get(b.Image),
		SubresourceRange:    subresourceRange(b.Aspect),
	}
	vulkan.CmdPipelineBarrier(d.cmdBuffers.get(cb),
		vulkan.PipelineStageFlags(toBits(uint32(srcStage), stageBits)),
		vulkan.PipelineStageFlags(toBits(uint32(dstStage), stageBits)),
		0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, info gpu.RenderPassBeginInfo) {
	clearValues := []vulkan.ClearValue{
		vulkan.NewClearValue(info.ClearColor[:]),
		vulkan.NewClearDepthStencil(info.ClearDepth, info.ClearStencil),
	}
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:           vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:      d.renderPasses.get(info.RenderPass),
		Framebuffer:     d.framebuffers.get(info.Framebuffer),
		RenderArea:      vkRect(info.Area),
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vulkan.CmdBeginRenderPass(d.cmdBuffers.get(cb), &renderPassInfo, vulkan.SubpassContentsInline)
}

func vkRect(r gpu.Rect2D) vulkan.Rect2D {
	return vulkan.Rect2D{
		Offset: vulkan.Offset2D{X: r.X, Y: r.Y},
		Extent: vulkan.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	vulkan.CmdEndRenderPass(d.cmdBuffers.get(cb))
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	vulkan.CmdBindPipeline(d.cmdBuffers.get(cb), vulkan.PipelineBindPointGraphics, d.pipelines.get(p))
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, vp gpu.Viewport) {
	vulkan.CmdSetViewport(d.cmdBuffers.get(cb), 0, 1, []vulkan.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, r gpu.Rect2D) {
	vulkan.CmdSetScissor(d.cmdBuffers.get(cb), 0, 1, []vulkan.Rect2D{vkRect(r)})
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, b gpu.Buffer, offset gpu.DeviceSize) {
	vulkan.CmdBindVertexBuffers(d.cmdBuffers.get(cb), 0, 1,
		[]vulkan.Buffer{d.buffers.get(b)}, []vulkan.DeviceSize{vulkan.DeviceSize(offset)})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, b gpu.Buffer, offset gpu.DeviceSize, t gpu.IndexType) {
	vulkan.CmdBindIndexBuffer(d.cmdBuffers.get(cb), d.buffers.get(b), vulkan.DeviceSize(offset), vkIndexType(t))
}

func (d *Device) CmdBindDescriptorSet(cb gpu.CommandBuffer, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	vulkan.CmdBindDescriptorSets(d.cmdBuffers.get(cb), vulkan.PipelineBindPointGraphics, d.layouts.get(layout),
		0, 1, []vulkan.DescriptorSet{d.sets.get(set)}, 0, nil)
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount uint32) {
	vulkan.CmdDrawIndexed(d.cmdBuffers.get(cb), indexCount, instanceCount, 0, 0, 0)
}
