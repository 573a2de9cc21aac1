package frame

import (
	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/pipeline"
)

var clearColor = [4]float32{1, 1, 1, 1}

// Geometry is the mesh as uploaded to the GPU.
type Geometry struct {
	Vertices   gpu.Buffer
	Indices    gpu.Buffer
	IndexType  gpu.IndexType
	IndexCount uint32
}

// CommandRecorder records the single draw of a frame.
type CommandRecorder struct {
	dev      gpu.Device
	pipeline *pipeline.Pipeline
	geometry Geometry
}

func NewCommandRecorder(dev gpu.Device, p *pipeline.Pipeline, g Geometry) *CommandRecorder {
	return &CommandRecorder{dev: dev, pipeline: p, geometry: g}
}

// Record resets cb and fills it with one render pass over fb drawing the mesh
// with set bound.
func (r *CommandRecorder) Record(cb gpu.CommandBuffer, fb gpu.Framebuffer, extent gpu.Extent2D, set gpu.DescriptorSet) error {
	if err := r.dev.ResetCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if err := r.dev.BeginCommandBuffer(cb, false); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	area := gpu.Rect2D{Extent: extent}
	r.dev.CmdBeginRenderPass(cb, gpu.RenderPassBeginInfo{
		RenderPass:  r.pipeline.RenderPass,
		Framebuffer: fb,
		Area:        area,
		ClearColor:  clearColor,
		ClearDepth:  1.0,
	})
	r.dev.CmdBindPipeline(cb, r.pipeline.Handle)
	r.dev.CmdSetViewport(cb, gpu.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	r.dev.CmdSetScissor(cb, area)
	r.dev.CmdBindVertexBuffer(cb, r.geometry.Vertices, 0)
	r.dev.CmdBindIndexBuffer(cb, r.geometry.Indices, 0, r.geometry.IndexType)
	r.dev.CmdBindDescriptorSet(cb, r.pipeline.Layout, set)
	r.dev.CmdDrawIndexed(cb, r.geometry.IndexCount, 1)
	r.dev.CmdEndRenderPass(cb)
	if err := r.dev.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}
