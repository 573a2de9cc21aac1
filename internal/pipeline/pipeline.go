// Package pipeline builds the render pass and the graphics pipeline that
// draws the mesh.
package pipeline

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/mesh"
)

const entryPoint = "main"

// RenderPassInfo describes one subpass writing a presentable color
// attachment (0) and a depth attachment (1).
func RenderPassInfo(colorFormat, depthFormat gpu.Format) gpu.RenderPassCreateInfo {
	color := gpu.AttachmentDescription{
		Format:         colorFormat,
		LoadOp:         gpu.AttachmentLoadOpClear,
		StoreOp:        gpu.AttachmentStoreOpStore,
		StencilLoadOp:  gpu.AttachmentLoadOpDontCare,
		StencilStoreOp: gpu.AttachmentStoreOpDontCare,
		InitialLayout:  gpu.ImageLayoutUndefined,
		FinalLayout:    gpu.ImageLayoutPresentSrc,
	}
	depth := gpu.AttachmentDescription{
		Format:         depthFormat,
		LoadOp:         gpu.AttachmentLoadOpClear,
		StoreOp:        gpu.AttachmentStoreOpDontCare,
		StencilLoadOp:  gpu.AttachmentLoadOpDontCare,
		StencilStoreOp: gpu.AttachmentStoreOpDontCare,
		InitialLayout:  gpu.ImageLayoutUndefined,
		FinalLayout:    gpu.ImageLayoutDepthStencilAttachmentOptimal,
	}
	stages := gpu.PipelineStageColorAttachmentOutput | gpu.PipelineStageEarlyFragmentTests
	return gpu.RenderPassCreateInfo{
		Attachments: []gpu.AttachmentDescription{color, depth},
		Subpasses: []gpu.SubpassDescription{{
			ColorAttachments: []gpu.AttachmentReference{{Attachment: 0, Layout: gpu.ImageLayoutColorAttachmentOptimal}},
			DepthAttachment:  &gpu.AttachmentReference{Attachment: 1, Layout: gpu.ImageLayoutDepthStencilAttachmentOptimal},
		}},
		Dependencies: []gpu.SubpassDependency{{
			SrcSubpass:    gpu.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  stages,
			DstStageMask:  stages,
			SrcAccessMask: 0,
			DstAccessMask: gpu.AccessColorAttachmentWrite | gpu.AccessDepthStencilAttachmentWrite,
		}},
	}
}

// GraphicsPipelineInfo describes the mesh pipeline: triangle list, back-face
// culling with counter-clockwise front faces, LESS depth test with writes,
// no blending, and viewport and scissor supplied at record time.
func GraphicsPipelineInfo(vert, frag gpu.ShaderModule, layout gpu.PipelineLayout, rp gpu.RenderPass) gpu.GraphicsPipelineCreateInfo {
	return gpu.GraphicsPipelineCreateInfo{
		Stages: []gpu.ShaderStage{
			{Stage: gpu.ShaderStageVertex, Module: vert, Entry: entryPoint},
			{Stage: gpu.ShaderStageFragment, Module: frag, Entry: entryPoint},
		},
		VertexBindings:   mesh.Bindings(),
		VertexAttributes: mesh.Attributes(),
		Topology:         gpu.PrimitiveTopologyTriangleList,
		CullMode:         gpu.CullModeBack,
		FrontFace:        gpu.FrontFaceCounterClockwise,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     gpu.CompareOpLess,
		BlendEnable:      false,
		DynamicStates:    []gpu.DynamicState{gpu.DynamicStateViewport, gpu.DynamicStateScissor},
		Layout:           layout,
		RenderPass:       rp,
		Subpass:          0,
	}
}

// Pipeline owns the render pass, pipeline layout and pipeline.
type Pipeline struct {
	dev        gpu.Device
	RenderPass gpu.RenderPass
	Layout     gpu.PipelineLayout
	Handle     gpu.Pipeline
}

// Destroy releases pipeline, layout and render pass. Safe to call more than
// once.
func (p *Pipeline) Destroy() {
	if p == nil || p.dev == nil {
		return
	}
	p.dev.DestroyPipeline(p.Handle)
	p.dev.DestroyPipelineLayout(p.Layout)
	p.dev.DestroyRenderPass(p.RenderPass)
	p.Handle, p.Layout, p.RenderPass = 0, 0, 0
}

type Builder struct {
	dev gpu.Device
	log *slog.Logger
}

func NewBuilder(dev gpu.Device, log *slog.Logger) *Builder {
	return &Builder{dev: dev, log: log}
}

// Build creates the render pass, a pipeline layout over setLayout and the
// graphics pipeline. The shader modules live only for the duration of the
// call. On failure nothing is left behind.
func (b *Builder) Build(colorFormat, depthFormat gpu.Format, setLayout gpu.DescriptorSetLayout, vertCode, fragCode []byte) (*Pipeline, error) {
	p := &Pipeline{dev: b.dev}
	ok := false
	defer func() {
		if !ok {
			p.Destroy()
		}
	}()

	rp, err := b.dev.CreateRenderPass(RenderPassInfo(colorFormat, depthFormat))
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	p.RenderPass = rp

	vert, err := b.dev.CreateShaderModule(vertCode)
	if err != nil {
		return nil, errors.Wrap(err, "create vertex shader module")
	}
	defer b.dev.DestroyShaderModule(vert)
	frag, err := b.dev.CreateShaderModule(fragCode)
	if err != nil {
		return nil, errors.Wrap(err, "create fragment shader module")
	}
	defer b.dev.DestroyShaderModule(frag)

	layout, err := b.dev.CreatePipelineLayout([]gpu.DescriptorSetLayout{setLayout})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}
	p.Layout = layout

	handle, err := b.dev.CreateGraphicsPipeline(GraphicsPipelineInfo(vert, frag, layout, rp))
	if err != nil {
		return nil, errors.Wrap(err, "create graphics pipeline")
	}
	p.Handle = handle
	ok = true
	b.log.Debug("graphics pipeline created",
		slog.String("color", colorFormat.String()),
		slog.String("depth", depthFormat.String()))
	return p, nil
}
