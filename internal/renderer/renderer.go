// Package renderer wires the GPU components together in dependency order,
// runs frames and tears everything down in reverse.
package renderer

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/alloc"
	"github.com/hellhand/vkmesh/internal/assets"
	"github.com/hellhand/vkmesh/internal/descriptor"
	"github.com/hellhand/vkmesh/internal/device"
	"github.com/hellhand/vkmesh/internal/frame"
	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/mesh"
	"github.com/hellhand/vkmesh/internal/pipeline"
	"github.com/hellhand/vkmesh/internal/platform"
	"github.com/hellhand/vkmesh/internal/swapchain"
)

const TextureFormat = gpu.FormatR8G8B8A8Srgb

type Renderer struct {
	log *slog.Logger

	ctx       *device.Context
	pool      gpu.CommandPool
	alloc     *alloc.Allocator
	swapchain *swapchain.Manager
	desc      *descriptor.Manager
	pipeline  *pipeline.Pipeline
	texture   *alloc.Image
	sampler   gpu.Sampler
	vertices  *alloc.Buffer
	indices   *alloc.Buffer
	slots     []*frame.Slot
	sync      *frame.Synchronizer
}

// New selects a device from inst and builds everything needed to draw the
// mesh into surface. On error every partially created object is released;
// inst stays with the caller.
func New(inst gpu.Instance, surface swapchain.Surface, bundle *assets.Bundle, log *slog.Logger) (*Renderer, error) {
	r := &Renderer{log: log}
	if err := r.init(inst, surface, bundle); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(inst gpu.Instance, surface swapchain.Surface, bundle *assets.Bundle) error {
	var err error
	if r.ctx, err = device.Open(inst, r.log); err != nil {
		return err
	}
	dev := r.ctx.Device
	if r.pool, err = dev.CreateCommandPool(r.ctx.Queues.Graphics); err != nil {
		return errors.Wrap(err, "create command pool")
	}
	r.alloc = alloc.New(dev, r.ctx.Adapter.MemoryProperties(), r.pool, r.ctx.GraphicsQueue, r.log)

	r.swapchain = swapchain.NewManager(r.ctx, r.alloc, surface, r.log)
	if err := r.swapchain.Create(); err != nil {
		return err
	}
	if r.desc, err = descriptor.NewManager(dev, frame.SlotCount, r.log); err != nil {
		return err
	}
	r.pipeline, err = pipeline.NewBuilder(dev, r.log).Build(
		r.swapchain.ColorFormat(), r.swapchain.DepthFormat(), r.desc.Layout(), bundle.Vertex, bundle.Fragment)
	if err != nil {
		return err
	}
	if err := r.swapchain.CreateFramebuffers(r.pipeline.RenderPass); err != nil {
		return err
	}

	if err := r.createTexture(bundle.Texture); err != nil {
		return err
	}
	if r.vertices, err = r.alloc.UploadBuffer(mesh.VertexBytes(mesh.Vertices), gpu.BufferUsageVertexBuffer); err != nil {
		return errors.Wrap(err, "upload vertices")
	}
	if r.indices, err = r.alloc.UploadBuffer(mesh.IndexBytes(mesh.Indices), gpu.BufferUsageIndexBuffer); err != nil {
		return errors.Wrap(err, "upload indices")
	}

	if r.slots, err = frame.NewSlots(dev, r.pool, r.alloc); err != nil {
		return err
	}
	err = r.desc.Allocate(frame.UniformBuffers(r.slots), gpu.DeviceSize(frame.UniformSize),
		descriptor.Texture{View: r.texture.View, Sampler: r.sampler})
	if err != nil {
		return err
	}
	for i, s := range r.slots {
		s.Set = r.desc.Set(i)
	}

	rec := frame.NewCommandRecorder(dev, r.pipeline, frame.Geometry{
		Vertices:   r.vertices.Handle,
		Indices:    r.indices.Handle,
		IndexType:  mesh.IndexType,
		IndexCount: uint32(len(mesh.Indices)),
	})
	queues := frame.Queues{Graphics: r.ctx.GraphicsQueue, Present: r.ctx.PresentQueue}
	r.sync = frame.NewSynchronizer(dev, queues, r.slots, r.swapchain, rec, r.log)
	r.log.Info("renderer ready",
		slog.Int("images", r.swapchain.ImageCount()),
		slog.String("present_mode", r.swapchain.Config().PresentMode.String()))
	return nil
}

func (r *Renderer) createTexture(tex *assets.Texture) error {
	if tex == nil {
		return errors.AssertionFailedf("no texture decoded")
	}
	limit := r.ctx.Properties.MaxImageDimension2D
	if tex.Width > limit || tex.Height > limit {
		return errors.Newf("texture %dx%d exceeds the device limit %d", tex.Width, tex.Height, limit)
	}
	img, err := r.alloc.UploadImage(tex.Pixels, tex.Width, tex.Height, TextureFormat)
	if err != nil {
		return errors.Wrap(err, "upload texture")
	}
	r.texture = img
	if err := img.CreateView(gpu.ImageAspectColor); err != nil {
		return errors.Wrap(err, "texture view")
	}
	r.sampler, err = r.ctx.Device.CreateSampler(gpu.SamplerCreateInfo{
		Anisotropy:    true,
		MaxAnisotropy: r.ctx.Properties.MaxSamplerAnisotropy,
	})
	if err != nil {
		return errors.Wrap(err, "create texture sampler")
	}
	r.log.Debug("texture uploaded", slog.Int("width", int(tex.Width)), slog.Int("height", int(tex.Height)))
	return nil
}

// DrawFrame renders one frame.
func (r *Renderer) DrawFrame() error { return r.sync.DrawFrame() }

// HandleEvent reacts to a window event and reports whether the loop should
// stop.
func (r *Renderer) HandleEvent(ev platform.Event) (quit bool) {
	switch ev := ev.(type) {
	case platform.ResizeEvent:
		r.log.Debug("framebuffer resized", slog.Int("width", ev.Width), slog.Int("height", ev.Height))
		r.sync.NotifyResized()
	case platform.CloseEvent:
		return true
	}
	return false
}

// Frames is the number of frames presented so far.
func (r *Renderer) Frames() uint64 {
	if r.sync == nil {
		return 0
	}
	return r.sync.Frames()
}

// Close waits for the device to go idle and destroys everything in reverse
// creation order. Safe on a partially built Renderer and more than once.
func (r *Renderer) Close() {
	if r.ctx == nil || r.ctx.Device == nil {
		return
	}
	dev := r.ctx.Device
	if err := dev.WaitIdle(); err != nil {
		r.log.Error("device wait idle before teardown", slog.Any("err", err))
	}
	frame.DestroySlots(r.slots)
	r.slots = nil
	r.indices.Destroy()
	r.vertices.Destroy()
	dev.DestroySampler(r.sampler)
	r.sampler = 0
	r.texture.Destroy()
	r.pipeline.Destroy()
	r.desc.Destroy()
	if r.swapchain != nil {
		r.swapchain.Destroy()
	}
	dev.DestroyCommandPool(r.pool)
	r.pool = 0
	r.ctx.Close()
	r.log.Info("renderer closed")
}
