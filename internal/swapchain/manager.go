// Package swapchain owns the presentable images and everything sized to
// them: color views, the depth buffer and one framebuffer per image.
package swapchain

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/alloc"
	"github.com/hellhand/vkmesh/internal/device"
	"github.com/hellhand/vkmesh/internal/gpu"
)

// Surface is the window side of presentation.
type Surface interface {
	FramebufferSize() (width, height int)
	// WaitEvents blocks until the window system has something to report.
	WaitEvents()
}

// Image is one presentable image. The image itself belongs to the swapchain;
// the view and framebuffer belong to the Manager.
type Image struct {
	Handle      gpu.Image
	View        gpu.ImageView
	Framebuffer gpu.Framebuffer
}

type Manager struct {
	dev     gpu.Device
	adapter gpu.Adapter
	queues  device.QueueFamilyIndices
	alloc   *alloc.Allocator
	surface Surface
	log     *slog.Logger

	cfg         Config
	handle      gpu.Swapchain
	images      []Image
	depth       *alloc.Image
	depthFormat gpu.Format
	renderPass  gpu.RenderPass
}

func NewManager(ctx *device.Context, a *alloc.Allocator, surface Surface, log *slog.Logger) *Manager {
	return &Manager{
		dev:     ctx.Device,
		adapter: ctx.Adapter,
		queues:  ctx.Queues,
		alloc:   a,
		surface: surface,
		log:     log,
	}
}

// Create negotiates and builds the swapchain, its views and the depth
// buffer. Framebuffers follow once a render pass exists.
func (m *Manager) Create() error {
	if m.handle != 0 {
		return errors.AssertionFailedf("swapchain already created")
	}
	if err := m.build(); err != nil {
		m.teardown()
		return err
	}
	return nil
}

func (m *Manager) build() error {
	support, err := m.adapter.SurfaceSupport()
	if err != nil {
		return errors.Wrap(err, "query surface support")
	}
	caps, err := m.dev.SurfaceCapabilities()
	if err != nil {
		return errors.Wrap(err, "query surface capabilities")
	}
	w, h := m.surface.FramebufferSize()
	cfg := Config{
		Format:      ChooseFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(caps, w, h),
		ImageCount:  ImageCount(caps),
	}
	if m.cfg.Format != (gpu.SurfaceFormat{}) && cfg.Format != m.cfg.Format {
		m.log.Warn("surface format changed; render pass not rebuilt",
			slog.String("was", m.cfg.Format.Format.String()),
			slog.String("now", cfg.Format.Format.String()))
	}

	info := gpu.SwapchainCreateInfo{
		MinImageCount: cfg.ImageCount,
		Format:        cfg.Format,
		Extent:        cfg.Extent,
		PresentMode:   cfg.PresentMode,
		SharingMode:   gpu.SharingModeExclusive,
	}
	if !m.queues.Shared() {
		info.SharingMode = gpu.SharingModeConcurrent
		info.QueueFamilyIndices = m.queues.Unique()
	}
	sc, err := m.dev.CreateSwapchain(info)
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	m.handle, m.cfg = sc, cfg

	handles, err := m.dev.SwapchainImages(sc)
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	m.images = make([]Image, len(handles))
	for i, img := range handles {
		m.images[i].Handle = img
		view, err := m.dev.CreateImageView(gpu.ImageViewCreateInfo{
			Image:  img,
			Format: cfg.Format.Format,
			Aspect: gpu.ImageAspectColor,
		})
		if err != nil {
			return errors.Wrapf(err, "create image view %d", i)
		}
		m.images[i].View = view
	}

	if err := m.createDepth(); err != nil {
		return err
	}
	m.log.Debug("swapchain created",
		slog.String("format", cfg.Format.Format.String()),
		slog.String("presentMode", cfg.PresentMode.String()),
		slog.Int("width", int(cfg.Extent.Width)),
		slog.Int("height", int(cfg.Extent.Height)),
		slog.Int("images", len(m.images)))
	return nil
}

func (m *Manager) createDepth() error {
	if m.depthFormat == gpu.FormatUndefined {
		f, err := FindDepthFormat(m.adapter)
		if err != nil {
			return err
		}
		m.depthFormat = f
	}
	img, err := m.alloc.CreateImage(m.cfg.Extent.Width, m.cfg.Extent.Height, m.depthFormat,
		gpu.ImageTilingOptimal, gpu.ImageUsageDepthStencilAttachment, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "create depth image")
	}
	m.depth = img
	if err := img.CreateView(gpu.ImageAspectDepth); err != nil {
		return errors.Wrap(err, "create depth image view")
	}
	return nil
}

// CreateFramebuffers builds one framebuffer per image with attachments
// {color view, depth view}. rp is kept for later recreations.
func (m *Manager) CreateFramebuffers(rp gpu.RenderPass) error {
	m.renderPass = rp
	for i := range m.images {
		fb, err := m.dev.CreateFramebuffer(gpu.FramebufferCreateInfo{
			RenderPass:  rp,
			Attachments: []gpu.ImageView{m.images[i].View, m.depth.View},
			Width:       m.cfg.Extent.Width,
			Height:      m.cfg.Extent.Height,
		})
		if err != nil {
			m.destroyFramebuffers()
			return errors.Wrapf(err, "create framebuffer %d", i)
		}
		m.images[i].Framebuffer = fb
	}
	return nil
}

// Recreate rebuilds everything sized to the swapchain. It blocks while the
// window has no area, then waits for the device to go idle before tearing
// anything down.
func (m *Manager) Recreate() error {
	w, h := m.surface.FramebufferSize()
	for w == 0 || h == 0 {
		m.surface.WaitEvents()
		w, h = m.surface.FramebufferSize()
	}
	if err := m.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "device wait idle")
	}
	m.teardown()
	if err := m.build(); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	if m.renderPass != 0 {
		if err := m.CreateFramebuffers(m.renderPass); err != nil {
			return errors.Wrap(err, "recreate swapchain")
		}
	}
	m.log.Info("swapchain recreated",
		slog.Int("width", int(m.cfg.Extent.Width)),
		slog.Int("height", int(m.cfg.Extent.Height)))
	return nil
}

// teardown destroys depth view, depth image, depth memory, framebuffers,
// image views and the swapchain, in that order.
func (m *Manager) teardown() {
	m.depth.Destroy()
	m.depth = nil
	m.destroyFramebuffers()
	for i := range m.images {
		m.dev.DestroyImageView(m.images[i].View)
	}
	m.images = nil
	m.dev.DestroySwapchain(m.handle)
	m.handle = 0
}

func (m *Manager) destroyFramebuffers() {
	for i := range m.images {
		m.dev.DestroyFramebuffer(m.images[i].Framebuffer)
		m.images[i].Framebuffer = 0
	}
}

// Destroy releases everything the Manager owns. The device must be idle.
func (m *Manager) Destroy() {
	m.teardown()
	m.renderPass = 0
}

func (m *Manager) Handle() gpu.Swapchain { return m.handle }

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) Extent() gpu.Extent2D { return m.cfg.Extent }

func (m *Manager) ColorFormat() gpu.Format { return m.cfg.Format.Format }

// DepthFormat is valid after Create.
func (m *Manager) DepthFormat() gpu.Format { return m.depthFormat }

func (m *Manager) ImageCount() int { return len(m.images) }

func (m *Manager) Image(i uint32) Image { return m.images[i] }
