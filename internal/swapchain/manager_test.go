package swapchain

import (
	"io"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/alloc"
	"github.com/hellhand/vkmesh/internal/device"
	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/gpu/simgpu"
)

// fakeSurface reports the scripted sizes in order, then repeats the last.
type fakeSurface struct {
	sizes [][2]int
	waits int
}

func (s *fakeSurface) FramebufferSize() (int, int) {
	sz := s.sizes[0]
	if len(s.sizes) > 1 {
		s.sizes = s.sizes[1:]
	}
	return sz[0], sz[1]
}

func (s *fakeSurface) WaitEvents() { s.waits++ }

type fixture struct {
	adapter *simgpu.Adapter
	sim     *simgpu.Device
	pool    gpu.CommandPool
	rp      gpu.RenderPass
	mgr     *Manager
}

func newFixture(t *testing.T, adapter *simgpu.Adapter, surface Surface) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, err := device.OpenCandidate(device.Evaluate(adapter), log)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := ctx.Device.CreateCommandPool(ctx.Queues.Graphics)
	if err != nil {
		t.Fatal(err)
	}
	a := alloc.New(ctx.Device, adapter.MemoryProperties(), pool, ctx.GraphicsQueue, log)
	rp, err := ctx.Device.CreateRenderPass(gpu.RenderPassCreateInfo{})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		adapter: adapter,
		sim:     adapter.Opened,
		pool:    pool,
		rp:      rp,
		mgr:     NewManager(ctx, a, surface, log),
	}
}

func (f *fixture) close(t *testing.T) {
	t.Helper()
	f.mgr.Destroy()
	f.mgr.Destroy()
	f.sim.DestroyRenderPass(f.rp)
	f.sim.DestroyCommandPool(f.pool)
	f.sim.Destroy()
	if v := f.sim.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t, simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU), &fakeSurface{sizes: [][2]int{{800, 600}}})
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.CreateFramebuffers(f.rp); err != nil {
		t.Fatal(err)
	}
	cfg := f.mgr.Config()
	if cfg.Format.Format != gpu.FormatB8G8R8A8Srgb {
		t.Errorf("format = %s", cfg.Format.Format)
	}
	if cfg.PresentMode != gpu.PresentModeMailbox {
		t.Errorf("present mode = %s", cfg.PresentMode)
	}
	if cfg.Extent != (gpu.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("extent = %+v", cfg.Extent)
	}
	if f.mgr.ImageCount() != 3 {
		t.Errorf("images = %d, want 3", f.mgr.ImageCount())
	}
	if f.mgr.DepthFormat() != gpu.FormatD32Sfloat {
		t.Errorf("depth format = %s", f.mgr.DepthFormat())
	}
	info, _ := f.sim.SwapchainInfo(f.mgr.Handle())
	if info.SharingMode != gpu.SharingModeExclusive {
		t.Errorf("sharing = %v with one family", info.SharingMode)
	}
	if n := f.sim.Live(simgpu.KindFramebuffer); n != f.mgr.ImageCount() {
		t.Errorf("%d framebuffers for %d images", n, f.mgr.ImageCount())
	}
	for i := 0; i < f.mgr.ImageCount(); i++ {
		img := f.mgr.Image(uint32(i))
		fb, ok := f.sim.FramebufferInfo(img.Framebuffer)
		if !ok {
			t.Fatalf("image %d has no framebuffer", i)
		}
		if len(fb.Attachments) != 2 || fb.Attachments[0] != img.View {
			t.Errorf("framebuffer %d attachments = %v", i, fb.Attachments)
		}
		if fb.Width != 800 || fb.Height != 600 {
			t.Errorf("framebuffer %d is %dx%d", i, fb.Width, fb.Height)
		}
	}
	f.close(t)
}

func TestCreateConcurrentSharing(t *testing.T) {
	adapter := simgpu.NewAdapter("split", gpu.AdapterTypeDiscreteGPU)
	adapter.Families = []gpu.QueueFamily{{Graphics: true, Count: 1}, {Present: true, Count: 1}}
	f := newFixture(t, adapter, &fakeSurface{sizes: [][2]int{{800, 600}}})
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	info, _ := f.sim.SwapchainInfo(f.mgr.Handle())
	if info.SharingMode != gpu.SharingModeConcurrent {
		t.Errorf("sharing = %v", info.SharingMode)
	}
	if !reflect.DeepEqual(info.QueueFamilyIndices, []uint32{0, 1}) {
		t.Errorf("families = %v", info.QueueFamilyIndices)
	}
	f.close(t)
}

func TestCreateFramebufferFailureReleases(t *testing.T) {
	f := newFixture(t, simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU), &fakeSurface{sizes: [][2]int{{800, 600}}})
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	f.sim.FailNext("CreateFramebuffer", errors.New("out of host memory"))
	if err := f.mgr.CreateFramebuffers(f.rp); err == nil {
		t.Fatal("expected failure")
	}
	if n := f.sim.Live(simgpu.KindFramebuffer); n != 0 {
		t.Errorf("%d framebuffers left", n)
	}
	f.close(t)
}

func TestRecreateIdempotent(t *testing.T) {
	f := newFixture(t, simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU), &fakeSurface{sizes: [][2]int{{800, 600}}})
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.CreateFramebuffers(f.rp); err != nil {
		t.Fatal(err)
	}
	baseline := f.sim.LiveObjects()
	for i := 0; i < 25; i++ {
		if err := f.mgr.Recreate(); err != nil {
			t.Fatalf("recreate %d: %v", i, err)
		}
		if got := f.sim.LiveObjects(); !reflect.DeepEqual(got, baseline) {
			t.Fatalf("recreate %d: live objects %v, want %v", i, got, baseline)
		}
	}
	if f.sim.Live(simgpu.KindRenderPass) != 1 {
		t.Error("render pass was rebuilt")
	}
	if f.sim.IdleWaits() != 25 {
		t.Errorf("idle waits = %d, want 25", f.sim.IdleWaits())
	}
	created := f.sim.Created(simgpu.KindSwapchain)
	destroyed := f.sim.Destroyed(simgpu.KindSwapchain)
	if created-destroyed != 1 {
		t.Errorf("swapchains created %d destroyed %d", created, destroyed)
	}
	f.close(t)
}

func TestRecreateTeardownOrder(t *testing.T) {
	f := newFixture(t, simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU), &fakeSurface{sizes: [][2]int{{800, 600}}})
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.CreateFramebuffers(f.rp); err != nil {
		t.Fatal(err)
	}
	n := f.mgr.ImageCount()
	f.sim.ResetCalls()
	if err := f.mgr.Recreate(); err != nil {
		t.Fatal(err)
	}

	want := []string{"destroy image-view", "destroy image", "destroy memory"}
	for i := 0; i < n; i++ {
		want = append(want, "destroy framebuffer")
	}
	for i := 0; i < n; i++ {
		want = append(want, "destroy image-view")
	}
	want = append(want, "destroy swapchain")

	calls := f.sim.Calls()
	if len(calls) < len(want) {
		t.Fatalf("only %d calls", len(calls))
	}
	for i, name := range want {
		if calls[i].Name != name {
			t.Fatalf("call %d = %s, want %s (calls %v)", i, calls[i].Name, name, calls)
		}
	}
	if calls[len(want)].Name != "create swapchain" {
		t.Errorf("rebuild starts with %s", calls[len(want)].Name)
	}
	f.close(t)
}

func TestRecreateWaitsWhileMinimized(t *testing.T) {
	surface := &fakeSurface{sizes: [][2]int{{800, 600}, {0, 0}, {0, 600}, {800, 0}, {800, 600}}}
	f := newFixture(t, simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU), surface)
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.Recreate(); err != nil {
		t.Fatal(err)
	}
	if surface.waits != 3 {
		t.Errorf("waited %d times, want 3", surface.waits)
	}
	f.close(t)
}

func TestRecreatePicksUpNewExtent(t *testing.T) {
	adapter := simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU)
	f := newFixture(t, adapter, &fakeSurface{sizes: [][2]int{{800, 600}}})
	if err := f.mgr.Create(); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.CreateFramebuffers(f.rp); err != nil {
		t.Fatal(err)
	}
	adapter.Surface.Capabilities.CurrentExtent = gpu.Extent2D{Width: 1024, Height: 768}
	if err := f.mgr.Recreate(); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Extent(); got != (gpu.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("extent = %+v", got)
	}
	fb, _ := f.sim.FramebufferInfo(f.mgr.Image(0).Framebuffer)
	if fb.Width != 1024 || fb.Height != 768 {
		t.Errorf("framebuffer is %dx%d", fb.Width, fb.Height)
	}
	f.close(t)
}
