package renderer

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/assets"
	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/gpu/simgpu"
	"github.com/hellhand/vkmesh/internal/platform"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

type window struct{ w, h int }

func (w *window) FramebufferSize() (int, int) { return w.w, w.h }
func (w *window) WaitEvents()                 {}

func bundle() *assets.Bundle {
	return &assets.Bundle{
		Vertex:   spirv,
		Fragment: spirv,
		Texture: &assets.Texture{Width: 2, Height: 2, Pixels: []byte{
			255, 255, 255, 255, 50, 50, 50, 255,
			50, 50, 50, 255, 255, 255, 255, 255,
		}},
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func checkClean(t *testing.T, sim *simgpu.Device) {
	t.Helper()
	if !sim.Gone() {
		t.Error("device not destroyed")
	}
	if live := sim.LiveObjects(); len(live) != 0 {
		t.Errorf("left behind %v", live)
	}
	if v := sim.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestLifecycle(t *testing.T) {
	integrated := simgpu.NewAdapter("integrated", gpu.AdapterTypeIntegratedGPU)
	discrete := simgpu.NewAdapter("discrete", gpu.AdapterTypeDiscreteGPU)
	win := &window{800, 600}
	r, err := New(simgpu.NewInstance(integrated, discrete), win, bundle(), discard())
	if err != nil {
		t.Fatal(err)
	}
	if integrated.Opened != nil {
		t.Fatal("opened the lower scoring adapter")
	}
	sim := discrete.Opened

	for i := 0; i < 20; i++ {
		if err := r.DrawFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	discrete.Surface.Capabilities.CurrentExtent = gpu.Extent2D{Width: 640, Height: 480}
	win.w, win.h = 640, 480
	if r.HandleEvent(platform.ResizeEvent{Width: 640, Height: 480}) {
		t.Fatal("resize asked to quit")
	}
	for i := 0; i < 20; i++ {
		if err := r.DrawFrame(); err != nil {
			t.Fatalf("frame %d after resize: %v", i, err)
		}
	}
	if e := r.swapchain.Extent(); e.Width != 640 || e.Height != 480 {
		t.Errorf("extent after resize = %+v", e)
	}
	if r.Frames() < 39 {
		t.Errorf("presented %d frames", r.Frames())
	}
	if !r.HandleEvent(platform.CloseEvent{}) {
		t.Error("close event did not ask to quit")
	}

	r.Close()
	r.Close()
	checkClean(t, sim)
}

func TestSamplerUsesAdapterLimit(t *testing.T) {
	a := simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU)
	a.Props.MaxSamplerAnisotropy = 8
	r, err := New(simgpu.NewInstance(a), &window{800, 600}, bundle(), discard())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if a.LastOpen.SamplerAnisotropy != true {
		t.Error("anisotropy feature not enabled on the device")
	}
	if r.sampler == 0 || r.texture.View == 0 {
		t.Error("texture not ready")
	}
	if got := a.Opened.ImageLayout(r.texture.Handle); got != gpu.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("texture layout = %s", got)
	}
}

func TestTextureTooLarge(t *testing.T) {
	a := simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU)
	a.Props.MaxImageDimension2D = 1
	_, err := New(simgpu.NewInstance(a), &window{800, 600}, bundle(), discard())
	if err == nil {
		t.Fatal("expected error")
	}
	checkClean(t, a.Opened)
}

func TestNoDevice(t *testing.T) {
	a := simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU)
	a.Exts = nil
	_, err := New(simgpu.NewInstance(a), &window{800, 600}, bundle(), discard())
	var nsd *gpu.NoSuitableDeviceError
	if !errors.As(err, &nsd) {
		t.Fatalf("err = %v", err)
	}
	if a.Opened != nil {
		t.Error("opened an unsuitable adapter")
	}
}

// Each construction step failing must leave nothing behind.
func TestConstructionFailureReleasesEverything(t *testing.T) {
	for _, op := range []string{
		"CreateCommandPool",
		"CreateSwapchain",
		"CreateDescriptorSetLayout",
		"CreateGraphicsPipeline",
		"CreateFramebuffer",
		"CreateImage",
		"CreateSampler",
		"CreateBuffer",
		"AllocateCommandBuffers",
		"CreateFence",
		"AllocateDescriptorSets",
	} {
		t.Run(op, func(t *testing.T) {
			a := simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU)
			a.FailOnOpen = map[string]error{op: errors.New("injected")}
			_, err := New(simgpu.NewInstance(a), &window{800, 600}, bundle(), discard())
			if err == nil {
				t.Fatal("expected error")
			}
			checkClean(t, a.Opened)
		})
	}
}
