package alloc

import (
	"bytes"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/gpu/simgpu"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestAllocator(t *testing.T, adapter *simgpu.Adapter) (*Allocator, *simgpu.Device, gpu.CommandPool) {
	t.Helper()
	dev, err := adapter.Open(gpu.DeviceCreateInfo{QueueFamilies: []uint32{0}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sim := dev.(*simgpu.Device)
	pool, err := dev.CreateCommandPool(0)
	if err != nil {
		t.Fatalf("command pool: %v", err)
	}
	return New(dev, adapter.MemoryProperties(), pool, dev.Queue(0), discard()), sim, pool
}

func TestUploadBufferRoundTrip(t *testing.T) {
	a, sim, pool := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))

	for _, size := range []int{1, 3, 32, 4096, 65537} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i*7 + size)
		}
		buf, err := a.UploadBuffer(data, gpu.BufferUsageVertexBuffer)
		if err != nil {
			t.Fatalf("upload %d bytes: %v", size, err)
		}
		typ, _ := sim.MemoryType(buf.Memory)
		if typ != 0 {
			t.Errorf("size %d: destination in memory type %d, want device-local type 0", size, typ)
		}
		got, err := a.ReadBuffer(buf)
		if err != nil {
			t.Fatalf("read back %d bytes: %v", size, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("size %d: read back differs from upload", size)
		}
		buf.Destroy()
	}

	if n := sim.Live(simgpu.KindBuffer); n != 0 {
		t.Errorf("%d buffers still live after destroy", n)
	}
	if n := sim.Live(simgpu.KindMemory); n != 0 {
		t.Errorf("%d allocations still live after destroy", n)
	}
	if n := sim.Live(simgpu.KindCommandBuffer); n != 0 {
		t.Errorf("%d one-shot command buffers leaked", n)
	}
	sim.DestroyCommandPool(pool)
	sim.Destroy()
	if v := sim.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestUploadBufferEmpty(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))
	if _, err := a.UploadBuffer(nil, gpu.BufferUsageIndexBuffer); err == nil {
		t.Fatal("expected error for empty upload")
	}
	if n := sim.Created(simgpu.KindBuffer); n != 0 {
		t.Errorf("created %d buffers for empty upload", n)
	}
}

func TestNoSuitableMemoryTypeAllocatesNothing(t *testing.T) {
	adapter := simgpu.NewAdapter("device-local only", gpu.AdapterTypeDiscreteGPU)
	adapter.TypeBits = 1 // only the device-local type is allowed
	a, sim, _ := newTestAllocator(t, adapter)

	_, err := a.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageVertexBuffer)
	var memErr *gpu.NoSuitableMemoryTypeError
	if !errors.As(err, &memErr) {
		t.Fatalf("got %v, want NoSuitableMemoryTypeError", err)
	}
	if memErr.TypeBits != 1 {
		t.Errorf("type bits = %#x, want 0x1", memErr.TypeBits)
	}
	if n := sim.Created(simgpu.KindMemory); n != 0 {
		t.Errorf("allocated %d memory objects, want none", n)
	}
	if n := sim.Live(simgpu.KindBuffer); n != 0 {
		t.Errorf("%d buffers left behind", n)
	}
}

func TestCreateBufferReleasesOnAllocateFailure(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))
	sim.FailNext("AllocateMemory", errors.New("out of device memory"))

	if _, err := a.CreateBuffer(64, gpu.BufferUsageUniformBuffer, hostMemory); err == nil {
		t.Fatal("expected allocation failure")
	}
	if n := sim.Live(simgpu.KindBuffer); n != 0 {
		t.Errorf("%d buffers left behind", n)
	}
}

func TestUploadImage(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))

	const w, h = 4, 3
	pixels := make([]byte, w*h*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	img, err := a.UploadImage(pixels, w, h, gpu.FormatR8G8B8A8Srgb)
	if err != nil {
		t.Fatalf("upload image: %v", err)
	}
	if img.Layout() != gpu.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("tracked layout = %s", img.Layout())
	}
	if got := sim.ImageLayout(img.Handle); got != gpu.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("device layout = %s", got)
	}
	if !bytes.Equal(sim.ImageData(img.Handle), pixels) {
		t.Error("image texels differ from upload")
	}
	if n := sim.Live(simgpu.KindBuffer); n != 0 {
		t.Errorf("staging buffer not released (%d live)", n)
	}
	if err := img.CreateView(gpu.ImageAspectColor); err != nil {
		t.Fatalf("view: %v", err)
	}

	sim.ResetCalls()
	img.Destroy()
	img.Destroy()
	want := []string{"destroy image-view", "destroy image", "destroy memory"}
	calls := sim.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i, c := range calls {
		if c.Name != want[i] {
			t.Errorf("call %d = %s, want %s", i, c.Name, want[i])
		}
	}
	if v := sim.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestUploadImageWrongSize(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))
	if _, err := a.UploadImage(make([]byte, 10), 2, 2, gpu.FormatR8G8B8A8Srgb); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if n := sim.Created(simgpu.KindImage); n != 0 {
		t.Errorf("created %d images", n)
	}
}

func TestTransitionUnsupportedKeepsLayout(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))
	img, err := a.CreateImage(2, 2, gpu.FormatR8G8B8A8Srgb, gpu.ImageTilingOptimal,
		gpu.ImageUsageTransferDst|gpu.ImageUsageSampled, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer img.Destroy()

	before := len(sim.Submissions())
	err = a.Transition(img, gpu.ImageLayoutShaderReadOnlyOptimal)
	var lerr *gpu.UnsupportedLayoutTransitionError
	if !errors.As(err, &lerr) {
		t.Fatalf("got %v, want UnsupportedLayoutTransitionError", err)
	}
	if img.Layout() != gpu.ImageLayoutUndefined {
		t.Errorf("layout changed to %s", img.Layout())
	}
	if after := len(sim.Submissions()); after != before {
		t.Errorf("failed transition submitted %d batches", after-before)
	}
}

func TestTransitionSubmitFailureKeepsLayout(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))
	img, err := a.CreateImage(2, 2, gpu.FormatR8G8B8A8Srgb, gpu.ImageTilingOptimal,
		gpu.ImageUsageTransferDst|gpu.ImageUsageSampled, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer img.Destroy()

	sim.FailNext("Submit", errors.New("device lost"))
	if err := a.Transition(img, gpu.ImageLayoutTransferDstOptimal); err == nil {
		t.Fatal("expected submit failure")
	}
	if img.Layout() != gpu.ImageLayoutUndefined {
		t.Errorf("layout changed to %s", img.Layout())
	}
	if n := sim.Live(simgpu.KindCommandBuffer); n != 0 {
		t.Errorf("%d command buffers leaked", n)
	}
}

func TestBufferPersistentMap(t *testing.T) {
	a, sim, _ := newTestAllocator(t, simgpu.NewAdapter("test", gpu.AdapterTypeDiscreteGPU))
	buf, err := a.CreateBuffer(16, gpu.BufferUsageUniformBuffer, hostMemory)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m1, err := buf.Map()
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	m2, _ := buf.Map()
	if &m1[0] != &m2[0] {
		t.Error("second Map returned a different mapping")
	}
	if err := buf.Write([]byte{9, 8, 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := sim.BufferData(buf.Handle)[:3]; !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Errorf("buffer data = %v", got)
	}
	if err := buf.Write(make([]byte, 17)); err == nil {
		t.Error("expected overflow error")
	}
	buf.Destroy()
	if v := sim.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}
