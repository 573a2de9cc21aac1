package frame

import (
	"io"
	"testing"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/alloc"
	"github.com/hellhand/vkmesh/internal/descriptor"
	"github.com/hellhand/vkmesh/internal/device"
	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/gpu/simgpu"
	"github.com/hellhand/vkmesh/internal/mesh"
	"github.com/hellhand/vkmesh/internal/pipeline"
	"github.com/hellhand/vkmesh/internal/swapchain"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

type window struct {
	w, h int
}

func (w *window) FramebufferSize() (int, int) { return w.w, w.h }
func (w *window) WaitEvents()                 {}

// rig is a full frame loop on the simulated device.
type rig struct {
	t        *testing.T
	adapter  *simgpu.Adapter
	sim      *simgpu.Device
	ctx      *device.Context
	pool     gpu.CommandPool
	sc       *swapchain.Manager
	desc     *descriptor.Manager
	pipe     *pipeline.Pipeline
	tex      *alloc.Image
	sampler  gpu.Sampler
	vertices *alloc.Buffer
	indices  *alloc.Buffer
	slots    []*Slot
	sync     *Synchronizer
	win      *window
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func newRig(t *testing.T) *rig {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &rig{t: t, adapter: simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU), win: &window{800, 600}}
	ctx, err := device.OpenCandidate(device.Evaluate(r.adapter), log)
	must(t, err)
	r.ctx, r.sim = ctx, r.adapter.Opened
	r.pool, err = r.sim.CreateCommandPool(ctx.Queues.Graphics)
	must(t, err)
	a := alloc.New(r.sim, r.adapter.MemoryProperties(), r.pool, ctx.GraphicsQueue, log)

	r.sc = swapchain.NewManager(ctx, a, r.win, log)
	must(t, r.sc.Create())
	r.desc, err = descriptor.NewManager(r.sim, SlotCount, log)
	must(t, err)
	r.pipe, err = pipeline.NewBuilder(r.sim, log).Build(r.sc.ColorFormat(), r.sc.DepthFormat(), r.desc.Layout(), spirv, spirv)
	must(t, err)
	must(t, r.sc.CreateFramebuffers(r.pipe.RenderPass))

	r.tex, err = a.UploadImage([]byte{255, 0, 0, 255}, 1, 1, gpu.FormatR8G8B8A8Srgb)
	must(t, err)
	must(t, r.tex.CreateView(gpu.ImageAspectColor))
	r.sampler, err = r.sim.CreateSampler(gpu.SamplerCreateInfo{})
	must(t, err)
	r.vertices, err = a.UploadBuffer(mesh.VertexBytes(mesh.Vertices), gpu.BufferUsageVertexBuffer)
	must(t, err)
	r.indices, err = a.UploadBuffer(mesh.IndexBytes(mesh.Indices), gpu.BufferUsageIndexBuffer)
	must(t, err)

	r.slots, err = NewSlots(r.sim, r.pool, a)
	must(t, err)
	must(t, r.desc.Allocate(UniformBuffers(r.slots), gpu.DeviceSize(UniformSize),
		descriptor.Texture{View: r.tex.View, Sampler: r.sampler}))
	for i, s := range r.slots {
		s.Set = r.desc.Set(i)
	}
	rec := NewCommandRecorder(r.sim, r.pipe, Geometry{
		Vertices:   r.vertices.Handle,
		Indices:    r.indices.Handle,
		IndexType:  mesh.IndexType,
		IndexCount: uint32(len(mesh.Indices)),
	})
	r.sync = NewSynchronizer(r.sim, Queues{Graphics: ctx.GraphicsQueue, Present: ctx.PresentQueue}, r.slots, r.sc, rec, log)
	return r
}

func (r *rig) close() {
	t := r.t
	t.Helper()
	must(t, r.sim.WaitIdle())
	DestroySlots(r.slots)
	r.indices.Destroy()
	r.vertices.Destroy()
	r.sim.DestroySampler(r.sampler)
	r.tex.Destroy()
	r.pipe.Destroy()
	r.desc.Destroy()
	r.sc.Destroy()
	r.sim.DestroyCommandPool(r.pool)
	r.ctx.Close()
	if v := r.sim.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func (r *rig) draw(n int) {
	r.t.Helper()
	for i := 0; i < n; i++ {
		if err := r.sync.DrawFrame(); err != nil {
			r.t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func TestSlotsAlternate(t *testing.T) {
	r := newRig(t)
	defer r.close()
	r.sim.ResetCalls()

	const frames = 1000
	r.draw(frames)

	subs := r.sim.Submissions()
	if len(subs) < frames {
		t.Fatalf("%d submissions for %d frames", len(subs), frames)
	}
	subs = subs[len(subs)-frames:]
	for i, s := range subs {
		slot := r.slots[i%SlotCount]
		if len(s.CommandBuffers) != 1 || s.CommandBuffers[0] != slot.Commands {
			t.Fatalf("frame %d submitted %v, want slot %d's %d", i, s.CommandBuffers, slot.Index, slot.Commands)
		}
		if s.Fence != slot.InFlight {
			t.Fatalf("frame %d fence %d, want %d", i, s.Fence, slot.InFlight)
		}
		if s.Waits[0] != slot.ImageAcquired || s.Signals[0] != slot.RenderFinished {
			t.Fatalf("frame %d semaphores %v/%v", i, s.Waits, s.Signals)
		}
	}
	if got := r.sync.Frames(); got != frames {
		t.Errorf("Frames() = %d", got)
	}
	if r.sync.Current() != 0 {
		t.Errorf("Current() = %d after an even frame count", r.sync.Current())
	}
	if n := len(r.sim.InFlight()); n > SlotCount {
		t.Errorf("%d submissions in flight", n)
	}
	if c := r.sim.Created(simgpu.KindSwapchain); c != 1 {
		t.Errorf("swapchain created %d times in steady state", c)
	}
	for _, s := range r.slots {
		if s.State() != StateIdle {
			t.Errorf("slot %d left in %s", s.Index, s.State())
		}
	}
}

func TestRecordedCommands(t *testing.T) {
	r := newRig(t)
	defer r.close()
	r.draw(1)

	want := []string{
		"begin-render-pass", "bind-pipeline", "set-viewport", "set-scissor",
		"bind-vertex-buffer", "bind-index-buffer", "bind-descriptor-set", "draw-indexed", "end-render-pass",
	}
	ops := r.sim.Recorded(r.slots[0].Commands)
	if len(ops) != len(want) {
		t.Fatalf("recorded %d ops, want %d: %v", len(ops), len(want), ops)
	}
	for i, op := range ops {
		if op.Name != want[i] {
			t.Errorf("op %d = %s, want %s", i, op.Name, want[i])
		}
	}
}

func TestAcquireOutOfDateSkipsFrame(t *testing.T) {
	r := newRig(t)
	defer r.close()
	r.draw(2)
	before := len(r.sim.Submissions())

	r.sim.ScriptAcquire(gpu.StatusOutOfDate)
	r.sim.ResetCalls()
	must(t, r.sync.DrawFrame())

	if n := len(r.sim.Submissions()); n != before {
		t.Errorf("out-of-date acquire submitted work (%d -> %d)", before, n)
	}
	if r.sync.Current() != 0 {
		t.Errorf("slot advanced to %d on a skipped frame", r.sync.Current())
	}
	if r.sync.Recreates() != 1 || r.sim.Created(simgpu.KindSwapchain) != 2 {
		t.Errorf("recreates = %d, swapchains = %d", r.sync.Recreates(), r.sim.Created(simgpu.KindSwapchain))
	}
	// The skipped slot's fence must still be signaled: the next frame waits
	// on it without pending work.
	r.draw(3)
	if n := len(r.sim.Submissions()); n != before+3 {
		t.Errorf("%d submissions after recovery, want %d", n, before+3)
	}
}

func TestAcquireSuboptimalProceeds(t *testing.T) {
	r := newRig(t)
	defer r.close()
	r.sim.ScriptAcquire(gpu.StatusSuboptimal)
	r.draw(1)
	if len(r.sim.Submissions()) == 0 || len(r.sim.Presented()) != 1 {
		t.Fatal("suboptimal acquire did not render")
	}
	if r.sync.Recreates() != 0 {
		t.Errorf("suboptimal acquire recreated the swapchain")
	}
}

func TestPresentStaleRecreates(t *testing.T) {
	for _, status := range []gpu.Status{gpu.StatusSuboptimal, gpu.StatusOutOfDate} {
		t.Run(status.String(), func(t *testing.T) {
			r := newRig(t)
			defer r.close()
			r.sim.ScriptPresent(status)
			r.draw(1)
			if r.sync.Recreates() != 1 {
				t.Errorf("recreates = %d", r.sync.Recreates())
			}
			if r.sync.Current() != 1 {
				t.Errorf("presented frame did not advance the slot")
			}
			r.draw(4)
		})
	}
}

func TestNotifyResized(t *testing.T) {
	r := newRig(t)
	defer r.close()
	r.draw(3)

	r.adapter.Surface.Capabilities.CurrentExtent = gpu.Extent2D{Width: 1024, Height: 768}
	r.win.w, r.win.h = 1024, 768
	r.sync.NotifyResized()
	r.draw(1)

	if r.sync.Recreates() != 1 {
		t.Fatalf("recreates = %d", r.sync.Recreates())
	}
	if e := r.sc.Extent(); e.Width != 1024 || e.Height != 768 {
		t.Errorf("extent = %+v", e)
	}
	r.draw(10)
	if r.sync.Recreates() != 1 {
		t.Errorf("flag not cleared: recreates = %d", r.sync.Recreates())
	}
}

func TestPresentFatal(t *testing.T) {
	r := newRig(t)
	defer r.close()
	r.sim.ScriptPresent(gpu.StatusFatal)
	slot := r.slots[r.sync.Current()]
	if err := r.sync.DrawFrame(); err == nil {
		t.Fatal("expected error")
	}
	if slot.State() != StateSubmitted {
		t.Errorf("slot after failed present is %s, want %s", slot.State(), StateSubmitted)
	}
	if r.sync.Frames() != 0 || r.sync.Current() != slot.Index {
		t.Errorf("frames = %d, current = %d after failed present", r.sync.Frames(), r.sync.Current())
	}

	// The submitted work still completes, so the slot is usable again.
	r.draw(1)
	if slot.State() != StateIdle {
		t.Errorf("slot after recovery is %s", slot.State())
	}
}

func TestUniformsWritten(t *testing.T) {
	r := newRig(t)
	defer r.close()
	base := time.Unix(100, 0)
	r.sync.start = base
	r.sync.Now = func() time.Time { return base.Add(time.Second) }
	r.draw(1)

	want := ComputeUniforms(time.Second, r.sc.Extent())
	got, err := r.slots[0].Uniform.Read()
	must(t, err)
	if string(got) != string(want.Bytes()) {
		t.Error("slot 0 uniform buffer does not hold the frame's matrices")
	}
}

func TestComputeUniforms(t *testing.T) {
	u := ComputeUniforms(time.Second, gpu.Extent2D{Width: 800, Height: 600})
	// 90 degrees about Z maps +X to +Y.
	v := u.Model.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !v.ApproxEqualThreshold(mgl32.Vec4{0, 1, 0, 1}, 1e-5) {
		t.Errorf("model * x = %v", v)
	}
	if u.Proj[5] >= 0 {
		t.Errorf("projection Y not flipped: %v", u.Proj[5])
	}
	zero := ComputeUniforms(0, gpu.Extent2D{})
	if !zero.Model.ApproxEqual(mgl32.Ident4()) {
		t.Errorf("model at t=0 = %v", zero.Model)
	}
	if UniformSize != 192 {
		t.Errorf("UniformSize = %d", UniformSize)
	}
}
