package descriptor

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/gpu/simgpu"
)

func setup(t *testing.T) *simgpu.Device {
	t.Helper()
	a := simgpu.NewAdapter("gpu", gpu.AdapterTypeDiscreteGPU)
	if _, err := a.Open(gpu.DeviceCreateInfo{QueueFamilies: []uint32{0}}); err != nil {
		t.Fatal(err)
	}
	return a.Opened
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLayoutAndPool(t *testing.T) {
	b := LayoutBindings()
	if len(b) != 2 {
		t.Fatalf("%d bindings", len(b))
	}
	if b[0].Binding != 0 || b[0].Type != gpu.DescriptorTypeUniformBuffer || b[0].Stages != gpu.ShaderStageVertex {
		t.Errorf("binding 0 = %+v", b[0])
	}
	if b[1].Binding != 1 || b[1].Type != gpu.DescriptorTypeCombinedImageSampler || b[1].Stages != gpu.ShaderStageFragment {
		t.Errorf("binding 1 = %+v", b[1])
	}
	p := PoolInfo(2)
	if p.MaxSets != 2 || len(p.Sizes) != 2 || p.Sizes[0].Count != 2 || p.Sizes[1].Count != 2 {
		t.Errorf("pool = %+v", p)
	}
}

func TestAllocate(t *testing.T) {
	sim := setup(t)
	m, err := NewManager(sim, 2, discard())
	if err != nil {
		t.Fatal(err)
	}
	ubos := []gpu.Buffer{101, 102}
	tex := Texture{View: 201, Sampler: 301}
	if err := m.Allocate(ubos, 192, tex); err != nil {
		t.Fatal(err)
	}
	if m.Set(0) == m.Set(1) {
		t.Fatal("slots share a descriptor set")
	}
	for i := 0; i < 2; i++ {
		writes := sim.DescriptorWrites(m.Set(i))
		if len(writes) != 2 {
			t.Fatalf("set %d: %d writes", i, len(writes))
		}
		if writes[0].Buffer == nil || writes[0].Buffer.Buffer != ubos[i] || writes[0].Buffer.Range != 192 {
			t.Errorf("set %d uniform write = %+v", i, writes[0].Buffer)
		}
		img := writes[1].Image
		if img == nil || img.View != tex.View || img.Sampler != tex.Sampler || img.Layout != gpu.ImageLayoutShaderReadOnlyOptimal {
			t.Errorf("set %d image write = %+v", i, img)
		}
	}
	m.Destroy()
	if live := sim.LiveObjects(); len(live) != 0 {
		t.Errorf("left behind %v", live)
	}
}

func TestAllocateWrongCount(t *testing.T) {
	sim := setup(t)
	m, err := NewManager(sim, 2, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Destroy()
	if err := m.Allocate([]gpu.Buffer{1}, 192, Texture{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewManagerPoolFailure(t *testing.T) {
	sim := setup(t)
	sim.FailNext("CreateDescriptorPool", errors.New("injected"))
	if _, err := NewManager(sim, 2, discard()); err == nil {
		t.Fatal("expected failure")
	}
	if live := sim.LiveObjects(); len(live) != 0 {
		t.Errorf("left behind %v", live)
	}
}
