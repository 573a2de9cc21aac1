package mesh

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/hellhand/vkmesh/internal/gpu"
)

func TestLayout(t *testing.T) {
	if Stride != 32 {
		t.Fatalf("stride = %d, want 32", Stride)
	}
	want := []struct {
		offset uint32
		format gpu.Format
	}{
		{0, gpu.FormatR32G32B32Sfloat},
		{12, gpu.FormatR32G32B32Sfloat},
		{24, gpu.FormatR32G32Sfloat},
	}
	attrs := Attributes()
	if len(attrs) != len(want) {
		t.Fatalf("%d attributes", len(attrs))
	}
	for i, a := range attrs {
		if a.Location != uint32(i) || a.Offset != want[i].offset || a.Format != want[i].format {
			t.Errorf("attribute %d = %+v", i, a)
		}
	}
	if b := Bindings(); len(b) != 1 || b[0].Stride != 32 {
		t.Errorf("bindings = %+v", b)
	}
}

func TestVertexBytes(t *testing.T) {
	b := VertexBytes(Vertices)
	if len(b) != len(Vertices)*32 {
		t.Fatalf("len = %d", len(b))
	}
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	}
	// vertex 2: pos (0.5, 0.5, 0.5), color blue, uv (1, 1)
	base := 2 * 32
	got := []float32{f(base), f(base + 4), f(base + 8), f(base + 20), f(base + 24), f(base + 28)}
	want := []float32{0.5, 0.5, 0.5, 1, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %v, want %v", i, got[i], want[i])
		}
	}
	if VertexBytes(nil) != nil {
		t.Error("empty input should encode to nil")
	}
}

func TestIndices(t *testing.T) {
	if len(Indices) != 12 {
		t.Fatalf("%d indices", len(Indices))
	}
	for _, i := range Indices {
		if int(i) >= len(Vertices) {
			t.Errorf("index %d out of range", i)
		}
	}
	b := IndexBytes(Indices)
	if len(b) != 24 {
		t.Fatalf("len = %d", len(b))
	}
	if got := binary.LittleEndian.Uint16(b[6*2:]); got != 4 {
		t.Errorf("index 6 = %d, want 4", got)
	}
}
