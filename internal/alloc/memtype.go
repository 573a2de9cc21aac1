package alloc

import "github.com/hellhand/vkmesh/internal/gpu"

// MemoryTypeResolver picks device memory types for resource requirements.
type MemoryTypeResolver struct {
	types []gpu.MemoryType
}

func NewMemoryTypeResolver(props gpu.MemoryProperties) *MemoryTypeResolver {
	return &MemoryTypeResolver{types: append([]gpu.MemoryType(nil), props.Types...)}
}

// Resolve returns the first memory type allowed by typeBits that has every
// flag in want.
func (r *MemoryTypeResolver) Resolve(typeBits uint32, want gpu.MemoryPropertyFlags) (uint32, error) {
	for i, t := range r.types {
		if i >= 32 {
			break
		}
		if typeBits&(1<<uint(i)) != 0 && t.PropertyFlags&want == want {
			return uint32(i), nil
		}
	}
	return 0, &gpu.NoSuitableMemoryTypeError{TypeBits: typeBits, Properties: want}
}
