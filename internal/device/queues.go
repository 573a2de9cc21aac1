package device

import "github.com/hellhand/vkmesh/internal/gpu"

// QueueFamilyIndices locates the graphics and present queue families.
type QueueFamilyIndices struct {
	Graphics    uint32
	Present     uint32
	HasGraphics bool
	HasPresent  bool
}

func (q QueueFamilyIndices) Complete() bool { return q.HasGraphics && q.HasPresent }

// Unique lists the distinct families, graphics first.
func (q QueueFamilyIndices) Unique() []uint32 {
	if q.Graphics == q.Present {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// Shared reports whether one family serves both roles.
func (q QueueFamilyIndices) Shared() bool { return q.Graphics == q.Present }

// FindQueueFamilies takes the first graphics-capable family and the first
// family able to present, stopping at the first family that does both.
// Families exposing no queues are skipped.
func FindQueueFamilies(families []gpu.QueueFamily) QueueFamilyIndices {
	var q QueueFamilyIndices
	for i, f := range families {
		if f.Count == 0 {
			continue
		}
		if f.Graphics && f.Present {
			return QueueFamilyIndices{Graphics: uint32(i), Present: uint32(i), HasGraphics: true, HasPresent: true}
		}
		if f.Graphics && !q.HasGraphics {
			q.Graphics, q.HasGraphics = uint32(i), true
		}
		if f.Present && !q.HasPresent {
			q.Present, q.HasPresent = uint32(i), true
		}
	}
	return q
}
