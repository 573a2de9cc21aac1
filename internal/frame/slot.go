// Package frame drives per-frame work: two frame slots rotate so the CPU can
// prepare one frame while the GPU still renders the previous one.
package frame

import (
	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/alloc"
	"github.com/hellhand/vkmesh/internal/gpu"
)

// SlotCount is the number of frames in flight. It does not depend on the
// swapchain image count.
const SlotCount = 2

type State int

const (
	StateIdle State = iota
	StateWaitingOnFence
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
)

var stateNames = [...]string{"idle", "waiting-on-fence", "acquiring", "recording", "submitted", "presenting"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Slot is the per-frame-in-flight bundle. Nothing in a slot is touched by
// the CPU while its fence is unsignaled.
type Slot struct {
	Index          int
	ImageAcquired  gpu.Semaphore
	RenderFinished gpu.Semaphore
	InFlight       gpu.Fence
	Commands       gpu.CommandBuffer
	Uniform        *alloc.Buffer
	// Set is the descriptor set bound to this slot's uniform buffer.
	Set gpu.DescriptorSet

	dev    gpu.Device
	pool   gpu.CommandPool
	mapped []byte
	state  State
}

func (s *Slot) State() State { return s.state }

// NewSlots creates SlotCount slots. Fences start signaled so the first wait
// on each returns immediately.
func NewSlots(dev gpu.Device, pool gpu.CommandPool, a *alloc.Allocator) ([]*Slot, error) {
	slots := make([]*Slot, 0, SlotCount)
	cbs, err := dev.AllocateCommandBuffers(pool, SlotCount)
	if err != nil {
		return nil, errors.Wrap(err, "allocate frame command buffers")
	}
	for i := 0; i < SlotCount; i++ {
		s := &Slot{Index: i, Commands: cbs[i], dev: dev, pool: pool}
		slots = append(slots, s)
		if err := s.init(a); err != nil {
			for j := i + 1; j < SlotCount; j++ {
				dev.FreeCommandBuffers(pool, []gpu.CommandBuffer{cbs[j]})
			}
			DestroySlots(slots)
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
	}
	return slots, nil
}

func (s *Slot) init(a *alloc.Allocator) error {
	var err error
	if s.ImageAcquired, err = s.dev.CreateSemaphore(); err != nil {
		return errors.Wrap(err, "create image-acquired semaphore")
	}
	if s.RenderFinished, err = s.dev.CreateSemaphore(); err != nil {
		return errors.Wrap(err, "create render-finished semaphore")
	}
	if s.InFlight, err = s.dev.CreateFence(true); err != nil {
		return errors.Wrap(err, "create in-flight fence")
	}
	s.Uniform, err = a.CreateBuffer(gpu.DeviceSize(UniformSize), gpu.BufferUsageUniformBuffer,
		gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent)
	if err != nil {
		return errors.Wrap(err, "create uniform buffer")
	}
	if s.mapped, err = s.Uniform.Map(); err != nil {
		return err
	}
	return nil
}

// Destroy releases the slot's objects. The GPU must be done with them.
func (s *Slot) Destroy() {
	s.Uniform.Destroy()
	s.mapped = nil
	s.dev.DestroyFence(s.InFlight)
	s.dev.DestroySemaphore(s.RenderFinished)
	s.dev.DestroySemaphore(s.ImageAcquired)
	if s.Commands != 0 {
		s.dev.FreeCommandBuffers(s.pool, []gpu.CommandBuffer{s.Commands})
	}
	s.InFlight, s.RenderFinished, s.ImageAcquired, s.Commands = 0, 0, 0, 0
}

// WriteUniforms copies u into the slot's mapped uniform buffer. Only valid
// once the slot's fence has been waited on.
func (s *Slot) WriteUniforms(u *UniformBlock) {
	copy(s.mapped, u.Bytes())
}

func DestroySlots(slots []*Slot) {
	for _, s := range slots {
		s.Destroy()
	}
}

func UniformBuffers(slots []*Slot) []gpu.Buffer {
	out := make([]gpu.Buffer, len(slots))
	for i, s := range slots {
		out[i] = s.Uniform.Handle
	}
	return out
}
