package frame

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
	"github.com/hellhand/vkmesh/internal/swapchain"
)

// Presenter is the swapchain as the frame loop sees it.
type Presenter interface {
	Handle() gpu.Swapchain
	Extent() gpu.Extent2D
	Image(i uint32) swapchain.Image
	Recreate() error
}

// Queues are the submit and present queues; they may be the same queue.
type Queues struct {
	Graphics gpu.Queue
	Present  gpu.Queue
}

// Synchronizer runs the acquire, record, submit and present cycle over the
// frame slots.
type Synchronizer struct {
	dev       gpu.Device
	queues    Queues
	slots     []*Slot
	presenter Presenter
	recorder  *CommandRecorder
	log       *slog.Logger

	// Now is the clock used to animate the model. Replaced in tests.
	Now   func() time.Time
	start time.Time

	current   int
	frames    uint64
	recreates uint64
	resized   atomic.Bool
}

func NewSynchronizer(dev gpu.Device, q Queues, slots []*Slot, p Presenter, r *CommandRecorder, log *slog.Logger) *Synchronizer {
	s := &Synchronizer{
		dev:       dev,
		queues:    q,
		slots:     slots,
		presenter: p,
		recorder:  r,
		log:       log,
		Now:       time.Now,
	}
	s.start = s.Now()
	return s
}

// NotifyResized asks for a swapchain rebuild after the next present. Safe to
// call from a window callback.
func (s *Synchronizer) NotifyResized() { s.resized.Store(true) }

// Current is the slot the next DrawFrame will use.
func (s *Synchronizer) Current() int { return s.current }

// Frames counts frames that reached present.
func (s *Synchronizer) Frames() uint64 { return s.frames }

// Recreates counts swapchain rebuilds triggered by the frame loop.
func (s *Synchronizer) Recreates() uint64 { return s.recreates }

// DrawFrame renders and presents one frame. A stale swapchain is rebuilt and
// is not an error; only a fatal status or a failed rebuild is returned.
func (s *Synchronizer) DrawFrame() error {
	slot := s.slots[s.current]

	slot.state = StateWaitingOnFence
	if err := s.dev.WaitForFence(slot.InFlight, gpu.NoTimeout); err != nil {
		slot.state = StateIdle
		return errors.Wrap(err, "wait for in-flight fence")
	}

	slot.state = StateAcquiring
	index, status, err := s.dev.AcquireNextImage(s.presenter.Handle(), gpu.NoTimeout, slot.ImageAcquired)
	if err != nil {
		slot.state = StateIdle
		return errors.Wrap(err, "acquire swapchain image")
	}
	if status == gpu.StatusOutOfDate {
		// The fence is still signaled, so the slot is reused next call.
		slot.state = StateIdle
		return s.recreate("acquire out of date")
	}

	extent := s.presenter.Extent()
	u := ComputeUniforms(s.Now().Sub(s.start), extent)
	slot.WriteUniforms(&u)

	if err := s.dev.ResetFence(slot.InFlight); err != nil {
		slot.state = StateIdle
		return errors.Wrap(err, "reset in-flight fence")
	}

	slot.state = StateRecording
	img := s.presenter.Image(index)
	if err := s.recorder.Record(slot.Commands, img.Framebuffer, extent, slot.Set); err != nil {
		slot.state = StateIdle
		return err
	}

	err = s.queues.Graphics.Submit(gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.ImageAcquired},
		WaitStages:       []gpu.PipelineStageFlags{gpu.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{slot.Commands},
		SignalSemaphores: []gpu.Semaphore{slot.RenderFinished},
	}, slot.InFlight)
	if err != nil {
		slot.state = StateIdle
		return errors.Wrap(err, "submit draw command buffer")
	}

	slot.state = StatePresenting
	status, err = s.queues.Present.Present(gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{slot.RenderFinished},
		Swapchain:      s.presenter.Handle(),
		ImageIndex:     index,
	})
	if err != nil {
		// The draw is in flight and its fence will signal; only present failed.
		slot.state = StateSubmitted
		return errors.Wrap(err, "present swapchain image")
	}
	slot.state = StateIdle
	s.frames++
	s.current = (s.current + 1) % len(s.slots)

	if resized := s.resized.Swap(false); status.Stale() || resized {
		reason := "present " + status.String()
		if resized {
			reason = "window resized"
		}
		return s.recreate(reason)
	}
	return nil
}

func (s *Synchronizer) recreate(reason string) error {
	s.resized.Store(false)
	s.recreates++
	s.log.Debug("recreating swapchain", slog.String("reason", reason))
	if err := s.presenter.Recreate(); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	return nil
}
