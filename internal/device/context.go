package device

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// Context is the opened logical device shared read-only by the other
// components.
type Context struct {
	Device        gpu.Device
	Adapter       gpu.Adapter
	Properties    gpu.AdapterProperties
	Queues        QueueFamilyIndices
	GraphicsQueue gpu.Queue
	PresentQueue  gpu.Queue
}

// Open selects the best adapter of inst and creates the logical device with
// one queue per unique family, anisotropic sampling and the swapchain
// extension.
func Open(inst gpu.Instance, log *slog.Logger) (*Context, error) {
	adapters, err := inst.Adapters()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate adapters")
	}
	best, err := Select(adapters, log)
	if err != nil {
		return nil, err
	}
	return OpenCandidate(best, log)
}

func OpenCandidate(c Candidate, log *slog.Logger) (*Context, error) {
	dev, err := c.Adapter.Open(gpu.DeviceCreateInfo{
		QueueFamilies:     c.Queues.Unique(),
		Extensions:        []string{SwapchainExtension},
		SamplerAnisotropy: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create logical device on %q", c.Properties.Name)
	}
	log.Info("using GPU",
		slog.String("name", c.Properties.Name),
		slog.String("type", c.Properties.Type.String()),
		slog.Int("graphicsFamily", int(c.Queues.Graphics)),
		slog.Int("presentFamily", int(c.Queues.Present)))
	return &Context{
		Device:        dev,
		Adapter:       c.Adapter,
		Properties:    c.Properties,
		Queues:        c.Queues,
		GraphicsQueue: dev.Queue(c.Queues.Graphics),
		PresentQueue:  dev.Queue(c.Queues.Present),
	}, nil
}

// Close destroys the logical device. Every child object must be gone.
func (c *Context) Close() {
	if c == nil || c.Device == nil {
		return
	}
	c.Device.Destroy()
	c.Device = nil
}
