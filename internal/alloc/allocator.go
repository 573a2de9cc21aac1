// Package alloc creates GPU buffers and images with exclusively owned memory
// and moves data into device-local memory through staging buffers.
package alloc

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

const (
	stagingUsage = gpu.BufferUsageTransferSrc | gpu.BufferUsageTransferDst
	hostMemory   = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent
)

// Allocator owns nothing itself; every resource it returns is released by
// its own Destroy. One-shot transfers are recorded from pool and executed on
// queue, which must belong to the same family.
type Allocator struct {
	dev   gpu.Device
	types *MemoryTypeResolver
	pool  gpu.CommandPool
	queue gpu.Queue
	log   *slog.Logger
}

func New(dev gpu.Device, props gpu.MemoryProperties, pool gpu.CommandPool, queue gpu.Queue, log *slog.Logger) *Allocator {
	return &Allocator{
		dev:   dev,
		types: NewMemoryTypeResolver(props),
		pool:  pool,
		queue: queue,
		log:   log,
	}
}

func (a *Allocator) Resolver() *MemoryTypeResolver { return a.types }

// CreateBuffer creates a buffer and binds freshly allocated memory at offset 0.
// Nothing is allocated when no memory type matches.
func (a *Allocator) CreateBuffer(size gpu.DeviceSize, usage gpu.BufferUsageFlags, props gpu.MemoryPropertyFlags) (*Buffer, error) {
	handle, err := a.dev.CreateBuffer(gpu.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: gpu.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create buffer")
	}
	req := a.dev.BufferMemoryRequirements(handle)
	typeIndex, err := a.types.Resolve(req.MemoryTypeBits, props)
	if err != nil {
		a.dev.DestroyBuffer(handle)
		return nil, errors.Wrapf(err, "buffer memory (%d bytes)", size)
	}
	mem, err := a.dev.AllocateMemory(req.Size, typeIndex)
	if err != nil {
		a.dev.DestroyBuffer(handle)
		return nil, errors.Wrap(err, "allocate buffer memory")
	}
	if err := a.dev.BindBufferMemory(handle, mem, 0); err != nil {
		a.dev.DestroyBuffer(handle)
		a.dev.FreeMemory(mem)
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	a.log.Debug("buffer created",
		slog.Uint64("size", uint64(size)),
		slog.Int("memoryType", int(typeIndex)),
		slog.String("properties", props.String()))
	return &Buffer{dev: a.dev, Handle: handle, Memory: mem, Size: size}, nil
}

// CreateImage creates a 2D, single mip, single layer, single sample image
// with bound memory.
func (a *Allocator) CreateImage(width, height uint32, format gpu.Format, tiling gpu.ImageTiling, usage gpu.ImageUsageFlags, props gpu.MemoryPropertyFlags) (*Image, error) {
	handle, err := a.dev.CreateImage(gpu.ImageCreateInfo{
		Width:  width,
		Height: height,
		Format: format,
		Tiling: tiling,
		Usage:  usage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	req := a.dev.ImageMemoryRequirements(handle)
	typeIndex, err := a.types.Resolve(req.MemoryTypeBits, props)
	if err != nil {
		a.dev.DestroyImage(handle)
		return nil, errors.Wrapf(err, "image memory (%dx%d %s)", width, height, format)
	}
	mem, err := a.dev.AllocateMemory(req.Size, typeIndex)
	if err != nil {
		a.dev.DestroyImage(handle)
		return nil, errors.Wrap(err, "allocate image memory")
	}
	if err := a.dev.BindImageMemory(handle, mem, 0); err != nil {
		a.dev.DestroyImage(handle)
		a.dev.FreeMemory(mem)
		return nil, errors.Wrap(err, "bind image memory")
	}
	a.log.Debug("image created",
		slog.Int("width", int(width)),
		slog.Int("height", int(height)),
		slog.String("format", format.String()))
	return &Image{
		dev:    a.dev,
		Handle: handle,
		Memory: mem,
		Format: format,
		Width:  width,
		Height: height,
		layout: gpu.ImageLayoutUndefined,
	}, nil
}

// stage copies data into a new host-visible, host-coherent buffer.
func (a *Allocator) stage(data []byte) (*Buffer, error) {
	staging, err := a.CreateBuffer(gpu.DeviceSize(len(data)), stagingUsage, hostMemory)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}
	if err := staging.Write(data); err != nil {
		staging.Destroy()
		return nil, err
	}
	return staging, nil
}

// UploadBuffer places data in a new device-local buffer with usage plus
// transfer-dst (and transfer-src, so the contents can be read back).
func (a *Allocator) UploadBuffer(data []byte, usage gpu.BufferUsageFlags) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("upload of empty buffer")
	}
	staging, err := a.stage(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	size := gpu.DeviceSize(len(data))
	dst, err := a.CreateBuffer(size, usage|gpu.BufferUsageTransferDst|gpu.BufferUsageTransferSrc, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}
	if err := a.CopyBuffer(staging, dst, size); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// ReadBuffer copies the contents of a device-local buffer back to the host.
func (a *Allocator) ReadBuffer(src *Buffer) ([]byte, error) {
	readback, err := a.CreateBuffer(src.Size, gpu.BufferUsageTransferDst, hostMemory)
	if err != nil {
		return nil, errors.Wrap(err, "create read-back buffer")
	}
	defer readback.Destroy()
	if err := a.CopyBuffer(src, readback, src.Size); err != nil {
		return nil, err
	}
	return readback.Read()
}

// CopyBuffer copies size bytes from src to dst and waits for completion.
func (a *Allocator) CopyBuffer(src, dst *Buffer, size gpu.DeviceSize) error {
	err := a.RunOnce(func(cb gpu.CommandBuffer) {
		a.dev.CmdCopyBuffer(cb, src.Handle, dst.Handle, gpu.BufferCopy{Size: size})
	})
	return errors.Wrap(err, "copy buffer")
}

// UploadImage places tightly packed pixels in a new device-local sampled
// image and leaves it in shader-read-only layout.
func (a *Allocator) UploadImage(pixels []byte, width, height uint32, format gpu.Format) (*Image, error) {
	if want := int(width) * int(height) * 4; len(pixels) != want {
		return nil, errors.Newf("texture of %dx%d needs %d bytes, got %d", width, height, want, len(pixels))
	}
	staging, err := a.stage(pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := a.CreateImage(width, height, format, gpu.ImageTilingOptimal,
		gpu.ImageUsageTransferDst|gpu.ImageUsageSampled, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "create texture image")
	}
	if err := a.Transition(img, gpu.ImageLayoutTransferDstOptimal); err != nil {
		img.Destroy()
		return nil, err
	}
	if err := a.CopyBufferToImage(staging, img); err != nil {
		img.Destroy()
		return nil, err
	}
	if err := a.Transition(img, gpu.ImageLayoutShaderReadOnlyOptimal); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (a *Allocator) CopyBufferToImage(src *Buffer, dst *Image) error {
	err := a.RunOnce(func(cb gpu.CommandBuffer) {
		a.dev.CmdCopyBufferToImage(cb, src.Handle, dst.Handle, gpu.ImageLayoutTransferDstOptimal, gpu.BufferImageCopy{
			Aspect: gpu.ImageAspectColor,
			Width:  dst.Width,
			Height: dst.Height,
		})
	})
	return errors.Wrap(err, "copy buffer to image")
}

// Transition moves img to layout to. Unsupported pairs fail without
// recording anything and leave the tracked layout as it was.
func (a *Allocator) Transition(img *Image, to gpu.ImageLayout) error {
	from := img.layout
	t, err := LayoutTransition(from, to)
	if err != nil {
		return err
	}
	err = a.RunOnce(func(cb gpu.CommandBuffer) {
		a.dev.CmdPipelineBarrier(cb, t.SrcStage, t.DstStage, gpu.ImageBarrier{
			Image:     img.Handle,
			Aspect:    aspectOf(img.Format),
			OldLayout: from,
			NewLayout: to,
			SrcAccess: t.SrcAccess,
			DstAccess: t.DstAccess,
		})
	})
	if err != nil {
		return errors.Wrapf(err, "transition %s -> %s", from, to)
	}
	img.layout = to
	return nil
}

// RunOnce records a throwaway command buffer, submits it and blocks until
// the queue is idle. The command buffer is freed before returning.
func (a *Allocator) RunOnce(record func(cb gpu.CommandBuffer)) error {
	cbs, err := a.dev.AllocateCommandBuffers(a.pool, 1)
	if err != nil {
		return errors.Wrap(err, "allocate command buffer")
	}
	defer a.dev.FreeCommandBuffers(a.pool, cbs)
	cb := cbs[0]

	if err := a.dev.BeginCommandBuffer(cb, true); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	record(cb)
	if err := a.dev.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	if err := a.queue.Submit(gpu.SubmitInfo{CommandBuffers: cbs}, 0); err != nil {
		return errors.Wrap(err, "queue submit")
	}
	return errors.Wrap(a.queue.WaitIdle(), "queue wait idle")
}
