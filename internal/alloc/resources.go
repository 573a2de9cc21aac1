package alloc

import (
	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// Buffer is a buffer paired with the memory bound to it.
type Buffer struct {
	dev    gpu.Device
	Handle gpu.Buffer
	Memory gpu.DeviceMemory
	Size   gpu.DeviceSize
	mapped []byte
}

// Map keeps the whole buffer mapped until Destroy and returns the mapping.
// The memory must be host visible.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	data, err := b.dev.MapMemory(b.Memory, 0, b.Size)
	if err != nil {
		return nil, errors.Wrap(err, "map buffer")
	}
	b.mapped = data
	return data, nil
}

// Write copies data to the start of the buffer. A buffer that is not
// persistently mapped is mapped only for the copy.
func (b *Buffer) Write(data []byte) error {
	if gpu.DeviceSize(len(data)) > b.Size {
		return errors.Newf("write of %d bytes into %d byte buffer", len(data), b.Size)
	}
	if b.mapped != nil {
		copy(b.mapped, data)
		return nil
	}
	dst, err := b.dev.MapMemory(b.Memory, 0, b.Size)
	if err != nil {
		return errors.Wrap(err, "map buffer")
	}
	copy(dst, data)
	b.dev.UnmapMemory(b.Memory)
	return nil
}

// Read returns a copy of a host-visible buffer's contents.
func (b *Buffer) Read() ([]byte, error) {
	if b.mapped != nil {
		return append([]byte(nil), b.mapped...), nil
	}
	src, err := b.dev.MapMemory(b.Memory, 0, b.Size)
	if err != nil {
		return nil, errors.Wrap(err, "map buffer")
	}
	out := append([]byte(nil), src...)
	b.dev.UnmapMemory(b.Memory)
	return out, nil
}

// Destroy unmaps, destroys the buffer, then frees its memory. Safe to call
// more than once.
func (b *Buffer) Destroy() {
	if b == nil || b.Handle == 0 {
		return
	}
	if b.mapped != nil {
		b.dev.UnmapMemory(b.Memory)
		b.mapped = nil
	}
	b.dev.DestroyBuffer(b.Handle)
	b.dev.FreeMemory(b.Memory)
	b.Handle, b.Memory = 0, 0
}

// Image is an image, its memory and an optional view.
type Image struct {
	dev    gpu.Device
	Handle gpu.Image
	Memory gpu.DeviceMemory
	View   gpu.ImageView
	Format gpu.Format
	Width  uint32
	Height uint32
	layout gpu.ImageLayout
}

// Layout is the layout the image was left in by the last transition.
func (img *Image) Layout() gpu.ImageLayout { return img.layout }

// CreateView creates the image's single 2D view.
func (img *Image) CreateView(aspect gpu.ImageAspectFlags) error {
	if img.View != 0 {
		return errors.AssertionFailedf("image %d already has a view", img.Handle)
	}
	view, err := img.dev.CreateImageView(gpu.ImageViewCreateInfo{
		Image:  img.Handle,
		Format: img.Format,
		Aspect: aspect,
	})
	if err != nil {
		return errors.Wrap(err, "create image view")
	}
	img.View = view
	return nil
}

// Destroy releases view, image and memory in that order. Safe to call more
// than once.
func (img *Image) Destroy() {
	if img == nil || img.Handle == 0 {
		return
	}
	img.dev.DestroyImageView(img.View)
	img.dev.DestroyImage(img.Handle)
	img.dev.FreeMemory(img.Memory)
	img.View, img.Handle, img.Memory = 0, 0, 0
}
