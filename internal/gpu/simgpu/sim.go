// Package simgpu is an in-memory gpu backend. It executes transfers on the
// host, models asynchronous completion with a configurable number of
// submissions kept in flight, and records misuse (reusing in-flight command
// buffers, destroying referenced objects, leaked handles) as violations.
package simgpu

import (
	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// SwapchainExtension is the device extension adapters must expose to present.
const SwapchainExtension = "VK_KHR_swapchain"

type Instance struct {
	adapters  []*Adapter
	destroyed bool
}

func NewInstance(adapters ...*Adapter) *Instance {
	return &Instance{adapters: adapters}
}

func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	if i.destroyed {
		return nil, errors.New("simgpu: instance destroyed")
	}
	out := make([]gpu.Adapter, len(i.adapters))
	for n, a := range i.adapters {
		out[n] = a
	}
	return out, nil
}

func (i *Instance) Destroy() { i.destroyed = true }

func (i *Instance) Destroyed() bool { return i.destroyed }

// Adapter is a scriptable physical device. Fields may be edited freely before
// Open; Surface.Capabilities may also be edited afterwards to simulate resizes.
type Adapter struct {
	Props    gpu.AdapterProperties
	Feats    gpu.AdapterFeatures
	Families []gpu.QueueFamily
	Exts     []string
	Surface  gpu.SurfaceSupport
	Memory   gpu.MemoryProperties
	Formats  map[gpu.Format]gpu.FormatProperties
	// TypeBits restricts the memory types resources accept; zero accepts all.
	TypeBits uint32
	OpenErr  error

	// FailOnOpen is handed to FailNext on the device Open returns.
	FailOnOpen map[string]error

	Opened   *Device
	LastOpen gpu.DeviceCreateInfo
}

// NewAdapter returns an adapter that satisfies every renderer requirement:
// one graphics+present family, the swapchain extension, anisotropy, a
// BGRA sRGB surface with FIFO and mailbox, a device-local and a
// host-visible+coherent memory type, and D32 depth support.
func NewAdapter(name string, t gpu.AdapterType) *Adapter {
	return &Adapter{
		Props: gpu.AdapterProperties{
			Name:                 name,
			Type:                 t,
			MaxImageDimension2D:  16384,
			MaxSamplerAnisotropy: 16,
		},
		Feats:    gpu.AdapterFeatures{SamplerAnisotropy: true},
		Families: []gpu.QueueFamily{{Graphics: true, Present: true, Count: 1}},
		Exts:     []string{SwapchainExtension},
		Surface: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  8,
				CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
				MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
				{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox},
		},
		Memory: gpu.MemoryProperties{Types: []gpu.MemoryType{
			{PropertyFlags: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 1},
		}},
		Formats: map[gpu.Format]gpu.FormatProperties{
			gpu.FormatD32Sfloat: {OptimalTilingFeatures: gpu.FormatFeatureDepthStencilAttachment},
			gpu.FormatR8G8B8A8Srgb: {
				OptimalTilingFeatures: gpu.FormatFeatureSampledImage,
				LinearTilingFeatures:  gpu.FormatFeatureSampledImage,
			},
		},
	}
}

func (a *Adapter) Properties() gpu.AdapterProperties { return a.Props }

func (a *Adapter) Features() gpu.AdapterFeatures { return a.Feats }

func (a *Adapter) QueueFamilies() []gpu.QueueFamily {
	return append([]gpu.QueueFamily(nil), a.Families...)
}

func (a *Adapter) Extensions() ([]string, error) {
	return append([]string(nil), a.Exts...), nil
}

func (a *Adapter) SurfaceSupport() (gpu.SurfaceSupport, error) {
	s := a.Surface
	s.Formats = append([]gpu.SurfaceFormat(nil), a.Surface.Formats...)
	s.PresentModes = append([]gpu.PresentMode(nil), a.Surface.PresentModes...)
	return s, nil
}

func (a *Adapter) MemoryProperties() gpu.MemoryProperties {
	return gpu.MemoryProperties{Types: append([]gpu.MemoryType(nil), a.Memory.Types...)}
}

func (a *Adapter) FormatProperties(f gpu.Format) gpu.FormatProperties {
	return a.Formats[f]
}

func (a *Adapter) Open(info gpu.DeviceCreateInfo) (gpu.Device, error) {
	if a.OpenErr != nil {
		return nil, a.OpenErr
	}
	have := make(map[string]bool, len(a.Exts))
	for _, e := range a.Exts {
		have[e] = true
	}
	for _, e := range info.Extensions {
		if !have[e] {
			return nil, &gpu.ResultError{Op: "create device", Code: -7, Err: errors.Newf("extension %s not present", e)}
		}
	}
	if info.SamplerAnisotropy && !a.Feats.SamplerAnisotropy {
		return nil, &gpu.ResultError{Op: "create device", Code: -8, Err: errors.New("feature not present")}
	}
	a.LastOpen = info
	a.Opened = newDevice(a)
	for op, err := range a.FailOnOpen {
		a.Opened.FailNext(op, err)
	}
	return a.Opened, nil
}
