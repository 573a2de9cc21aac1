package vkbackend

import (
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// Adapter is a physical device. Properties, features, queue families and
// memory properties do not change, so they are read once.
type Adapter struct {
	in       *Instance
	pd       vulkan.PhysicalDevice
	props    gpu.AdapterProperties
	features gpu.AdapterFeatures
	families []gpu.QueueFamily
	memory   gpu.MemoryProperties
}

var _ gpu.Adapter = (*Adapter)(nil)

func newAdapter(in *Instance, pd vulkan.PhysicalDevice) *Adapter {
	a := &Adapter{in: in, pd: pd}

	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()
	a.props = gpu.AdapterProperties{
		Name:                 vulkan.ToString(props.DeviceName[:]),
		Type:                 gpuAdapterType(props.DeviceType),
		MaxImageDimension2D:  props.Limits.MaxImageDimension2D,
		MaxSamplerAnisotropy: props.Limits.MaxSamplerAnisotropy,
	}

	var features vulkan.PhysicalDeviceFeatures
	vulkan.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	a.features.SamplerAnisotropy = features.SamplerAnisotropy == vulkan.True

	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	a.families = make([]gpu.QueueFamily, len(families))
	for i := range families {
		families[i].Deref()
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), in.surface, &present)
		a.families[i] = gpu.QueueFamily{
			Graphics: families[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0,
			Present:  present == vulkan.True,
			Count:    families[i].QueueCount,
		}
	}

	var mem vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(pd, &mem)
	mem.Deref()
	a.memory.Types = make([]gpu.MemoryType, mem.MemoryTypeCount)
	for i := range a.memory.Types {
		mem.MemoryTypes[i].Deref()
		a.memory.Types[i] = gpu.MemoryType{
			PropertyFlags: gpu.MemoryPropertyFlags(fromBits(uint32(mem.MemoryTypes[i].PropertyFlags), memoryPropertyBits)),
			HeapIndex:     mem.MemoryTypes[i].HeapIndex,
		}
	}
	return a
}

func (a *Adapter) Properties() gpu.AdapterProperties { return a.props }

func (a *Adapter) Features() gpu.AdapterFeatures { return a.features }

func (a *Adapter) QueueFamilies() []gpu.QueueFamily { return a.families }

func (a *Adapter) MemoryProperties() gpu.MemoryProperties { return a.memory }

func (a *Adapter) Extensions() ([]string, error) {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(a.pd, "", &count, nil); res != vulkan.Success {
		return nil, resultError("enumerate device extensions", res)
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(a.pd, "", &count, props); res != vulkan.Success {
		return nil, resultError("enumerate device extensions", res)
	}
	names := make([]string, len(props))
	for i := range props {
		props[i].Deref()
		names[i] = vulkan.ToString(props[i].ExtensionName[:])
	}
	return names, nil
}

// SurfaceSupport queries the surface afresh. Formats and present modes the
// renderer has no name for are left out.
func (a *Adapter) SurfaceSupport() (gpu.SurfaceSupport, error) {
	caps, _, err := surfaceCapabilities(a.pd, a.in.surface)
	if err != nil {
		return gpu.SurfaceSupport{}, err
	}
	support := gpu.SurfaceSupport{Capabilities: caps}

	var formatCount uint32
	if res := vulkan.GetPhysicalDeviceSurfaceFormats(a.pd, a.in.surface, &formatCount, nil); res != vulkan.Success {
		return support, resultError("surface formats", res)
	}
	if formatCount > 0 {
		formats := make([]vulkan.SurfaceFormat, formatCount)
		if res := vulkan.GetPhysicalDeviceSurfaceFormats(a.pd, a.in.surface, &formatCount, formats); res != vulkan.Success {
			return support, resultError("surface formats", res)
		}
		for i := range formats {
			formats[i].Deref()
			f, ok := gpuFormat(formats[i].Format)
			cs, csok := gpuColorSpace(formats[i].ColorSpace)
			if !ok || !csok {
				continue
			}
			support.Formats = append(support.Formats, gpu.SurfaceFormat{Format: f, ColorSpace: cs})
		}
	}

	var presentCount uint32
	if res := vulkan.GetPhysicalDeviceSurfacePresentModes(a.pd, a.in.surface, &presentCount, nil); res != vulkan.Success {
		return support, resultError("surface present modes", res)
	}
	if presentCount > 0 {
		modes := make([]vulkan.PresentMode, presentCount)
		if res := vulkan.GetPhysicalDeviceSurfacePresentModes(a.pd, a.in.surface, &presentCount, modes); res != vulkan.Success {
			return support, resultError("surface present modes", res)
		}
		for _, m := range modes {
			if pm, ok := gpuPresentMode(m); ok {
				support.PresentModes = append(support.PresentModes, pm)
			}
		}
	}
	return support, nil
}

// surfaceCapabilities also returns the current transform, which swapchain
// creation passes through unchanged.
func surfaceCapabilities(pd vulkan.PhysicalDevice, surface vulkan.Surface) (gpu.SurfaceCapabilities, vulkan.SurfaceTransformFlagBits, error) {
	var caps vulkan.SurfaceCapabilities
	if res := vulkan.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &caps); res != vulkan.Success {
		return gpu.SurfaceCapabilities{}, 0, resultError("surface capabilities", res)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, caps.CurrentTransform, nil
}

func (a *Adapter) FormatProperties(f gpu.Format) gpu.FormatProperties {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(a.pd, vkFormat(f), &props)
	props.Deref()
	return gpu.FormatProperties{
		LinearTilingFeatures:  gpu.FormatFeatureFlags(fromBits(uint32(props.LinearTilingFeatures), formatFeatureBits)),
		OptimalTilingFeatures: gpu.FormatFeatureFlags(fromBits(uint32(props.OptimalTilingFeatures), formatFeatureBits)),
	}
}

// Open creates the logical device with one queue per requested family.
func (a *Adapter) Open(info gpu.DeviceCreateInfo) (gpu.Device, error) {
	createInfo := deviceCreateInfo(info, a.in.cfg.Validation)
	var dev vulkan.Device
	if res := vulkan.CreateDevice(a.pd, &createInfo, nil, &dev); res != vulkan.Success {
		return nil, resultError("create logical device", res)
	}
	a.in.log.Debug("logical device created",
		slog.String("adapter", a.props.Name),
		slog.Any("queue_families", info.QueueFamilies))
	return newDevice(a, dev), nil
}

// deviceCreateInfo asks for one queue per family in info and passes the
// extension and layer names NUL-terminated.
func deviceCreateInfo(info gpu.DeviceCreateInfo, validation bool) vulkan.DeviceCreateInfo {
	priority := float32(1.0)
	queueInfos := make([]vulkan.DeviceQueueCreateInfo, 0, len(info.QueueFamilies))
	for _, family := range info.QueueFamilies {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}
	features := vulkan.PhysicalDeviceFeatures{SamplerAnisotropy: vkBool(info.SamplerAnisotropy)}
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{features},
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledExtensionCount:   uint32(len(info.Extensions)),
	}
	if validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = safeStrings(validationLayers)
	}
	return createInfo
}
