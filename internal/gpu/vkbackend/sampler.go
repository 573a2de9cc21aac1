package vkbackend

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// CreateSampler creates a linear, repeating sampler without mipmaps. The
// handle is written through C memory; vulkan-go rejects a Go pointer here
// under cgocheck.
func (d *Device) CreateSampler(info gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	maxAnisotropy := float32(1.0)
	if info.Anisotropy {
		maxAnisotropy = info.MaxAnisotropy
	}
	samplerInfo := vulkan.SamplerCreateInfo{
		SType:                   vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:               vulkan.FilterLinear,
		MinFilter:               vulkan.FilterLinear,
		AddressModeU:            vulkan.SamplerAddressModeRepeat,
		AddressModeV:            vulkan.SamplerAddressModeRepeat,
		AddressModeW:            vulkan.SamplerAddressModeRepeat,
		AnisotropyEnable:        vkBool(info.Anisotropy),
		MaxAnisotropy:           maxAnisotropy,
		BorderColor:             vulkan.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vulkan.False,
		CompareEnable:           vulkan.False,
		CompareOp:               vulkan.CompareOpAlways,
		MipmapMode:              vulkan.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}
	var zero vulkan.Sampler
	out := (*vulkan.Sampler)(C.malloc(C.size_t(unsafe.Sizeof(zero))))
	if out == nil {
		return 0, errors.New("allocate sampler handle")
	}
	defer C.free(unsafe.Pointer(out))

	if res := vulkan.CreateSampler(d.dev, &samplerInfo, nil, out); res != vulkan.Success {
		return 0, resultError("create sampler", res)
	}
	return d.samplers.add(*out), nil
}
