package swapchain

import (
	"github.com/cockroachdb/errors"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// Config is the negotiated shape of a swapchain.
type Config struct {
	Format      gpu.SurfaceFormat
	PresentMode gpu.PresentMode
	Extent      gpu.Extent2D
	ImageCount  uint32
}

// ChooseFormat prefers BGRA8 sRGB in the sRGB non-linear color space and
// otherwise takes the first format offered.
func ChooseFormat(available []gpu.SurfaceFormat) gpu.SurfaceFormat {
	for _, f := range available {
		if f.Format == gpu.FormatB8G8R8A8Srgb && f.ColorSpace == gpu.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(available) == 0 {
		return gpu.SurfaceFormat{}
	}
	return available[0]
}

// ChoosePresentMode prefers mailbox. FIFO is always available.
func ChoosePresentMode(available []gpu.PresentMode) gpu.PresentMode {
	for _, m := range available {
		if m == gpu.PresentModeMailbox {
			return m
		}
	}
	return gpu.PresentModeFifo
}

// ChooseExtent returns the surface's current extent when it is defined and
// otherwise the framebuffer size clamped to the surface limits.
func ChooseExtent(caps gpu.SurfaceCapabilities, fbWidth, fbHeight int) gpu.Extent2D {
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(fbWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(fbHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v int, lo, hi uint32) uint32 {
	if v < 0 {
		v = 0
	}
	u := uint64(v)
	if u < uint64(lo) {
		return lo
	}
	if u > uint64(hi) {
		return hi
	}
	return uint32(u)
}

// ImageCount asks for one image above the minimum, capped by the maximum
// unless the maximum is 0 (unbounded).
func ImageCount(caps gpu.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// DepthCandidates are tried in order for the depth attachment.
var DepthCandidates = []gpu.Format{
	gpu.FormatD32Sfloat,
	gpu.FormatD32SfloatS8Uint,
	gpu.FormatD24UnormS8Uint,
}

type formatQuerier interface {
	FormatProperties(f gpu.Format) gpu.FormatProperties
}

// FindSupportedFormat returns the first candidate whose tiling features
// include features.
func FindSupportedFormat(q formatQuerier, candidates []gpu.Format, tiling gpu.ImageTiling, features gpu.FormatFeatureFlags) (gpu.Format, error) {
	for _, f := range candidates {
		props := q.FormatProperties(f)
		have := props.OptimalTilingFeatures
		if tiling == gpu.ImageTilingLinear {
			have = props.LinearTilingFeatures
		}
		if have&features == features {
			return f, nil
		}
	}
	return gpu.FormatUndefined, errors.Newf("none of %v supports the requested features", candidates)
}

func FindDepthFormat(q formatQuerier) (gpu.Format, error) {
	f, err := FindSupportedFormat(q, DepthCandidates, gpu.ImageTilingOptimal, gpu.FormatFeatureDepthStencilAttachment)
	return f, errors.Wrap(err, "depth format")
}
