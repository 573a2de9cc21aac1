package swapchain

import (
	"testing"

	"github.com/hellhand/vkmesh/internal/gpu"
)

func TestChooseExtentClamps(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
		MinImageExtent: gpu.Extent2D{Width: 64, Height: 32},
		MaxImageExtent: gpu.Extent2D{Width: 2048, Height: 1024},
	}
	sizes := []int{-5, 0, 1, 31, 32, 63, 64, 500, 1024, 1025, 2048, 2049, 1 << 20}
	for _, w := range sizes {
		for _, h := range sizes {
			got := ChooseExtent(caps, w, h)
			if got.Width < caps.MinImageExtent.Width || got.Width > caps.MaxImageExtent.Width {
				t.Errorf("(%d,%d): width %d outside [%d,%d]", w, h, got.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
			}
			if got.Height < caps.MinImageExtent.Height || got.Height > caps.MaxImageExtent.Height {
				t.Errorf("(%d,%d): height %d outside [%d,%d]", w, h, got.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
			}
			if w >= 64 && w <= 2048 && got.Width != uint32(w) {
				t.Errorf("in-range width %d became %d", w, got.Width)
			}
			if h >= 32 && h <= 1024 && got.Height != uint32(h) {
				t.Errorf("in-range height %d became %d", h, got.Height)
			}
		}
	}
}

func TestChooseExtentUsesCurrent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: 640, Height: 480},
		MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
	}
	if got := ChooseExtent(caps, 1920, 1080); got != caps.CurrentExtent {
		t.Errorf("got %+v, want current extent", got)
	}
}

func TestChooseFormat(t *testing.T) {
	preferred := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	for _, tc := range []struct {
		name string
		in   []gpu.SurfaceFormat
		want gpu.SurfaceFormat
	}{
		{"preferred later", []gpu.SurfaceFormat{
			{Format: gpu.FormatR8G8B8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			preferred,
		}, preferred},
		{"fallback first", []gpu.SurfaceFormat{
			{Format: gpu.FormatR8G8B8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
		}, gpu.SurfaceFormat{Format: gpu.FormatR8G8B8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}},
		{"format right, color space wrong", []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceExtendedSrgbLinear},
		}, gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}},
		{"only preferred", []gpu.SurfaceFormat{preferred}, preferred},
	} {
		if got := ChooseFormat(tc.in); got != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestChoosePresentMode(t *testing.T) {
	for _, tc := range []struct {
		in   []gpu.PresentMode
		want gpu.PresentMode
	}{
		{[]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}, gpu.PresentModeMailbox},
		{[]gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeFifo}, gpu.PresentModeFifo},
		{[]gpu.PresentMode{gpu.PresentModeImmediate}, gpu.PresentModeFifo},
		{nil, gpu.PresentModeFifo},
	} {
		if got := ChoosePresentMode(tc.in); got != tc.want {
			t.Errorf("%v: got %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestImageCount(t *testing.T) {
	for _, tc := range []struct {
		min, max, want uint32
	}{
		{2, 8, 3},
		{2, 0, 3},
		{3, 3, 3},
		{1, 2, 2},
	} {
		caps := gpu.SurfaceCapabilities{MinImageCount: tc.min, MaxImageCount: tc.max}
		if got := ImageCount(caps); got != tc.want {
			t.Errorf("min %d max %d: got %d, want %d", tc.min, tc.max, got, tc.want)
		}
	}
}

type formats map[gpu.Format]gpu.FormatProperties

func (f formats) FormatProperties(format gpu.Format) gpu.FormatProperties { return f[format] }

func TestFindDepthFormat(t *testing.T) {
	depth := gpu.FormatProperties{OptimalTilingFeatures: gpu.FormatFeatureDepthStencilAttachment}
	linearOnly := gpu.FormatProperties{LinearTilingFeatures: gpu.FormatFeatureDepthStencilAttachment}

	got, err := FindDepthFormat(formats{gpu.FormatD24UnormS8Uint: depth, gpu.FormatD32Sfloat: linearOnly})
	if err != nil {
		t.Fatal(err)
	}
	if got != gpu.FormatD24UnormS8Uint {
		t.Errorf("got %s", got)
	}
	if _, err := FindDepthFormat(formats{}); err == nil {
		t.Error("expected error with no depth support")
	}
}
