package vkbackend

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// cString reads s the way C does: from its data pointer up to the first NUL.
func cString(t *testing.T, s string) string {
	t.Helper()
	n := bytes.IndexByte([]byte(s), 0)
	if n < 0 {
		t.Fatalf("%q has no terminating NUL", s)
	}
	return string(unsafe.Slice(unsafe.StringData(s), n))
}

func TestSafeString(t *testing.T) {
	for _, s := range []string{"", "main", "VK_KHR_swapchain", "main\x00"} {
		got := safeString(s)
		if got[len(got)-1] != 0 {
			t.Errorf("safeString(%q) = %q, not terminated", s, got)
		}
		if bytes.Count([]byte(got), []byte{0}) != 1 {
			t.Errorf("safeString(%q) = %q, want one NUL", s, got)
		}
	}
	if got := cString(t, safeString("No Engine")); got != "No Engine" {
		t.Errorf("C sees %q", got)
	}
}

func TestSafeStrings(t *testing.T) {
	want := []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
	in := append([]string(nil), want...)
	out := safeStrings(in)
	if len(out) != len(in) {
		t.Fatalf("len = %d", len(out))
	}
	for i := range in {
		if in[i] != want[i] {
			t.Errorf("input %d changed to %q", i, in[i])
		}
		if got := cString(t, out[i]); got != want[i] {
			t.Errorf("C sees %q, want %q", got, want[i])
		}
	}
	if len(safeStrings(nil)) != 0 {
		t.Error("nil list grew")
	}
}

func TestInstanceCreateInfoTerminatesNames(t *testing.T) {
	exts := []string{"VK_KHR_surface", "VK_KHR_xlib_surface"}
	ci := instanceCreateInfo("vkmesh", append(exts, debugReportExtension), true)

	if got := cString(t, ci.PApplicationInfo.PApplicationName); got != "vkmesh" {
		t.Errorf("application name %q", got)
	}
	if got := cString(t, ci.PApplicationInfo.PEngineName); got != "No Engine" {
		t.Errorf("engine name %q", got)
	}
	if int(ci.EnabledExtensionCount) != len(ci.PpEnabledExtensionNames) || len(ci.PpEnabledExtensionNames) != 3 {
		t.Fatalf("extensions %d %v", ci.EnabledExtensionCount, ci.PpEnabledExtensionNames)
	}
	if got := cString(t, ci.PpEnabledExtensionNames[2]); got != debugReportExtension {
		t.Errorf("last extension %q", got)
	}
	for _, name := range ci.PpEnabledExtensionNames {
		cString(t, name)
	}
	if ci.EnabledLayerCount != 1 || cString(t, ci.PpEnabledLayerNames[0]) != validationLayers[0] {
		t.Errorf("layers %v", ci.PpEnabledLayerNames)
	}
	if validationLayers[0] != "VK_LAYER_KHRONOS_validation" {
		t.Errorf("layer table changed to %q", validationLayers[0])
	}

	ci = instanceCreateInfo("vkmesh", exts, false)
	if ci.EnabledLayerCount != 0 || ci.PpEnabledLayerNames != nil {
		t.Errorf("layers enabled without validation: %v", ci.PpEnabledLayerNames)
	}
}

func TestDeviceCreateInfoTerminatesNames(t *testing.T) {
	info := gpu.DeviceCreateInfo{
		QueueFamilies: []uint32{0, 2},
		Extensions:    []string{"VK_KHR_swapchain"},
	}
	ci := deviceCreateInfo(info, true)
	if ci.QueueCreateInfoCount != 2 || ci.PQueueCreateInfos[1].QueueFamilyIndex != 2 {
		t.Errorf("queues %+v", ci.PQueueCreateInfos)
	}
	if ci.EnabledExtensionCount != 1 || cString(t, ci.PpEnabledExtensionNames[0]) != "VK_KHR_swapchain" {
		t.Errorf("extensions %v", ci.PpEnabledExtensionNames)
	}
	if info.Extensions[0] != "VK_KHR_swapchain" {
		t.Errorf("caller's extension list changed to %q", info.Extensions[0])
	}
	if ci.EnabledLayerCount != 1 || cString(t, ci.PpEnabledLayerNames[0]) != "VK_LAYER_KHRONOS_validation" {
		t.Errorf("layers %v", ci.PpEnabledLayerNames)
	}
	if ci = deviceCreateInfo(info, false); ci.EnabledLayerCount != 0 {
		t.Errorf("layers enabled without validation")
	}
}

func TestHostBytes(t *testing.T) {
	backing := make([]uint64, 4)
	view := hostBytes(unsafe.Pointer(&backing[0]), 32)
	if len(view) != 32 || cap(view) != 32 {
		t.Fatalf("len %d cap %d", len(view), cap(view))
	}
	view[8] = 0xff
	if backing[1] == 0 {
		t.Error("view does not alias the mapping")
	}
}

func TestSpirvWords(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 1, 2, 3, 4}
	words := spirvWords(code)
	if len(words) != 2 {
		t.Fatalf("len = %d", len(words))
	}
	if got := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(code)); !bytes.Equal(got, code) {
		t.Errorf("words hold % x, want % x", got, code)
	}
}
