// Package platform owns the glfw window: the surface source, framebuffer
// size queries and window events.
package platform

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"golang.org/x/exp/slog"
)

type WindowConfig struct {
	Width, Height int
	Title         string
}

// Window must be created and used on the main OS thread.
type Window struct {
	w      *glfw.Window
	events *queue
	log    *slog.Logger
}

// OpenWindow initializes glfw and opens a window without a client API, so
// Vulkan can render into it. Close terminates glfw again.
func OpenWindow(cfg WindowConfig, log *slog.Logger) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "init glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw found no Vulkan loader")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	gw, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}
	win := &Window{w: gw, events: newQueue(), log: log}

	gw.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
			win.events.post(CloseEvent{})
		}
	})
	gw.SetCloseCallback(func(*glfw.Window) {
		win.events.post(CloseEvent{})
	})
	gw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if !win.events.post(ResizeEvent{Width: width, Height: height}) {
			win.log.Debug("resize event dropped", slog.Int("width", width), slog.Int("height", height))
		}
	})

	// The surface needs a non-zero framebuffer before the first swapchain.
	for {
		w, h := gw.GetFramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		glfw.WaitEventsTimeout(0.01)
	}
	log.Debug("window open", slog.Int("width", cfg.Width), slog.Int("height", cfg.Height))
	return win, nil
}

func (w *Window) FramebufferSize() (width, height int) { return w.w.GetFramebufferSize() }

func (w *Window) WaitEvents() { glfw.WaitEvents() }

// Poll processes pending window system events and returns the ones the loop
// cares about.
func (w *Window) Poll() []Event {
	glfw.PollEvents()
	return w.events.drain()
}

func (w *Window) ShouldClose() bool { return w.w.ShouldClose() }

// RequiredInstanceExtensions lists the instance extensions presentation to
// this window needs.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.w.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates a VkSurfaceKHR for instance and returns its raw
// handle.
func (w *Window) CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error) {
	return w.w.CreateWindowSurface(instance, allocator)
}

// InstanceProcAddr is the loader entry point glfw resolved.
func InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) Close() {
	if w == nil || w.w == nil {
		return
	}
	w.w.Destroy()
	w.w = nil
	glfw.Terminate()
}
