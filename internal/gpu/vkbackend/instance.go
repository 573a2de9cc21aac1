// Package vkbackend implements the gpu interfaces on top of Vulkan through
// vulkan-go. Every native handle stays inside this package; callers only see
// the integer handles from package gpu.
package vkbackend

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

const debugReportExtension = "VK_EXT_debug_report"

// Window is the part of the platform window the instance needs: the
// extensions it requires and a way to create a surface for it.
type Window interface {
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
}

type Config struct {
	AppName string
	// ProcAddr is vkGetInstanceProcAddr as exposed by the window system.
	ProcAddr   unsafe.Pointer
	Validation bool
}

// Instance owns the Vulkan instance, the optional debug report callback and
// the window surface.
type Instance struct {
	log      *slog.Logger
	cfg      Config
	instance vulkan.Instance
	debug    vulkan.DebugReportCallback
	surface  vulkan.Surface
}

var _ gpu.Instance = (*Instance)(nil)

// NewInstance loads the Vulkan loader, creates an instance with the window's
// extensions and creates the window surface.
func NewInstance(cfg Config, win Window, log *slog.Logger) (*Instance, error) {
	vulkan.SetGetInstanceProcAddr(cfg.ProcAddr)
	if err := vulkan.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan init")
	}
	in := &Instance{log: log, cfg: cfg}
	if err := in.init(win); err != nil {
		in.Destroy()
		return nil, err
	}
	return in, nil
}

func (in *Instance) init(win Window) error {
	if in.cfg.Validation && !validationLayersSupported() {
		return errors.New("requested validation layers not available")
	}
	in.logExtensions()

	extensions := win.RequiredInstanceExtensions()
	if in.cfg.Validation {
		extensions = append(extensions, debugReportExtension)
	}
	createInfo := instanceCreateInfo(in.cfg.AppName, extensions, in.cfg.Validation)
	var instance vulkan.Instance
	if res := vulkan.CreateInstance(&createInfo, nil, &instance); res != vulkan.Success {
		return resultError("create instance", res)
	}
	in.instance = instance
	if err := vulkan.InitInstance(instance); err != nil {
		return errors.Wrap(err, "init instance")
	}

	if in.cfg.Validation {
		if err := in.setupDebugCallback(); err != nil {
			return err
		}
	}

	ptr, err := win.CreateWindowSurface(instance, nil)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	in.surface = vulkan.SurfaceFromPointer(ptr)
	return nil
}

// instanceCreateInfo fills the create info with NUL-terminated copies of
// every name.
func instanceCreateInfo(appName string, extensions []string, validation bool) vulkan.InstanceCreateInfo {
	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vulkan.MakeVersion(0, 1, 0),
		PEngineName:        safeString("No Engine"),
		EngineVersion:      vulkan.MakeVersion(0, 1, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}
	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = safeStrings(validationLayers)
	}
	return createInfo
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool, len(props))
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

func (in *Instance) logExtensions() {
	var count uint32
	if vulkan.EnumerateInstanceExtensionProperties("", &count, nil) != vulkan.Success {
		return
	}
	props := make([]vulkan.ExtensionProperties, count)
	if vulkan.EnumerateInstanceExtensionProperties("", &count, props) != vulkan.Success {
		return
	}
	names := make([]string, 0, len(props))
	for i := range props {
		props[i].Deref()
		names = append(names, vulkan.ToString(props[i].ExtensionName[:]))
	}
	in.log.Debug("instance extensions", slog.Any("available", names))
}

func (in *Instance) setupDebugCallback() error {
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			level := slog.LevelWarn
			if flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0 {
				level = slog.LevelError
			}
			in.log.Log(context.Background(), level, message,
				slog.String("layer", layerPrefix),
				slog.Int("code", int(messageCode)))
			return vulkan.False
		},
	}
	var cb vulkan.DebugReportCallback
	if res := vulkan.CreateDebugReportCallback(in.instance, &createInfo, nil, &cb); res != vulkan.Success {
		return resultError("create debug callback", res)
	}
	in.debug = cb
	return nil
}

// Adapters enumerates the physical devices and snapshots what selection
// needs from each.
func (in *Instance) Adapters() ([]gpu.Adapter, error) {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(in.instance, &count, nil); res != vulkan.Success {
		return nil, resultError("enumerate physical devices", res)
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(in.instance, &count, devices); res != vulkan.Success {
		return nil, resultError("enumerate physical devices", res)
	}
	out := make([]gpu.Adapter, 0, len(devices))
	for _, pd := range devices {
		out = append(out, newAdapter(in, pd))
	}
	return out, nil
}

// Destroy releases the surface, the debug callback and the instance. Devices
// opened from it must already be destroyed.
func (in *Instance) Destroy() {
	if in.instance == vulkan.Instance(vulkan.NullHandle) {
		return
	}
	if in.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(in.instance, in.surface, nil)
		in.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if in.debug != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(in.instance, in.debug, nil)
		in.debug = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	vulkan.DestroyInstance(in.instance, nil)
	in.instance = vulkan.Instance(vulkan.NullHandle)
}
