// Package vkhal implements hal.Device on top of vulkan-go. It owns the
// instance, the window surface, one logical device with its graphics and
// present queues, and the command pool all command buffers come from.
package vkhal

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation\x00"}
	deviceExtensions = []string{"VK_KHR_swapchain\x00"}
)

type Config struct {
	AppName string
	// EnableValidation turns on the Khronos validation layer and routes its
	// messages to Logger().
	EnableValidation bool
}

// SurfaceTarget is the window side of device setup.
type SurfaceTarget interface {
	// InstanceProcAddr is the loader entry point handed to the bindings.
	InstanceProcAddr() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateSurface(instance vulkan.Instance) (vulkan.Surface, error)
}

func (d *Device) createInstance(target SurfaceTarget) error {
	if d.cfg.EnableValidation && !validationLayersSupported() {
		return errValidationUnavailable
	}

	name := d.cfg.AppName
	if name == "" {
		name = "Trigon"
	}
	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(name),
		ApplicationVersion: vulkan.MakeVersion(0, 1, 0),
		PEngineName:        "Trigon\x00",
		EngineVersion:      vulkan.MakeVersion(0, 1, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := safeStrings(target.RequiredInstanceExtensions())
	if d.cfg.EnableValidation {
		extensions = append(extensions, "VK_EXT_debug_report\x00")
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if d.cfg.EnableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var instance vulkan.Instance
	if err := check(vulkan.CreateInstance(&createInfo, nil, &instance), "create instance"); err != nil {
		return err
	}
	d.instance = instance
	if err := vulkan.InitInstance(instance); err != nil {
		return errors.Wrap(err, "init instance")
	}
	return nil
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
		if !supported[trimNul(l)] {
			return false
		}
	}
	return true
}

func (d *Device) setupDebugCallback() error {
	if !d.cfg.EnableValidation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var cb vulkan.DebugReportCallback
	if err := check(vulkan.CreateDebugReportCallback(d.instance, &createInfo, nil, &cb), "create debug callback"); err != nil {
		return err
	}
	d.debugCallback = cb
	return nil
}

func debugReport(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
	log := Logger().With("layer", layerPrefix, "code", messageCode)
	switch {
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0:
		log.Error(message)
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportWarningBit|vulkan.DebugReportPerformanceWarningBit) != 0:
		log.Warn(message)
	default:
		log.Debug(message)
	}
	return vulkan.False
}

// safeString NUL-terminates s for the C side.
func safeString(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

func trimNul(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s[:len(s)-1]
	}
	return s
}
