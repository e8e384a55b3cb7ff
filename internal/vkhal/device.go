package vkhal

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

type queueFamilies struct {
	graphics    uint32
	present     uint32
	hasGraphics bool
	hasPresent  bool
}

func (q queueFamilies) complete() bool {
	return q.hasGraphics && q.hasPresent
}

// Device is a logical device bound to one window surface.
type Device struct {
	cfg Config

	instance      vulkan.Instance
	debugCallback vulkan.DebugReportCallback
	surface       vulkan.Surface
	gpu           vulkan.PhysicalDevice
	device        vulkan.Device
	queues        queueFamilies
	graphicsQueue vulkan.Queue
	presentQueue  vulkan.Queue
	commandPool   vulkan.CommandPool

	memProps vulkan.PhysicalDeviceMemoryProperties
}

var _ hal.Device = (*Device)(nil)

// New loads Vulkan through the target's loader, creates the instance and
// surface, picks the best physical device and creates the logical device
// and its command pool. On failure everything created so far is destroyed.
func New(cfg Config, target SurfaceTarget) (*Device, error) {
	vulkan.SetGetInstanceProcAddr(target.InstanceProcAddr())
	if err := vulkan.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan init")
	}

	d := &Device{cfg: cfg}
	steps := []func() error{
		func() error { return d.createInstance(target) },
		d.setupDebugCallback,
		func() error {
			surface, err := target.CreateSurface(d.instance)
			if err != nil {
				return errors.Wrap(err, "create window surface")
			}
			d.surface = surface
			return nil
		},
		d.pickPhysicalDevice,
		d.createLogicalDevice,
		d.createCommandPool,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			d.Destroy()
			return nil, err
		}
	}
	return d, nil
}

func (d *Device) pickPhysicalDevice() error {
	var count uint32
	if err := check(vulkan.EnumeratePhysicalDevices(d.instance, &count, nil), "enumerate physical devices"); err != nil {
		return err
	}
	if count == 0 {
		return ErrNoSuitableDevice
	}
	gpus := make([]vulkan.PhysicalDevice, count)
	if err := check(vulkan.EnumeratePhysicalDevices(d.instance, &count, gpus), "enumerate physical devices"); err != nil {
		return err
	}

	var (
		selected vulkan.PhysicalDevice
		queues   queueFamilies
		found    bool
		best     = int32(-1)
	)
	for _, gpu := range gpus {
		q := d.findQueueFamilies(gpu)
		if !q.complete() || !deviceExtensionsSupported(gpu) {
			continue
		}
		support, err := d.querySurfaceSupport(gpu)
		if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			continue
		}
		props := physicalDeviceProperties(gpu)
		score := deviceScore(props.DeviceType)
		if score > best {
			best = score
			selected = gpu
			queues = q
			found = true
		}
	}
	if !found {
		return ErrNoSuitableDevice
	}

	d.gpu = selected
	d.queues = queues
	vulkan.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memProps)
	d.memProps.Deref()

	props := physicalDeviceProperties(d.gpu)
	Logger().Info("physical device selected",
		"name", vulkan.ToString(props.DeviceName[:]),
		"score", best,
		"graphicsQueue", queues.graphics,
		"presentQueue", queues.present,
	)
	return nil
}

func physicalDeviceProperties(gpu vulkan.PhysicalDevice) vulkan.PhysicalDeviceProperties {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	return props
}

// deviceScore prefers discrete GPUs over integrated ones over the rest.
func deviceScore(t vulkan.PhysicalDeviceType) int32 {
	switch t {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceExtensionsSupported(gpu vulkan.PhysicalDevice) bool {
	var count uint32
	if vulkan.EnumerateDeviceExtensionProperties(gpu, "", &count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if vulkan.EnumerateDeviceExtensionProperties(gpu, "", &count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool, len(props))
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[trimNul(ext)] {
			return false
		}
	}
	return true
}

func (d *Device) findQueueFamilies(gpu vulkan.PhysicalDevice) queueFamilies {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)

	var q queueFamilies
	for i := range props {
		props[i].Deref()
		if !q.hasGraphics && props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
			q.graphics = uint32(i)
			q.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), d.surface, &present)
		if !q.hasPresent && present == vulkan.True {
			q.present = uint32(i)
			q.hasPresent = true
		}
		if q.complete() {
			break
		}
	}
	return q
}

func (d *Device) createLogicalDevice() error {
	families := []uint32{d.queues.graphics}
	if d.queues.present != d.queues.graphics {
		families = append(families, d.queues.present)
	}
	queueInfos := make([]vulkan.DeviceQueueCreateInfo, 0, len(families))
	for _, family := range families {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}
	if d.cfg.EnableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var device vulkan.Device
	if err := check(vulkan.CreateDevice(d.gpu, &createInfo, nil, &device), "create logical device"); err != nil {
		return err
	}
	d.device = device
	vulkan.GetDeviceQueue(d.device, d.queues.graphics, 0, &d.graphicsQueue)
	vulkan.GetDeviceQueue(d.device, d.queues.present, 0, &d.presentQueue)
	return nil
}

func (d *Device) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queues.graphics,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vulkan.CommandPool
	if err := check(vulkan.CreateCommandPool(d.device, &poolInfo, nil, &pool), "create command pool"); err != nil {
		return err
	}
	d.commandPool = pool
	return nil
}

func (d *Device) querySurfaceSupport(gpu vulkan.PhysicalDevice) (hal.SurfaceSupport, error) {
	var caps vulkan.SurfaceCapabilities
	if err := check(vulkan.GetPhysicalDeviceSurfaceCapabilities(gpu, d.surface, &caps), "query surface capabilities"); err != nil {
		return hal.SurfaceSupport{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vulkan.GetPhysicalDeviceSurfaceFormats(gpu, d.surface, &formatCount, nil), "query surface formats"); err != nil {
		return hal.SurfaceSupport{}, err
	}
	formats := make([]vulkan.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if err := check(vulkan.GetPhysicalDeviceSurfaceFormats(gpu, d.surface, &formatCount, formats), "query surface formats"); err != nil {
			return hal.SurfaceSupport{}, err
		}
		for i := range formats {
			formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vulkan.GetPhysicalDeviceSurfacePresentModes(gpu, d.surface, &modeCount, nil), "query present modes"); err != nil {
		return hal.SurfaceSupport{}, err
	}
	modes := make([]vulkan.PresentMode, modeCount)
	if modeCount > 0 {
		if err := check(vulkan.GetPhysicalDeviceSurfacePresentModes(gpu, d.surface, &modeCount, modes), "query present modes"); err != nil {
			return hal.SurfaceSupport{}, err
		}
	}

	return hal.SurfaceSupport{
		Capabilities: fromCapabilities(caps),
		Formats:      fromSurfaceFormats(formats[:formatCount]),
		PresentModes: fromPresentModes(modes[:modeCount]),
	}, nil
}

// SurfaceSupport queries the surface again; the answer changes with the
// window size.
func (d *Device) SurfaceSupport() (hal.SurfaceSupport, error) {
	return d.querySurfaceSupport(d.gpu)
}

// DepthFormat returns the first of D32, D32S8 and D24S8 usable as an
// optimal-tiling depth attachment.
func (d *Device) DepthFormat() (hal.Format, error) {
	candidates := []vulkan.Format{
		vulkan.FormatD32Sfloat,
		vulkan.FormatD32SfloatS8Uint,
		vulkan.FormatD24UnormS8Uint,
	}
	f, err := d.findSupportedFormat(candidates, vulkan.ImageTilingOptimal,
		vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit))
	return hal.Format(f), err
}

func (d *Device) findSupportedFormat(candidates []vulkan.Format, tiling vulkan.ImageTiling, features vulkan.FormatFeatureFlags) (vulkan.Format, error) {
	for _, format := range candidates {
		var props vulkan.FormatProperties
		vulkan.GetPhysicalDeviceFormatProperties(d.gpu, format, &props)
		props.Deref()
		if tiling == vulkan.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		}
		if tiling == vulkan.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return vulkan.FormatUndefined, errors.New("no supported format found")
}

func (d *Device) findMemoryType(typeFilter uint32, properties vulkan.MemoryPropertyFlagBits) (uint32, error) {
	want := vulkan.MemoryPropertyFlags(properties)
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		memoryType := d.memProps.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&want == want {
			return i, nil
		}
	}
	return 0, errors.Errorf("no memory type for filter %#x with properties %#x", typeFilter, properties)
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	return check(vulkan.DeviceWaitIdle(d.device), "wait for device idle")
}

// Destroy releases the command pool, device, debug callback, surface and
// instance. Every resource created from the device must already be gone.
func (d *Device) Destroy() {
	if d.commandPool != vulkan.CommandPool(vulkan.NullHandle) {
		vulkan.DestroyCommandPool(d.device, d.commandPool, nil)
		d.commandPool = vulkan.CommandPool(vulkan.NullHandle)
	}
	if d.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DestroyDevice(d.device, nil)
		d.device = vulkan.Device(vulkan.NullHandle)
	}
	if d.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	if d.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(d.instance, d.surface, nil)
		d.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if d.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(d.instance, nil)
		d.instance = vulkan.Instance(vulkan.NullHandle)
	}
}
