package vkhal

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

// unwrap converts a hal resource back to the concrete type this package
// created.
func unwrap[T any](r hal.Resource, what string) (T, error) {
	v, ok := r.(T)
	if !ok {
		var zero T
		return zero, errors.Errorf("%s: foreign resource %T", what, r)
	}
	return v, nil
}

type swapchain struct {
	device vulkan.Device
	handle vulkan.Swapchain
}

func (s *swapchain) Destroy() {
	vulkan.DestroySwapchain(s.device, s.handle, nil)
}

// CreateSwapchain builds a swapchain on the device's surface. When graphics
// and present queues differ the images are shared concurrently.
func (d *Device) CreateSwapchain(desc *hal.SwapchainDescriptor) (hal.Swapchain, error) {
	var caps vulkan.SurfaceCapabilities
	if err := check(vulkan.GetPhysicalDeviceSurfaceCapabilities(d.gpu, d.surface, &caps), "query surface capabilities"); err != nil {
		return nil, err
	}
	caps.Deref()

	old := vulkan.Swapchain(vulkan.NullHandle)
	if desc.Old != nil {
		prev, err := unwrap[*swapchain](desc.Old, "create swapchain")
		if err != nil {
			return nil, err
		}
		old = prev.handle
	}

	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      vulkan.Format(desc.Format.Format),
		ImageColorSpace:  vulkan.ColorSpace(desc.Format.ColorSpace),
		ImageExtent:      toExtent(desc.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      vulkan.PresentMode(desc.PresentMode),
		Clipped:          vulkan.True,
		OldSwapchain:     old,
	}
	if d.queues.graphics != d.queues.present {
		indices := []uint32{d.queues.graphics, d.queues.present}
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(indices))
		createInfo.PQueueFamilyIndices = indices
	} else {
		createInfo.ImageSharingMode = vulkan.SharingModeExclusive
	}

	var handle vulkan.Swapchain
	if err := check(vulkan.CreateSwapchain(d.device, &createInfo, nil, &handle), "create swapchain"); err != nil {
		return nil, err
	}
	return &swapchain{device: d.device, handle: handle}, nil
}

type image struct {
	device vulkan.Device
	handle vulkan.Image
	memory vulkan.DeviceMemory
	// owned is false for swapchain images, which die with their swapchain.
	owned bool
}

func (i *image) Destroy() {
	if !i.owned {
		return
	}
	vulkan.DestroyImage(i.device, i.handle, nil)
	vulkan.FreeMemory(i.device, i.memory, nil)
}

func (d *Device) SwapchainImages(sc hal.Swapchain) ([]hal.Image, error) {
	s, err := unwrap[*swapchain](sc, "get swapchain images")
	if err != nil {
		return nil, err
	}
	var count uint32
	if err := check(vulkan.GetSwapchainImages(d.device, s.handle, &count, nil), "get swapchain images"); err != nil {
		return nil, err
	}
	handles := make([]vulkan.Image, count)
	if err := check(vulkan.GetSwapchainImages(d.device, s.handle, &count, handles), "get swapchain images"); err != nil {
		return nil, err
	}
	images := make([]hal.Image, count)
	for i, h := range handles[:count] {
		images[i] = &image{device: d.device, handle: h}
	}
	return images, nil
}

// CreateImage creates an optimal-tiling 2D image with its own device-local
// memory.
func (d *Device) CreateImage(desc *hal.ImageDescriptor) (hal.Image, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vulkan.Format(desc.Format),
		Tiling:        vulkan.ImageTilingOptimal,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         vulkan.ImageUsageFlags(desc.Usage),
		Samples:       toSamples(desc.Samples),
		SharingMode:   vulkan.SharingModeExclusive,
	}

	var handle vulkan.Image
	if err := check(vulkan.CreateImage(d.device, &createInfo, nil, &handle), "create image"); err != nil {
		return nil, err
	}

	var req vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(d.device, handle, &req)
	req.Deref()

	memory, err := d.allocate(req, vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vulkan.DestroyImage(d.device, handle, nil)
		return nil, errors.Wrap(err, "allocate image memory")
	}
	if err := check(vulkan.BindImageMemory(d.device, handle, memory, 0), "bind image memory"); err != nil {
		vulkan.DestroyImage(d.device, handle, nil)
		vulkan.FreeMemory(d.device, memory, nil)
		return nil, err
	}
	return &image{device: d.device, handle: handle, memory: memory, owned: true}, nil
}

func (d *Device) allocate(req vulkan.MemoryRequirements, properties vulkan.MemoryPropertyFlagBits) (vulkan.DeviceMemory, error) {
	typeIndex, err := d.findMemoryType(req.MemoryTypeBits, properties)
	if err != nil {
		return vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vulkan.DeviceMemory
	if err := check(vulkan.AllocateMemory(d.device, &allocInfo, nil, &memory), "allocate memory"); err != nil {
		return vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	return memory, nil
}

type imageView struct {
	device vulkan.Device
	handle vulkan.ImageView
}

func (v *imageView) Destroy() {
	vulkan.DestroyImageView(v.device, v.handle, nil)
}

func (d *Device) CreateImageView(img hal.Image, desc *hal.ImageViewDescriptor) (hal.ImageView, error) {
	im, err := unwrap[*image](img, "create image view")
	if err != nil {
		return nil, err
	}
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    im.handle,
		ViewType: vulkan.ImageViewType2d,
		Format:   vulkan.Format(desc.Format),
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     toAspect(desc.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var handle vulkan.ImageView
	if err := check(vulkan.CreateImageView(d.device, &viewInfo, nil, &handle), "create image view"); err != nil {
		return nil, err
	}
	return &imageView{device: d.device, handle: handle}, nil
}

type renderPass struct {
	device vulkan.Device
	handle vulkan.RenderPass
}

func (r *renderPass) Destroy() {
	vulkan.DestroyRenderPass(r.device, r.handle, nil)
}

// CreateRenderPass builds a single-subpass pass with a cleared color
// attachment presented at the end and a cleared depth attachment.
func (d *Device) CreateRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	samples := toSamples(desc.Samples)
	colorAttachment := vulkan.AttachmentDescription{
		Format:         vulkan.Format(desc.ColorFormat),
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	depthAttachment := vulkan.AttachmentDescription{
		Format:         vulkan.Format(desc.DepthFormat),
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpDontCare,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorRef := vulkan.AttachmentReference{
		Attachment: 0,
		Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
	}
	depthRef := vulkan.AttachmentReference{
		Attachment: 1,
		Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:       vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vulkan.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}

	stages := vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit)
	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		SrcAccessMask: 0,
		DstStageMask:  stages,
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit | vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	attachments := []vulkan.AttachmentDescription{colorAttachment, depthAttachment}
	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}

	var handle vulkan.RenderPass
	if err := check(vulkan.CreateRenderPass(d.device, &createInfo, nil, &handle), "create render pass"); err != nil {
		return nil, err
	}
	return &renderPass{device: d.device, handle: handle}, nil
}

type framebuffer struct {
	device vulkan.Device
	handle vulkan.Framebuffer
}

func (f *framebuffer) Destroy() {
	vulkan.DestroyFramebuffer(f.device, f.handle, nil)
}

func (d *Device) CreateFramebuffer(desc *hal.FramebufferDescriptor) (hal.Framebuffer, error) {
	rp, err := unwrap[*renderPass](desc.RenderPass, "create framebuffer")
	if err != nil {
		return nil, err
	}
	attachments := make([]vulkan.ImageView, len(desc.Attachments))
	for i, a := range desc.Attachments {
		v, err := unwrap[*imageView](a, "create framebuffer")
		if err != nil {
			return nil, err
		}
		attachments[i] = v.handle
	}
	createInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}
	var handle vulkan.Framebuffer
	if err := check(vulkan.CreateFramebuffer(d.device, &createInfo, nil, &handle), "create framebuffer"); err != nil {
		return nil, err
	}
	return &framebuffer{device: d.device, handle: handle}, nil
}

type pipelineLayout struct {
	device vulkan.Device
	handle vulkan.PipelineLayout
}

func (p *pipelineLayout) Destroy() {
	vulkan.DestroyPipelineLayout(p.device, p.handle, nil)
}

func (d *Device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	ranges := make([]vulkan.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vulkan.PushConstantRange{
			StageFlags: toShaderStages(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	createInfo := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var handle vulkan.PipelineLayout
	if err := check(vulkan.CreatePipelineLayout(d.device, &createInfo, nil, &handle), "create pipeline layout"); err != nil {
		return nil, err
	}
	return &pipelineLayout{device: d.device, handle: handle}, nil
}
