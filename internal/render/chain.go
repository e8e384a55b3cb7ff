package render

import (
	"fmt"

	"Trigon/internal/hal"
)

// sharedRenderPass lets a replacement chain keep using its predecessor's
// render pass. The pass is destroyed when the last chain drops it.
type sharedRenderPass struct {
	pass hal.RenderPass
	desc hal.RenderPassDescriptor
	refs int
}

func (p *sharedRenderPass) retain() *sharedRenderPass {
	p.refs++
	return p
}

func (p *sharedRenderPass) release() {
	p.refs--
	if p.refs == 0 {
		p.pass.Destroy()
	}
}

// Chain is the presentation chain: the swapchain images and every resource
// that depends on them, plus the frame slots used to pace submissions.
//
// All per-image slices have the same length and are indexed by the image
// index returned from AcquireNextImage. A Chain is driven by a single
// goroutine and is not safe for concurrent use.
type Chain struct {
	device hal.Device

	extent        hal.Extent
	surfaceFormat hal.SurfaceFormat
	presentMode   hal.PresentMode
	depthFormat   hal.Format

	swapchain        hal.Swapchain
	images           []hal.Image
	views            []hal.ImageView
	depthImages      []hal.Image
	depthViews       []hal.ImageView
	renderPass       *sharedRenderPass
	reusedRenderPass bool
	framebuffers     []hal.Framebuffer

	frames       []frameSlot
	currentFrame int
	// imagesInFlight holds, per image, the fence of the frame slot that last
	// submitted work for it. nil until the image is first used.
	imagesInFlight []hal.Fence

	rel  releaseStack
	refs int
}

// NewChain builds a presentation chain for the requested extent.
func NewChain(device hal.Device, extent hal.Extent) (*Chain, error) {
	return newChain(device, extent, nil)
}

// NewChainFrom builds a replacement for previous. The previous swapchain is
// handed to the platform for recycling and its render pass is reused when
// compatible. previous is kept alive until construction finishes; the
// caller still owns its own reference and releases it afterwards.
func NewChainFrom(device hal.Device, extent hal.Extent, previous *Chain) (*Chain, error) {
	if previous == nil {
		return newChain(device, extent, nil)
	}
	previous.retain()
	defer previous.Release()
	return newChain(device, extent, previous)
}

func newChain(device hal.Device, extent hal.Extent, previous *Chain) (_ *Chain, err error) {
	if extent.Empty() {
		return nil, fmt.Errorf("create presentation chain: empty extent %dx%d", extent.Width, extent.Height)
	}

	c := &Chain{device: device, refs: 1}
	defer func() {
		if err != nil {
			c.rel.releaseAll()
		}
	}()

	if err = c.createSwapchain(extent, previous); err != nil {
		return nil, err
	}
	if err = c.createImageViews(); err != nil {
		return nil, err
	}
	if err = c.createRenderPass(previous); err != nil {
		return nil, err
	}
	if err = c.createDepthResources(); err != nil {
		return nil, err
	}
	if err = c.createFramebuffers(); err != nil {
		return nil, err
	}
	if err = c.createSyncObjects(); err != nil {
		return nil, err
	}

	Logger().Debug("presentation chain created",
		"width", c.extent.Width,
		"height", c.extent.Height,
		"images", len(c.images),
		"frameSlots", len(c.frames),
		"presentMode", c.presentMode.String(),
		"reusedRenderPass", c.reusedRenderPass,
	)
	return c, nil
}

func (c *Chain) createSwapchain(requested hal.Extent, previous *Chain) error {
	support, err := c.device.SurfaceSupport()
	if err != nil {
		return fmt.Errorf("query surface support: %w", err)
	}
	surfaceFormat, err := chooseSurfaceFormat(support.Formats)
	if err != nil {
		return fmt.Errorf("choose surface format: %w", err)
	}
	presentMode, err := choosePresentMode(support.PresentModes)
	if err != nil {
		return fmt.Errorf("choose present mode: %w", err)
	}
	extent := chooseExtent(support.Capabilities, requested)
	if extent.Empty() {
		return fmt.Errorf("create swapchain: surface extent %dx%d is empty", extent.Width, extent.Height)
	}

	desc := hal.SwapchainDescriptor{
		Format:      surfaceFormat,
		PresentMode: presentMode,
		Extent:      extent,
		ImageCount:  chooseImageCount(support.Capabilities),
	}
	if previous != nil {
		desc.Old = previous.swapchain
	}

	swapchain, err := c.device.CreateSwapchain(&desc)
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}
	c.rel.track(swapchain)

	images, err := c.device.SwapchainImages(swapchain)
	if err != nil {
		return fmt.Errorf("get swapchain images: %w", err)
	}
	if len(images) == 0 {
		return fmt.Errorf("get swapchain images: swapchain has no images")
	}

	c.swapchain = swapchain
	c.images = images
	c.surfaceFormat = surfaceFormat
	c.presentMode = presentMode
	c.extent = extent
	return nil
}

func (c *Chain) createImageViews() error {
	c.views = make([]hal.ImageView, len(c.images))
	for i, img := range c.images {
		view, err := c.device.CreateImageView(img, &hal.ImageViewDescriptor{
			Format: c.surfaceFormat.Format,
			Aspect: hal.AspectColor,
		})
		if err != nil {
			return fmt.Errorf("create image view %d: %w", i, err)
		}
		c.rel.track(view)
		c.views[i] = view
	}
	return nil
}

func (c *Chain) createRenderPass(previous *Chain) error {
	depthFormat, err := c.device.DepthFormat()
	if err != nil {
		return fmt.Errorf("find depth format: %w", err)
	}
	c.depthFormat = depthFormat

	desc := hal.RenderPassDescriptor{
		ColorFormat: c.surfaceFormat.Format,
		DepthFormat: depthFormat,
		Samples:     hal.SampleCount1,
	}
	if previous != nil && previous.renderPass.desc.Compatible(desc) {
		c.renderPass = previous.renderPass.retain()
		c.reusedRenderPass = true
		c.rel.push(c.renderPass.release)
		return nil
	}

	pass, err := c.device.CreateRenderPass(&desc)
	if err != nil {
		return fmt.Errorf("create render pass: %w", err)
	}
	c.renderPass = &sharedRenderPass{pass: pass, desc: desc, refs: 1}
	c.rel.push(c.renderPass.release)
	return nil
}

func (c *Chain) createDepthResources() error {
	c.depthImages = make([]hal.Image, len(c.images))
	c.depthViews = make([]hal.ImageView, len(c.images))
	for i := range c.images {
		img, err := c.device.CreateImage(&hal.ImageDescriptor{
			Extent:  c.extent,
			Format:  c.depthFormat,
			Usage:   hal.ImageUsageDepthStencilAttachment,
			Samples: hal.SampleCount1,
		})
		if err != nil {
			return fmt.Errorf("create depth image %d: %w", i, err)
		}
		c.rel.track(img)
		c.depthImages[i] = img

		view, err := c.device.CreateImageView(img, &hal.ImageViewDescriptor{
			Format: c.depthFormat,
			Aspect: hal.AspectDepth,
		})
		if err != nil {
			return fmt.Errorf("create depth image view %d: %w", i, err)
		}
		c.rel.track(view)
		c.depthViews[i] = view
	}
	return nil
}

func (c *Chain) createFramebuffers() error {
	c.framebuffers = make([]hal.Framebuffer, len(c.images))
	for i := range c.images {
		fb, err := c.device.CreateFramebuffer(&hal.FramebufferDescriptor{
			RenderPass:  c.renderPass.pass,
			Attachments: []hal.ImageView{c.views[i], c.depthViews[i]},
			Extent:      c.extent,
		})
		if err != nil {
			return fmt.Errorf("create framebuffer %d: %w", i, err)
		}
		c.rel.track(fb)
		c.framebuffers[i] = fb
	}
	return nil
}

func (c *Chain) createSyncObjects() error {
	frames, err := createFrameSlots(c.device, frameSlotCount(len(c.images)), &c.rel)
	if err != nil {
		return err
	}
	c.frames = frames
	c.imagesInFlight = make([]hal.Fence, len(c.images))
	return nil
}

// AcquireNextImage blocks until the current frame slot is free and the
// platform hands out an image, then waits until any earlier work recorded
// for that image has completed. After a nil error the image's command
// buffer may be re-recorded.
//
// StatusOutOfDate means the chain must be replaced; the returned index is
// then meaningless.
func (c *Chain) AcquireNextImage() (uint32, hal.Status, error) {
	slot := &c.frames[c.currentFrame]
	if err := c.device.WaitFence(slot.inFlight, hal.NoTimeout); err != nil {
		return 0, hal.StatusFatal, fmt.Errorf("wait for frame slot %d: %w", c.currentFrame, err)
	}

	imageIndex, status, err := c.device.AcquireNextImage(c.swapchain, hal.NoTimeout, slot.imageAvailable)
	if err != nil {
		return 0, hal.StatusFatal, fmt.Errorf("acquire next image: %w", err)
	}
	if status == hal.StatusOutOfDate {
		return 0, status, nil
	}
	if int(imageIndex) >= len(c.images) {
		return 0, hal.StatusFatal, fmt.Errorf("acquire next image: index %d out of range [0,%d)", imageIndex, len(c.images))
	}

	if err := c.waitImageOwner(imageIndex); err != nil {
		return 0, hal.StatusFatal, err
	}
	return imageIndex, status, nil
}

// SubmitCommandBuffer submits cb, recorded for imageIndex, and queues the
// image for presentation once rendering finishes.
func (c *Chain) SubmitCommandBuffer(cb hal.CommandBuffer, imageIndex uint32) (hal.Status, error) {
	if int(imageIndex) >= len(c.images) {
		return hal.StatusFatal, fmt.Errorf("submit command buffer: index %d out of range [0,%d)", imageIndex, len(c.images))
	}
	if err := c.waitImageOwner(imageIndex); err != nil {
		return hal.StatusFatal, err
	}

	slot := &c.frames[c.currentFrame]
	// Already signaled when the image came from AcquireNextImage; the fence
	// must not be reset while a submission still references it.
	if err := c.device.WaitFence(slot.inFlight, hal.NoTimeout); err != nil {
		return hal.StatusFatal, fmt.Errorf("wait for frame slot %d: %w", c.currentFrame, err)
	}
	c.imagesInFlight[imageIndex] = slot.inFlight

	if err := c.device.ResetFence(slot.inFlight); err != nil {
		return hal.StatusFatal, fmt.Errorf("reset fence for frame slot %d: %w", c.currentFrame, err)
	}
	if err := c.device.Submit(cb, slot.imageAvailable, slot.renderFinished, slot.inFlight); err != nil {
		return hal.StatusFatal, fmt.Errorf("submit draw command buffer: %w", err)
	}

	c.currentFrame = (c.currentFrame + 1) % len(c.frames)

	status, err := c.device.Present(c.swapchain, imageIndex, slot.renderFinished)
	if err != nil {
		return hal.StatusFatal, fmt.Errorf("present image %d: %w", imageIndex, err)
	}
	return status, nil
}

func (c *Chain) waitImageOwner(imageIndex uint32) error {
	fence := c.imagesInFlight[imageIndex]
	if fence == nil {
		return nil
	}
	if err := c.device.WaitFence(fence, hal.NoTimeout); err != nil {
		return fmt.Errorf("wait for image %d: %w", imageIndex, err)
	}
	return nil
}

// FramesInFlight counts frame slots whose last submission has not completed.
func (c *Chain) FramesInFlight() (int, error) {
	n := 0
	for i := range c.frames {
		done, err := c.device.FenceSignaled(c.frames[i].inFlight)
		if err != nil {
			return 0, fmt.Errorf("query fence for frame slot %d: %w", i, err)
		}
		if !done {
			n++
		}
	}
	return n, nil
}

func (c *Chain) ImageCount() int { return len(c.images) }

func (c *Chain) FrameSlots() int { return len(c.frames) }

func (c *Chain) Extent() hal.Extent { return c.extent }

func (c *Chain) AspectRatio() float32 { return c.extent.AspectRatio() }

func (c *Chain) ColorFormat() hal.Format { return c.surfaceFormat.Format }

func (c *Chain) DepthFormat() hal.Format { return c.depthFormat }

func (c *Chain) PresentMode() hal.PresentMode { return c.presentMode }

func (c *Chain) RenderPass() hal.RenderPass { return c.renderPass.pass }

func (c *Chain) Framebuffer(i int) hal.Framebuffer { return c.framebuffers[i] }

func (c *Chain) ImageView(i int) hal.ImageView { return c.views[i] }

func (c *Chain) DepthView(i int) hal.ImageView { return c.depthViews[i] }

// ReusedRenderPass reports whether the render pass came from the previous
// chain.
func (c *Chain) ReusedRenderPass() bool { return c.reusedRenderPass }

// CompatibleWith reports whether pipelines built against other's render
// pass can be used with c.
func (c *Chain) CompatibleWith(other *Chain) bool {
	if other == nil {
		return false
	}
	return c.renderPass.desc.Compatible(other.renderPass.desc)
}

func (c *Chain) retain() {
	c.refs++
}

// Release drops a reference. The last release destroys every resource the
// chain created, in reverse order of creation. The caller must make sure the
// device is idle first.
func (c *Chain) Release() {
	if c.refs <= 0 {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.rel.releaseAll()
		Logger().Debug("presentation chain destroyed", "width", c.extent.Width, "height", c.extent.Height)
	}
}
