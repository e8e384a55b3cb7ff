package render

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Trigon/internal/hal"
)

var errInjected = errors.New("injected failure")

// simDevice is an in-memory hal.Device. It hands out swapchain images round
// robin unless acquireOrder picks the index. It tracks every live object and
// records misuse (double destroy, destroying something still referenced,
// re-recording a pending command buffer) as violations instead of failing
// immediately.
//
// In manual mode submissions stay pending until retire is called, so tests
// can observe how many frames are in flight and where the loop blocks.
type simDevice struct {
	mu sync.Mutex

	surfaceExtent hal.Extent
	minImages     uint32
	maxImages     uint32
	formats       []hal.SurfaceFormat
	presentModes  []hal.PresentMode
	depthFormat   hal.Format

	manual        bool
	acquireOrder  func(n uint32) uint32
	acquireScript []hal.Status
	presentScript []hal.Status
	fail          map[string]int

	nextID       int
	created      map[string]int
	live         map[string]int
	framebuffers []*simFramebuffer
	swapchains   []*simSwapchain
	lastOld      hal.Swapchain

	pending     []*simSubmission
	maxPending  int
	submits     int
	presents    int
	recordings  int
	allocations int
	liveCmd     int
	waitIdles   int
	fenceWaits  int
	violations  []string

	// blocked receives a value whenever WaitFence has to block.
	blocked chan struct{}
}

func newSimDevice() *simDevice {
	return &simDevice{
		surfaceExtent: hal.Extent{Width: 800, Height: 600},
		minImages:     2,
		maxImages:     3,
		formats: []hal.SurfaceFormat{
			{Format: hal.FormatB8G8R8A8Unorm, ColorSpace: hal.ColorSpaceSrgbNonlinear},
			{Format: hal.FormatB8G8R8A8Srgb, ColorSpace: hal.ColorSpaceSrgbNonlinear},
		},
		presentModes: []hal.PresentMode{hal.PresentModeFifo, hal.PresentModeMailbox},
		depthFormat:  hal.FormatD32Sfloat,
		fail:         make(map[string]int),
		created:      make(map[string]int),
		live:         make(map[string]int),
		blocked:      make(chan struct{}, 64),
	}
}

type simSubmission struct {
	cb    *simCommandBuffer
	fence *simFence
}

// failAfter lets n more objects of kind be created, then fails the next one.
func (d *simDevice) failAfter(kind string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[kind] = n
}

func (d *simDevice) setSurfaceExtent(e hal.Extent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surfaceExtent = e
}

func (d *simDevice) setImageCount(lo, hi uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.minImages, d.maxImages = lo, hi
}

func (d *simDevice) setDepthFormat(f hal.Format) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depthFormat = f
}

func (d *simDevice) scriptAcquire(statuses ...hal.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireScript = append(d.acquireScript, statuses...)
}

func (d *simDevice) scriptPresent(statuses ...hal.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentScript = append(d.presentScript, statuses...)
}

// retire completes the oldest pending submission.
func (d *simDevice) retire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return false
	}
	sub := d.pending[0]
	d.pending = d.pending[1:]
	d.completeLocked(sub)
	return true
}

func (d *simDevice) completeLocked(sub *simSubmission) {
	sub.cb.pending--
	sub.fence.signaled = true
	close(sub.fence.done)
}

func (d *simDevice) pendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *simDevice) recordingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recordings
}

func (d *simDevice) createdCount(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

func (d *simDevice) liveCount(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[kind]
}

// liveTotal counts every object not yet destroyed, command buffers included.
func (d *simDevice) liveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.liveCmd
	for _, c := range d.live {
		n += c
	}
	return n
}

func (d *simDevice) violationList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *simDevice) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *simDevice) newResourceLocked(kind string) (simResource, error) {
	if n, ok := d.fail[kind]; ok {
		if n == 0 {
			delete(d.fail, kind)
			return simResource{}, fmt.Errorf("create %s: %w", kind, errInjected)
		}
		d.fail[kind] = n - 1
	}
	d.nextID++
	d.created[kind]++
	d.live[kind]++
	return simResource{dev: d, kind: kind, id: d.nextID}, nil
}

type simResource struct {
	dev       *simDevice
	kind      string
	id        int
	destroyed bool
}

func (r *simResource) Destroy() {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()
	r.destroyLocked()
}

func (r *simResource) destroyLocked() {
	if r.destroyed {
		r.dev.violate("%s %d destroyed twice", r.kind, r.id)
		return
	}
	r.destroyed = true
	r.dev.live[r.kind]--
}

type simSwapchain struct {
	simResource
	extent hal.Extent
	images []hal.Image
	next   uint32
}

type simSwapchainImage struct {
	sc    *simSwapchain
	index int
}

func (*simSwapchainImage) Destroy() {}

type simImage struct {
	simResource
	extent hal.Extent
}

type simImageView struct {
	simResource
	image hal.Image
}

func (v *simImageView) Destroy() {
	d := v.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fb := range d.framebuffers {
		if fb.destroyed {
			continue
		}
		for _, a := range fb.attachments {
			if a == hal.ImageView(v) {
				d.violate("image view %d destroyed while framebuffer %d uses it", v.id, fb.id)
			}
		}
	}
	v.destroyLocked()
}

type simRenderPass struct {
	simResource
	desc hal.RenderPassDescriptor
}

func (p *simRenderPass) Destroy() {
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fb := range d.framebuffers {
		if !fb.destroyed && fb.pass == hal.RenderPass(p) {
			d.violate("render pass %d destroyed while framebuffer %d uses it", p.id, fb.id)
		}
	}
	p.destroyLocked()
}

type simFramebuffer struct {
	simResource
	pass        hal.RenderPass
	attachments []hal.ImageView
	extent      hal.Extent
}

type simFence struct {
	simResource
	signaled bool
	done     chan struct{}
}

func (f *simFence) Destroy() {
	d := f.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.pending {
		if sub.fence == f {
			d.violate("fence %d destroyed while a submission uses it", f.id)
		}
	}
	f.destroyLocked()
}

type simBuffer struct {
	simResource
	data []byte
}

func (b *simBuffer) Size() uint64 { return uint64(len(b.data)) }

func (b *simBuffer) Write(data []byte) error {
	if len(data) > len(b.data) {
		return fmt.Errorf("write %d bytes into %d byte buffer", len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

func (d *simDevice) SurfaceSupport() (hal.SurfaceSupport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return hal.SurfaceSupport{
		Capabilities: hal.SurfaceCapabilities{
			MinImageCount:  d.minImages,
			MaxImageCount:  d.maxImages,
			CurrentExtent:  d.surfaceExtent,
			MinImageExtent: hal.Extent{Width: 1, Height: 1},
			MaxImageExtent: hal.Extent{Width: 16384, Height: 16384},
		},
		Formats:      d.formats,
		PresentModes: d.presentModes,
	}, nil
}

func (d *simDevice) DepthFormat() (hal.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depthFormat, nil
}

func (d *simDevice) CreateSwapchain(desc *hal.SwapchainDescriptor) (hal.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Old != nil {
		if old, ok := desc.Old.(*simSwapchain); ok && old.destroyed {
			d.violate("swapchain created from destroyed swapchain %d", old.id)
		}
	}
	res, err := d.newResourceLocked("swapchain")
	if err != nil {
		return nil, err
	}
	d.lastOld = desc.Old
	sc := &simSwapchain{simResource: res, extent: desc.Extent}
	for i := 0; i < int(desc.ImageCount); i++ {
		sc.images = append(sc.images, &simSwapchainImage{sc: sc, index: i})
	}
	d.swapchains = append(d.swapchains, sc)
	return sc, nil
}

func (d *simDevice) SwapchainImages(sc hal.Swapchain) ([]hal.Image, error) {
	return append([]hal.Image(nil), sc.(*simSwapchain).images...), nil
}

func (d *simDevice) CreateImage(desc *hal.ImageDescriptor) (hal.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.newResourceLocked("image")
	if err != nil {
		return nil, err
	}
	return &simImage{simResource: res, extent: desc.Extent}, nil
}

func (d *simDevice) CreateImageView(img hal.Image, desc *hal.ImageViewDescriptor) (hal.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if si, ok := img.(*simImage); ok && si.destroyed {
		d.violate("view created for destroyed image %d", si.id)
	}
	res, err := d.newResourceLocked("imageView")
	if err != nil {
		return nil, err
	}
	return &simImageView{simResource: res, image: img}, nil
}

func (d *simDevice) CreateRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.newResourceLocked("renderPass")
	if err != nil {
		return nil, err
	}
	return &simRenderPass{simResource: res, desc: *desc}, nil
}

func (d *simDevice) CreateFramebuffer(desc *hal.FramebufferDescriptor) (hal.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rp, ok := desc.RenderPass.(*simRenderPass); ok && rp.destroyed {
		d.violate("framebuffer created for destroyed render pass %d", rp.id)
	}
	res, err := d.newResourceLocked("framebuffer")
	if err != nil {
		return nil, err
	}
	fb := &simFramebuffer{
		simResource: res,
		pass:        desc.RenderPass,
		attachments: append([]hal.ImageView(nil), desc.Attachments...),
		extent:      desc.Extent,
	}
	d.framebuffers = append(d.framebuffers, fb)
	return fb, nil
}

func (d *simDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.newResourceLocked("buffer")
	if err != nil {
		return nil, err
	}
	return &simBuffer{simResource: res, data: make([]byte, desc.Size)}, nil
}

func (d *simDevice) CreatePipelineLayout(*hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.newResourceLocked("pipelineLayout")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *simDevice) CreateSemaphore() (hal.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.newResourceLocked("semaphore")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *simDevice) CreateFence(signaled bool) (hal.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.newResourceLocked("fence")
	if err != nil {
		return nil, err
	}
	f := &simFence{simResource: res, signaled: signaled, done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f, nil
}

func (d *simDevice) WaitFence(f hal.Fence, timeout time.Duration) error {
	sf := f.(*simFence)

	d.mu.Lock()
	if sf.destroyed {
		d.violate("wait on destroyed fence %d", sf.id)
	}
	if sf.signaled {
		d.mu.Unlock()
		return nil
	}
	if !d.isPendingLocked(sf) {
		d.violate("wait on fence %d that no submission will signal", sf.id)
		d.mu.Unlock()
		return errors.New("fence would never signal")
	}
	d.fenceWaits++
	done := sf.done
	d.mu.Unlock()

	select {
	case d.blocked <- struct{}{}:
	default:
	}

	if timeout == hal.NoTimeout {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("fence wait timed out")
	}
}

func (d *simDevice) isPendingLocked(f *simFence) bool {
	for _, sub := range d.pending {
		if sub.fence == f {
			return true
		}
	}
	return false
}

func (d *simDevice) ResetFence(f hal.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sf := f.(*simFence)
	if d.isPendingLocked(sf) {
		d.violate("fence %d reset while a submission uses it", sf.id)
	}
	if sf.signaled {
		sf.signaled = false
		sf.done = make(chan struct{})
	}
	return nil
}

func (d *simDevice) FenceSignaled(f hal.Fence) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return f.(*simFence).signaled, nil
}

func (d *simDevice) AllocateCommandBuffers(count int) ([]hal.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.fail["commandBuffers"]; ok {
		if n == 0 {
			delete(d.fail, "commandBuffers")
			return nil, errInjected
		}
		d.fail["commandBuffers"] = n - 1
	}
	d.allocations++
	cbs := make([]hal.CommandBuffer, count)
	for i := range cbs {
		d.nextID++
		cbs[i] = &simCommandBuffer{dev: d, id: d.nextID}
	}
	d.liveCmd += count
	return cbs, nil
}

func (d *simDevice) FreeCommandBuffers(cbs []hal.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range cbs {
		c := cb.(*simCommandBuffer)
		if c.freed {
			d.violate("command buffer %d freed twice", c.id)
			continue
		}
		if c.pending > 0 {
			d.violate("command buffer %d freed while pending", c.id)
		}
		c.freed = true
		d.liveCmd--
	}
}

func (d *simDevice) AcquireNextImage(sc hal.Swapchain, _ time.Duration, signal hal.Semaphore) (uint32, hal.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := sc.(*simSwapchain)
	if s.destroyed {
		d.violate("acquire from destroyed swapchain %d", s.id)
	}

	status := hal.StatusOK
	if len(d.acquireScript) > 0 {
		status = d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
	} else if s.extent != d.surfaceExtent {
		status = hal.StatusOutOfDate
	}
	if status == hal.StatusOutOfDate {
		return 0, status, nil
	}

	if d.acquireOrder != nil {
		return d.acquireOrder(uint32(len(s.images))), status, nil
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, status, nil
}

func (d *simDevice) Submit(cb hal.CommandBuffer, wait, signal hal.Semaphore, fence hal.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := cb.(*simCommandBuffer)
	f := fence.(*simFence)
	if f.signaled {
		d.violate("submit with signaled fence %d", f.id)
	}
	if c.recording {
		d.violate("submit command buffer %d before End", c.id)
	}
	if c.pending > 0 {
		d.violate("command buffer %d submitted while pending", c.id)
	}

	sub := &simSubmission{cb: c, fence: f}
	c.pending++
	d.submits++
	d.pending = append(d.pending, sub)
	if len(d.pending) > d.maxPending {
		d.maxPending = len(d.pending)
	}
	if !d.manual {
		d.pending = d.pending[:len(d.pending)-1]
		d.completeLocked(sub)
	}
	return nil
}

func (d *simDevice) Present(sc hal.Swapchain, imageIndex uint32, wait hal.Semaphore) (hal.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := sc.(*simSwapchain)
	d.presents++
	if int(imageIndex) >= len(s.images) {
		return hal.StatusFatal, fmt.Errorf("present index %d out of range", imageIndex)
	}
	if len(d.presentScript) > 0 {
		status := d.presentScript[0]
		d.presentScript = d.presentScript[1:]
		return status, nil
	}
	if s.extent != d.surfaceExtent {
		return hal.StatusOutOfDate, nil
	}
	return hal.StatusOK, nil
}

func (d *simDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdles++
	for _, sub := range d.pending {
		d.completeLocked(sub)
	}
	d.pending = nil
	return nil
}

type simCommandBuffer struct {
	dev       *simDevice
	id        int
	freed     bool
	recording bool
	pending   int

	cmds        []string
	framebuffer hal.Framebuffer
	viewport    hal.Viewport
	scissor     hal.Rect
	pipeline    hal.Pipeline
	pushes      [][]byte
	draws       []uint32
}

func (c *simCommandBuffer) Reset() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.pending > 0 {
		c.dev.violate("command buffer %d reset while pending", c.id)
	}
	c.cmds = append(c.cmds[:0], "reset")
	c.pushes = nil
	c.draws = nil
	return nil
}

func (c *simCommandBuffer) Begin() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.pending > 0 {
		c.dev.violate("command buffer %d re-recorded while pending", c.id)
	}
	if c.freed {
		c.dev.violate("command buffer %d recorded after free", c.id)
	}
	c.recording = true
	c.dev.recordings++
	c.cmds = append(c.cmds, "begin")
	return nil
}

func (c *simCommandBuffer) End() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if !c.recording {
		return errors.New("end without begin")
	}
	c.recording = false
	c.cmds = append(c.cmds, "end")
	return nil
}

func (c *simCommandBuffer) BeginRenderPass(rp hal.RenderPass, fb hal.Framebuffer, area hal.Extent, clear hal.ClearValues) {
	c.framebuffer = fb
	c.cmds = append(c.cmds, "beginRenderPass")
}

func (c *simCommandBuffer) EndRenderPass() { c.cmds = append(c.cmds, "endRenderPass") }

func (c *simCommandBuffer) SetViewport(v hal.Viewport) {
	c.viewport = v
	c.cmds = append(c.cmds, "setViewport")
}

func (c *simCommandBuffer) SetScissor(r hal.Rect) {
	c.scissor = r
	c.cmds = append(c.cmds, "setScissor")
}

func (c *simCommandBuffer) BindPipeline(p hal.Pipeline) {
	c.pipeline = p
	c.cmds = append(c.cmds, "bindPipeline")
}

func (c *simCommandBuffer) PushConstants(_ hal.PipelineLayout, _ hal.ShaderStage, _ uint32, data []byte) {
	c.pushes = append(c.pushes, append([]byte(nil), data...))
	c.cmds = append(c.cmds, "pushConstants")
}

func (c *simCommandBuffer) BindVertexBuffers(...hal.Buffer) {
	c.cmds = append(c.cmds, "bindVertexBuffers")
}

func (c *simCommandBuffer) Draw(vertexCount, _, _, _ uint32) {
	c.draws = append(c.draws, vertexCount)
	c.cmds = append(c.cmds, "draw")
}

// fakeSurface is a window the test resizes, minimizes and closes.
type fakeSurface struct {
	mu      sync.Mutex
	dev     *simDevice
	extent  hal.Extent
	resized bool
	closing bool
	polls   int
	waits   int
	// onWait runs after each WaitEvents with the number of waits so far.
	onWait func(n int)
}

func newFakeSurface(dev *simDevice) *fakeSurface {
	return &fakeSurface{dev: dev, extent: dev.surfaceExtent}
}

// resize changes the window size the way a framebuffer-size callback would.
func (s *fakeSurface) resize(e hal.Extent) {
	s.mu.Lock()
	s.extent = e
	s.resized = true
	s.mu.Unlock()
	s.dev.setSurfaceExtent(e)
}

func (s *fakeSurface) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
}

func (s *fakeSurface) Extent() hal.Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

func (s *fakeSurface) WasResized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resized
}

func (s *fakeSurface) ResetResized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resized = false
}

func (s *fakeSurface) PollEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
}

func (s *fakeSurface) WaitEvents() {
	s.mu.Lock()
	s.waits++
	n, fn := s.waits, s.onWait
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

func (s *fakeSurface) ShouldClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

type fakePipeline struct {
	pass      hal.RenderPass
	destroyed bool
}

func (p *fakePipeline) Bind(cb hal.CommandBuffer) { cb.BindPipeline(p) }

func (p *fakePipeline) Destroy() { p.destroyed = true }

type fakePipelines struct {
	built []*fakePipeline
	err   error
}

func (f *fakePipelines) build(pass hal.RenderPass, _ hal.PipelineLayout) (Pipeline, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePipeline{pass: pass}
	f.built = append(f.built, p)
	return p, nil
}

func (f *fakePipelines) last() *fakePipeline {
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

type fakeRenderable struct {
	push     PushConstants
	vertices uint32
}

func (r *fakeRenderable) Bind(cb hal.CommandBuffer) { cb.BindVertexBuffers() }

func (r *fakeRenderable) Draw(cb hal.CommandBuffer) { cb.Draw(r.vertices, 1, 0, 0) }

func (r *fakeRenderable) PushConstants() PushConstants { return r.push }

type fakeScene struct {
	mu       sync.Mutex
	advances int
	objs     []Renderable
}

func (s *fakeScene) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advances++
}

func (s *fakeScene) Renderables() []Renderable { return s.objs }

type loopFixture struct {
	dev       *simDevice
	surface   *fakeSurface
	scene     *fakeScene
	pipelines *fakePipelines
	loop      *Loop
}

func newLoopFixture(t *testing.T, dev *simDevice) *loopFixture {
	t.Helper()
	f := &loopFixture{
		dev:       dev,
		surface:   newFakeSurface(dev),
		scene:     &fakeScene{objs: []Renderable{&fakeRenderable{vertices: 3}}},
		pipelines: &fakePipelines{},
	}
	loop, err := NewLoop(LoopConfig{
		Device:    dev,
		Surface:   f.surface,
		Scene:     f.scene,
		Pipelines: f.pipelines.build,
	})
	require.NoError(t, err)
	f.loop = loop
	return f
}
