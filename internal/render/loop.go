package render

import (
	"errors"
	"fmt"
	"time"

	"Trigon/internal/hal"
)

// State is the frame loop's position in the acquire/record/submit cycle.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitting
	StateRecreating
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitting:
		return "submitting"
	case StateRecreating:
		return "recreating"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var (
	// ErrSurfaceClosed is returned when the surface asks to close while the
	// loop waits for it to become visible again.
	ErrSurfaceClosed = errors.New("surface closed")

	errLoopClosed = errors.New("frame loop closed")
)

type LoopConfig struct {
	Device  hal.Device
	Surface Surface
	Scene   Scene
	// Pipelines builds the pipeline on start and whenever Rebuild asks for it.
	Pipelines PipelineFactory
	// Rebuild defaults to RebuildWhenIncompatible.
	Rebuild RebuildPolicy
	// Clock defaults to time.Now; it only drives frame-rate reporting.
	Clock func() time.Time
}

// RecreateReport describes one pass through the recreation path.
type RecreateReport struct {
	Extent             hal.Extent
	ImageCount         int
	PreviousImageCount int
	// AllocatedCommandBuffers is set when the command buffers were
	// allocated or reallocated.
	AllocatedCommandBuffers bool
	RebuiltPipeline         bool
	ReusedRenderPass        bool
}

// Loop drives frames: acquire an image, record its command buffer, submit
// and present, rebuilding the presentation chain when it goes stale. It
// must run on one goroutine.
type Loop struct {
	device    hal.Device
	surface   Surface
	scene     Scene
	pipelines PipelineFactory
	rebuild   RebuildPolicy

	layout   hal.PipelineLayout
	chain    *Chain
	recorder *Recorder
	pipeline Pipeline

	state       State
	closed      bool
	recreations int
	stats       frameStats
}

// NewLoop creates the pipeline layout, the first presentation chain, its
// command buffers and the pipeline.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	switch {
	case cfg.Device == nil:
		return nil, errors.New("new frame loop: nil device")
	case cfg.Surface == nil:
		return nil, errors.New("new frame loop: nil surface")
	case cfg.Scene == nil:
		return nil, errors.New("new frame loop: nil scene")
	case cfg.Pipelines == nil:
		return nil, errors.New("new frame loop: nil pipeline factory")
	}
	rebuild := cfg.Rebuild
	if rebuild == nil {
		rebuild = RebuildWhenIncompatible
	}

	layout, err := cfg.Device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		PushConstants: []hal.PushConstantRange{{
			Stages: PushConstantStages,
			Offset: 0,
			Size:   PushConstantsSize,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	l := &Loop{
		device:    cfg.Device,
		surface:   cfg.Surface,
		scene:     cfg.Scene,
		pipelines: cfg.Pipelines,
		rebuild:   rebuild,
		layout:    layout,
		stats:     newFrameStats(cfg.Clock),
	}
	if _, err := l.Recreate(); err != nil {
		if cerr := l.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return l, nil
}

// Frame runs one iteration of the loop. A returned error is fatal.
func (l *Loop) Frame() error {
	if l.closed {
		return errLoopClosed
	}
	l.surface.PollEvents()

	l.state = StateAcquiring
	imageIndex, status, err := l.chain.AcquireNextImage()
	if err != nil {
		return err
	}
	if status == hal.StatusOutOfDate {
		_, err := l.Recreate()
		return err
	}

	l.state = StateRecording
	l.scene.Advance()
	if err := l.recorder.RecordFrame(l.chain, imageIndex, l.pipeline, l.layout, l.scene.Renderables()); err != nil {
		return err
	}

	l.state = StateSubmitting
	status, err = l.chain.SubmitCommandBuffer(l.recorder.Buffer(imageIndex), imageIndex)
	if err != nil {
		return err
	}
	if fps, ok := l.stats.tick(); ok {
		Logger().Info("frame rate", "fps", fps, "frames", l.stats.frames)
	}

	if status == hal.StatusOutOfDate || status == hal.StatusSuboptimal || l.surface.WasResized() {
		if status == hal.StatusSuboptimal {
			Logger().Warn("presentation is suboptimal, recreating chain")
		}
		_, err := l.Recreate()
		return err
	}

	l.state = StateIdle
	return nil
}

// Recreate replaces the presentation chain. While the surface has no area
// it blocks on window events. The device is drained before the new chain is
// built; command buffers are reallocated only if the image count changed,
// and the pipeline is rebuilt only if the rebuild policy asks for it.
func (l *Loop) Recreate() (RecreateReport, error) {
	if l.closed {
		return RecreateReport{}, errLoopClosed
	}
	l.state = StateRecreating

	extent := l.surface.Extent()
	for extent.Empty() {
		if l.surface.ShouldClose() {
			Logger().Warn("surface closed while minimized")
			return RecreateReport{}, ErrSurfaceClosed
		}
		l.surface.WaitEvents()
		extent = l.surface.Extent()
	}
	// The chain is about to match the current size.
	l.surface.ResetResized()

	if err := l.device.WaitIdle(); err != nil {
		return RecreateReport{}, fmt.Errorf("wait for device idle: %w", err)
	}

	prev := l.chain
	next, err := NewChainFrom(l.device, extent, prev)
	if err != nil {
		return RecreateReport{}, fmt.Errorf("recreate presentation chain: %w", err)
	}

	report := RecreateReport{
		Extent:           next.Extent(),
		ImageCount:       next.ImageCount(),
		ReusedRenderPass: next.ReusedRenderPass(),
	}
	if prev != nil {
		report.PreviousImageCount = prev.ImageCount()
	}

	switch {
	case l.recorder == nil:
		rec, err := NewRecorder(l.device, next.ImageCount())
		if err != nil {
			next.Release()
			return RecreateReport{}, err
		}
		l.recorder = rec
		report.AllocatedCommandBuffers = true
	case l.recorder.Len() != next.ImageCount():
		if err := l.recorder.Reallocate(next.ImageCount()); err != nil {
			next.Release()
			return RecreateReport{}, err
		}
		report.AllocatedCommandBuffers = true
	}

	if l.pipeline == nil || l.rebuild(prev, next) {
		pipeline, err := l.pipelines(next.RenderPass(), l.layout)
		if err != nil {
			next.Release()
			return RecreateReport{}, fmt.Errorf("create pipeline: %w", err)
		}
		if l.pipeline != nil {
			l.pipeline.Destroy()
		}
		l.pipeline = pipeline
		report.RebuiltPipeline = true
	}

	if prev != nil {
		prev.Release()
	}
	l.chain = next
	l.recreations++
	l.state = StateIdle

	Logger().Info("presentation chain recreated",
		"width", report.Extent.Width,
		"height", report.Extent.Height,
		"images", report.ImageCount,
		"commandBuffers", report.AllocatedCommandBuffers,
		"pipeline", report.RebuiltPipeline,
	)
	return report, nil
}

// Run calls Frame until the surface asks to close, then shuts down.
func (l *Loop) Run() (err error) {
	defer func() {
		if cerr := l.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	for !l.surface.ShouldClose() {
		if err := l.Frame(); err != nil {
			if errors.Is(err, ErrSurfaceClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close waits for the device to go idle and releases everything the loop
// owns. If the wait fails nothing is released, since the GPU may still be
// using it. Close is idempotent.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.state = StateShuttingDown

	if err := l.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for device idle: %w", err)
	}
	if l.pipeline != nil {
		l.pipeline.Destroy()
		l.pipeline = nil
	}
	if l.recorder != nil {
		l.recorder.Free()
	}
	if l.chain != nil {
		l.chain.Release()
		l.chain = nil
	}
	if l.layout != nil {
		l.layout.Destroy()
		l.layout = nil
	}
	return nil
}

func (l *Loop) State() State { return l.state }

func (l *Loop) Chain() *Chain { return l.chain }

func (l *Loop) Recorder() *Recorder { return l.recorder }

// Recreations counts completed chain constructions, the first included.
func (l *Loop) Recreations() int { return l.recreations }

// Frames counts submitted frames.
func (l *Loop) Frames() uint64 { return l.stats.frames }
