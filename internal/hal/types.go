package hal

import "math"

// Extent is a two-dimensional size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero, as happens while a window
// is minimized.
func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// AspectRatio returns width / height, or 0 for an empty extent.
func (e Extent) AspectRatio() float32 {
	if e.Empty() {
		return 0
	}
	return float32(e.Width) / float32(e.Height)
}

// UndefinedExtent is the surface "current extent" value meaning the
// surface size is determined by the swapchain.
const UndefinedExtent = math.MaxUint32

// Status is the outcome of an acquire or present request.
type Status int

const (
	StatusOK Status = iota
	// StatusSuboptimal means the image is usable but the chain no longer
	// matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the chain must be rebuilt before further use.
	StatusOutOfDate
	// StatusFatal accompanies a non-nil error.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Format values match VkFormat.
type Format uint32

const (
	FormatUndefined       Format = 0
	FormatR8G8B8A8Srgb    Format = 43
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatR32G32Sfloat    Format = 103
	FormatR32G32B32Sfloat Format = 106
	FormatD32Sfloat       Format = 126
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

// HasStencil reports whether a depth format carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

// ColorSpace values match VkColorSpaceKHR.
type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

// PresentMode values match VkPresentModeKHR.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	default:
		return "unknown"
	}
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32 // 0 means no limit
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

// SurfaceSupport is what the platform offers for the current surface.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// SampleCount values match VkSampleCountFlagBits.
type SampleCount uint32

const SampleCount1 SampleCount = 1

// Aspect selects the image aspect a view covers.
type Aspect uint32

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

// ImageUsage values match VkImageUsageFlagBits.
type ImageUsage uint32

const (
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// BufferUsage values match VkBufferUsageFlagBits.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x01
	BufferUsageTransferDst BufferUsage = 0x02
	BufferUsageVertex      BufferUsage = 0x80
)

// MemoryLocation picks where a buffer's memory lives.
type MemoryLocation int

const (
	// MemoryHostVisible is host visible and coherent; writes need no flush.
	MemoryHostVisible MemoryLocation = iota
	// MemoryDeviceLocal is filled through a staging copy.
	MemoryDeviceLocal
)

// ShaderStage values match VkShaderStageFlagBits.
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageFragment ShaderStage = 0x10
)

type SwapchainDescriptor struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent
	ImageCount  uint32
	// Old is handed to the platform so it can recycle resources; it stays
	// owned by the caller.
	Old Swapchain
}

type ImageDescriptor struct {
	Extent  Extent
	Format  Format
	Usage   ImageUsage
	Samples SampleCount
}

type ImageViewDescriptor struct {
	Format Format
	Aspect Aspect
}

type RenderPassDescriptor struct {
	ColorFormat Format
	DepthFormat Format
	Samples     SampleCount
}

// Compatible reports whether framebuffers and pipelines built for one render
// pass may be used with the other.
func (d RenderPassDescriptor) Compatible(o RenderPassDescriptor) bool {
	return d.ColorFormat == o.ColorFormat && d.DepthFormat == o.DepthFormat && d.Samples == o.Samples
}

type FramebufferDescriptor struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent
}

type BufferDescriptor struct {
	Size     uint64
	Usage    BufferUsage
	Location MemoryLocation
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type PipelineLayoutDescriptor struct {
	PushConstants []PushConstantRange
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	X, Y   int32
	Extent Extent
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// VertexAttribute is one per-vertex input read by the vertex shader.
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexLayout describes a single interleaved vertex binding.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}
