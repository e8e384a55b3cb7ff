package vkhal

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

// PipelineConfig holds the fixed-function state of a graphics pipeline.
// Viewport and scissor are always dynamic, so a config does not depend on
// the presentation chain's size.
type PipelineConfig struct {
	Vertex hal.VertexLayout

	InputAssembly        vulkan.PipelineInputAssemblyStateCreateInfo
	Rasterization        vulkan.PipelineRasterizationStateCreateInfo
	Multisample          vulkan.PipelineMultisampleStateCreateInfo
	ColorBlendAttachment vulkan.PipelineColorBlendAttachmentState
	ColorBlend           vulkan.PipelineColorBlendStateCreateInfo
	DepthStencil         vulkan.PipelineDepthStencilStateCreateInfo

	// DynamicStates must include viewport and scissor.
	DynamicStates []vulkan.DynamicState
}

// DefaultPipelineConfig is a filled triangle list with no culling, depth
// testing with less-than compare, no blending and dynamic viewport and
// scissor.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		InputAssembly: vulkan.PipelineInputAssemblyStateCreateInfo{
			SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vulkan.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: vulkan.False,
		},
		Rasterization: vulkan.PipelineRasterizationStateCreateInfo{
			SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
			DepthClampEnable:        vulkan.False,
			RasterizerDiscardEnable: vulkan.False,
			PolygonMode:             vulkan.PolygonModeFill,
			LineWidth:               1.0,
			CullMode:                vulkan.CullModeFlags(vulkan.CullModeNone),
			FrontFace:               vulkan.FrontFaceClockwise,
			DepthBiasEnable:         vulkan.False,
		},
		Multisample: vulkan.PipelineMultisampleStateCreateInfo{
			SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vulkan.SampleCount1Bit,
			SampleShadingEnable:  vulkan.False,
			MinSampleShading:     1.0,
		},
		ColorBlendAttachment: vulkan.PipelineColorBlendAttachmentState{
			ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
			BlendEnable:    vulkan.False,
		},
		ColorBlend: vulkan.PipelineColorBlendStateCreateInfo{
			SType:         vulkan.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable: vulkan.False,
			LogicOp:       vulkan.LogicOpCopy,
		},
		DepthStencil: vulkan.PipelineDepthStencilStateCreateInfo{
			SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       vulkan.True,
			DepthWriteEnable:      vulkan.True,
			DepthCompareOp:        vulkan.CompareOpLess,
			DepthBoundsTestEnable: vulkan.False,
			StencilTestEnable:     vulkan.False,
			MinDepthBounds:        0,
			MaxDepthBounds:        1,
		},
		DynamicStates: []vulkan.DynamicState{
			vulkan.DynamicStateViewport,
			vulkan.DynamicStateScissor,
		},
	}
}

// clone copies every slice so the returned config shares no memory with c.
func (c PipelineConfig) clone() PipelineConfig {
	out := c
	out.Vertex.Attributes = append([]hal.VertexAttribute(nil), c.Vertex.Attributes...)
	out.DynamicStates = append([]vulkan.DynamicState(nil), c.DynamicStates...)
	return out
}

func (c PipelineConfig) validate() error {
	var viewport, scissor bool
	for _, s := range c.DynamicStates {
		switch s {
		case vulkan.DynamicStateViewport:
			viewport = true
		case vulkan.DynamicStateScissor:
			scissor = true
		}
	}
	if !viewport || !scissor {
		return errors.New("pipeline config: viewport and scissor must be dynamic")
	}
	return nil
}

// ShaderPaths names the compiled SPIR-V files of a pipeline.
type ShaderPaths struct {
	Vertex   string
	Fragment string
}

// Pipeline is a graphics pipeline built for one render pass. It is never
// modified; a different render pass needs a new Pipeline.
type Pipeline struct {
	device vulkan.Device
	handle vulkan.Pipeline
	config PipelineConfig
}

var _ hal.Pipeline = (*Pipeline)(nil)

// NewPipeline reads the shaders and builds a pipeline for pass and layout.
func NewPipeline(d *Device, cfg PipelineConfig, shaders ShaderPaths, pass hal.RenderPass, layout hal.PipelineLayout) (*Pipeline, error) {
	cfg = cfg.clone()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rp, err := unwrap[*renderPass](pass, "create graphics pipeline")
	if err != nil {
		return nil, err
	}
	pl, err := unwrap[*pipelineLayout](layout, "create graphics pipeline")
	if err != nil {
		return nil, err
	}

	vertModule, err := d.loadShaderModule(shaders.Vertex)
	if err != nil {
		return nil, err
	}
	defer vulkan.DestroyShaderModule(d.device, vertModule, nil)
	fragModule, err := d.loadShaderModule(shaders.Fragment)
	if err != nil {
		return nil, err
	}
	defer vulkan.DestroyShaderModule(d.device, fragModule, nil)

	stages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vertModule,
			PName:  "main\x00",
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  "main\x00",
		},
	}

	bindings, attributes := toVertexInput(cfg.Vertex)
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Counts only; the values come from the dynamic state.
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicState := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(cfg.DynamicStates)),
		PDynamicStates:    cfg.DynamicStates,
	}

	colorBlend := cfg.ColorBlend
	colorBlend.AttachmentCount = 1
	colorBlend.PAttachments = []vulkan.PipelineColorBlendAttachmentState{cfg.ColorBlendAttachment}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &cfg.InputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &cfg.Rasterization,
		PMultisampleState:   &cfg.Multisample,
		PDepthStencilState:  &cfg.DepthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              pl.handle,
		RenderPass:          rp.handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vulkan.Pipeline, 1)
	if err := check(vulkan.CreateGraphicsPipelines(d.device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines), "create graphics pipeline"); err != nil {
		return nil, err
	}
	Logger().Debug("graphics pipeline created", "vertex", shaders.Vertex, "fragment", shaders.Fragment)
	return &Pipeline{device: d.device, handle: pipelines[0], config: cfg}, nil
}

// Config returns a copy of the configuration the pipeline was built with.
func (p *Pipeline) Config() PipelineConfig {
	return p.config.clone()
}

func (p *Pipeline) Bind(cb hal.CommandBuffer) {
	cb.BindPipeline(p)
}

func (p *Pipeline) Destroy() {
	vulkan.DestroyPipeline(p.device, p.handle, nil)
}

func (d *Device) loadShaderModule(path string) (vulkan.ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), errors.Wrapf(err, "read shader %s", path)
	}
	words, err := spirvWords(code)
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), errors.Wrapf(err, "shader %s", path)
	}
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vulkan.ShaderModule
	if err := check(vulkan.CreateShaderModule(d.device, &createInfo, nil, &module), "create shader module"); err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), err
	}
	return module, nil
}

const spirvMagic = 0x07230203

// spirvWords decodes little-endian SPIR-V into the word slice the bindings
// expect.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Errorf("code length %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Errorf("bad SPIR-V magic %#08x", words[0])
	}
	return words, nil
}
