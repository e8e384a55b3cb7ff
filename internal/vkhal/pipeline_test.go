package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	assert.Equal(t, vulkan.PrimitiveTopologyTriangleList, cfg.InputAssembly.Topology)
	assert.Equal(t, vulkan.PolygonModeFill, cfg.Rasterization.PolygonMode)
	assert.Equal(t, vulkan.CullModeFlags(vulkan.CullModeNone), cfg.Rasterization.CullMode)
	assert.Equal(t, float32(1), cfg.Rasterization.LineWidth)
	assert.Equal(t, vulkan.SampleCount1Bit, cfg.Multisample.RasterizationSamples)
	assert.Equal(t, vulkan.Bool32(vulkan.False), cfg.ColorBlendAttachment.BlendEnable)
	assert.Equal(t, vulkan.Bool32(vulkan.True), cfg.DepthStencil.DepthTestEnable)
	assert.Equal(t, vulkan.Bool32(vulkan.True), cfg.DepthStencil.DepthWriteEnable)
	assert.Equal(t, vulkan.CompareOpLess, cfg.DepthStencil.DepthCompareOp)
	assert.ElementsMatch(t, []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor}, cfg.DynamicStates)
	require.NoError(t, cfg.validate())
}

func TestPipelineConfigRequiresDynamicViewport(t *testing.T) {
	for _, tc := range []struct {
		name   string
		states []vulkan.DynamicState
	}{
		{"none", nil},
		{"viewport only", []vulkan.DynamicState{vulkan.DynamicStateViewport}},
		{"scissor only", []vulkan.DynamicState{vulkan.DynamicStateScissor}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			cfg.DynamicStates = tc.states
			require.Error(t, cfg.validate())
		})
	}
}

func TestPipelineConfigCloneDoesNotAlias(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Vertex = hal.VertexLayout{
		Stride:     20,
		Attributes: []hal.VertexAttribute{{Location: 0, Format: hal.FormatR32G32Sfloat}},
	}
	c := cfg.clone()

	cfg.DynamicStates[0] = vulkan.DynamicStateLineWidth
	cfg.Vertex.Attributes[0].Location = 7

	assert.Equal(t, vulkan.DynamicStateViewport, c.DynamicStates[0])
	assert.Equal(t, uint32(0), c.Vertex.Attributes[0].Location)
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000}, words)

	_, err = spirvWords([]byte{1, 2, 3})
	require.Error(t, err)
	_, err = spirvWords(nil)
	require.Error(t, err)
	_, err = spirvWords([]byte{0, 0, 0, 0})
	require.Error(t, err)
}

func TestLoadShaderModuleMissingFile(t *testing.T) {
	d := &Device{}
	_, err := d.loadShaderModule(t.TempDir() + "/missing.spv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read shader")
}
