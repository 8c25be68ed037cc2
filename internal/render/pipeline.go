package render

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/scop/internal/asset"
)

const spirvMagic = 0x07230203

// ShaderSet is the SPIR-V of one pipeline.
type ShaderSet struct {
	Vertex   []byte
	Fragment []byte
}

// Shaders holds the bytecode for both pipelines.
type Shaders struct {
	Model  ShaderSet
	Skybox ShaderSet
}

// LoadShaders reads model.{vert,frag}.spv and skybox.{vert,frag}.spv from dir.
func LoadShaders(dir string) (Shaders, error) {
	var shaders Shaders
	files := []struct {
		name string
		dst  *[]byte
	}{
		{"model.vert.spv", &shaders.Model.Vertex},
		{"model.frag.spv", &shaders.Model.Fragment},
		{"skybox.vert.spv", &shaders.Skybox.Vertex},
		{"skybox.frag.spv", &shaders.Skybox.Fragment},
	}

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return Shaders{}, errors.Wrapf(err, "failed to read shader %s", f.name)
		}
		*f.dst = data
	}

	return shaders, nil
}

// spirvWords converts SPIR-V bytes to the little-endian words Vulkan takes.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("shader bytecode length %d is not a positive multiple of 4", len(code))
	}

	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}

	if words[0] != spirvMagic {
		return nil, errors.Newf("shader bytecode has bad magic %#08x", words[0])
	}

	return words, nil
}

func vertexBindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := asset.Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func vertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := asset.Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}

// Geometry is an uploaded vertex and index buffer pair.
type Geometry struct {
	Vertex     *Buffer
	Index      *Buffer
	IndexCount int
}

// UploadGeometry copies mesh into device-local vertex and index buffers.
func UploadGeometry(allocator *Allocator, mesh *asset.Mesh) (*Geometry, error) {
	if mesh == nil || len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, errors.New("mesh has no geometry")
	}

	vertexBuffer, err := allocator.UploadBuffer(mesh.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}

	indexBuffer, err := allocator.UploadBuffer(mesh.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		vertexBuffer.Destroy(allocator.driver)
		return nil, errors.Wrap(err, "index buffer")
	}

	return &Geometry{
		Vertex:     vertexBuffer,
		Index:      indexBuffer,
		IndexCount: len(mesh.Indices),
	}, nil
}

func (g *Geometry) Destroy(driver core1_0.DeviceDriver) {
	if g == nil {
		return
	}
	g.Vertex.Destroy(driver)
	g.Index.Destroy(driver)
	g.IndexCount = 0
}

// PipelineSpec is everything that differs between the model and skybox
// pipelines.
type PipelineSpec struct {
	Name     string
	Shaders  ShaderSet
	CullMode core1_0.CullModeFlags
}

// Pipeline is a graphics pipeline on the shared render pass and the geometry
// it draws. The geometry slot survives pipeline rebuilds through
// Detach/Attach.
type Pipeline struct {
	Name     string
	handle   core1_0.Pipeline
	layout   core1_0.PipelineLayout
	geometry *Geometry
}

// Geometry returns the attached geometry, or nil.
func (p *Pipeline) Geometry() *Geometry {
	return p.geometry
}

// Detach removes the geometry from the pipeline without destroying it.
func (p *Pipeline) Detach() *Geometry {
	g := p.geometry
	p.geometry = nil
	return g
}

// Attach gives ownership of g to the pipeline.
func (p *Pipeline) Attach(g *Geometry) {
	p.geometry = g
}

// ReplaceGeometry attaches g and destroys the geometry it replaces. The
// caller must make sure the old buffers are no longer in use.
func (p *Pipeline) ReplaceGeometry(driver core1_0.DeviceDriver, g *Geometry) {
	p.geometry.Destroy(driver)
	p.geometry = g
}

// Destroy releases the pipeline, its layout and any attached geometry.
func (p *Pipeline) Destroy(driver core1_0.DeviceDriver) {
	if p == nil {
		return
	}

	p.destroyPipeline(driver)
	p.geometry.Destroy(driver)
	p.geometry = nil
}

func (p *Pipeline) destroyPipeline(driver core1_0.DeviceDriver) {
	if p.handle.Initialized() {
		driver.DestroyPipeline(p.handle, nil)
		p.handle = core1_0.Pipeline{}
	}

	if p.layout.Initialized() {
		driver.DestroyPipelineLayout(p.layout, nil)
		p.layout = core1_0.PipelineLayout{}
	}
}

func createShaderModule(driver core1_0.DeviceDriver, code []byte) (core1_0.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return core1_0.ShaderModule{}, err
	}

	module, _, err := driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: words,
	})
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrap(err, "failed to create shader module")
	}
	return module, nil
}

// PipelineBuilder creates pipelines for one swapchain: its render pass,
// extent and sample count are baked into every pipeline it builds.
type PipelineBuilder struct {
	driver      core1_0.DeviceDriver
	cache       *PipelineCache
	setLayout   core1_0.DescriptorSetLayout
	renderPass  core1_0.RenderPass
	extent      core1_0.Extent2D
	msaaSamples core1_0.SampleCountFlags
}

func newPipelineBuilder(device *DeviceContext, swapchain *Swapchain, setLayout core1_0.DescriptorSetLayout, cache *PipelineCache) *PipelineBuilder {
	return &PipelineBuilder{
		driver:      device.deviceDriver,
		cache:       cache,
		setLayout:   setLayout,
		renderPass:  swapchain.RenderPass,
		extent:      swapchain.Extent,
		msaaSamples: device.msaaSamples,
	}
}

// Build creates a pipeline for spec. The returned pipeline has no geometry.
func (b *PipelineBuilder) Build(spec PipelineSpec) (*Pipeline, error) {
	p := &Pipeline{Name: spec.Name}
	err := b.build(p, spec)
	if err != nil {
		p.Destroy(b.driver)
		return nil, errors.Wrapf(err, "%s pipeline", spec.Name)
	}
	return p, nil
}

func (b *PipelineBuilder) build(p *Pipeline, spec PipelineSpec) error {
	vertShader, err := createShaderModule(b.driver, spec.Shaders.Vertex)
	if err != nil {
		return errors.Wrap(err, "vertex shader")
	}
	defer b.driver.DestroyShaderModule(vertShader, nil)

	fragShader, err := createShaderModule(b.driver, spec.Shaders.Fragment)
	if err != nil {
		return errors.Wrap(err, "fragment shader")
	}
	defer b.driver.DestroyShaderModule(fragShader, nil)

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   vertexBindingDescriptions(),
		VertexAttributeDescriptions: vertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(b.extent.Width),
				Height:   float32(b.extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: b.extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    spec.CullMode,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: b.msaaSamples,
		MinSampleShading:     1.0,
	}

	// LessOrEqual lets the skybox, pushed to the far plane in its vertex
	// shader, pass against a cleared depth of 1.
	depthStencil := &core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthCompareOp:   core1_0.CompareOpLessOrEqual,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	p.layout, _, err = b.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			b.setLayout,
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline layout")
	}

	start := hrtime.Now()
	pipelines, _, err := b.driver.CreateGraphicsPipelines(b.cache.handlePtr(), nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			DepthStencilState:  depthStencil,
			ColorBlendState:    colorBlend,
			Layout:             p.layout,
			RenderPass:         b.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to create graphics pipeline")
	}
	p.handle = pipelines[0]

	Logger().Debug("pipeline built",
		"pipeline", spec.Name,
		"cached", b.cache.handlePtr() != nil,
		"elapsed", hrtime.Since(start))

	return nil
}
