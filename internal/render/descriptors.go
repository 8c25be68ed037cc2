package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const (
	uniformBinding = 0
	modelBinding   = 1
	skyboxBinding  = 2
)

func descriptorSetLayoutBindings() []core1_0.DescriptorSetLayoutBinding {
	return []core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         uniformBinding,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,

			StageFlags: core1_0.StageVertex,
		},
		{
			Binding:         modelBinding,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		},
		{
			Binding:         skyboxBinding,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		},
	}
}

// descriptorPoolSizes covers count sets: one uniform buffer and two samplers
// each.
func descriptorPoolSizes(count int) []core1_0.DescriptorPoolSize {
	return []core1_0.DescriptorPoolSize{
		{
			Type:            core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: count,
		},
		{
			Type:            core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 2 * count,
		},
	}
}

func uniformWrite(set core1_0.DescriptorSet, buffer core1_0.Buffer) core1_0.WriteDescriptorSet {
	return core1_0.WriteDescriptorSet{
		DstSet:          set,
		DstBinding:      uniformBinding,
		DstArrayElement: 0,

		DescriptorType: core1_0.DescriptorTypeUniformBuffer,

		BufferInfo: []core1_0.DescriptorBufferInfo{
			{
				Buffer: buffer,
				Offset: 0,
				Range:  uniformBufferSize,
			},
		},
	}
}

func samplerWrite(set core1_0.DescriptorSet, binding int, tex *Texture) core1_0.WriteDescriptorSet {
	return core1_0.WriteDescriptorSet{
		DstSet:          set,
		DstBinding:      binding,
		DstArrayElement: 0,

		DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

		ImageInfo: []core1_0.DescriptorImageInfo{
			{
				ImageView:   tex.View,
				Sampler:     tex.Sampler,
				ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
			},
		},
	}
}

// DescriptorManager owns the descriptor set layout shared by both pipelines
// and, per swapchain image, a host-visible uniform buffer and a descriptor
// set pointing at it. Set i is only ever used by command buffer i.
type DescriptorManager struct {
	driver    core1_0.DeviceDriver
	allocator *Allocator

	layout   core1_0.DescriptorSetLayout
	pool     core1_0.DescriptorPool
	sets     []core1_0.DescriptorSet
	uniforms []*Buffer
}

func NewDescriptorManager(device *DeviceContext, allocator *Allocator) (*DescriptorManager, error) {
	layout, _, err := device.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: descriptorSetLayoutBindings(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create descriptor set layout")
	}

	return &DescriptorManager{
		driver:    device.deviceDriver,
		allocator: allocator,
		layout:    layout,
	}, nil
}

// Layout is the set layout every pipeline layout is built from.
func (m *DescriptorManager) Layout() core1_0.DescriptorSetLayout {
	return m.layout
}

// Count is the number of sets, which equals the swapchain image count.
func (m *DescriptorManager) Count() int {
	return len(m.sets)
}

func (m *DescriptorManager) Set(index int) core1_0.DescriptorSet {
	return m.sets[index]
}

// Rebuild drops every per-image resource and creates count uniform buffers
// and sets, fully written. The device must be idle.
func (m *DescriptorManager) Rebuild(count int, model, skybox *Texture) error {
	if !model.Sampled() || !skybox.Sampled() {
		return errors.New("descriptor sets need sampled model and skybox textures")
	}

	m.destroyPerImage()

	for i := 0; i < count; i++ {
		buffer, err := m.allocator.CreateBuffer(uniformBufferSize, core1_0.BufferUsageUniformBuffer, hostVisible)
		if err != nil {
			return errors.Wrap(err, "uniform buffer")
		}
		m.uniforms = append(m.uniforms, buffer)
	}

	var err error
	m.pool, _, err = m.driver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   count,
		PoolSizes: descriptorPoolSizes(count),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create descriptor pool")
	}

	allocLayouts := make([]core1_0.DescriptorSetLayout, count)
	for i := range allocLayouts {
		allocLayouts[i] = m.layout
	}

	m.sets, _, err = m.driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: m.pool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return errors.Wrap(err, "failed to allocate descriptor sets")
	}

	writes := make([]core1_0.WriteDescriptorSet, 0, 3*count)
	for i, set := range m.sets {
		writes = append(writes,
			uniformWrite(set, m.uniforms[i].Handle),
			samplerWrite(set, modelBinding, model),
			samplerWrite(set, skyboxBinding, skybox),
		)
	}

	err = m.driver.UpdateDescriptorSets(writes, nil)
	if err != nil {
		return errors.Wrap(err, "failed to write descriptor sets")
	}

	return nil
}

// rebindWrites points the model sampler binding of every set at tex.
func rebindWrites(sets []core1_0.DescriptorSet, tex *Texture) []core1_0.WriteDescriptorSet {
	writes := make([]core1_0.WriteDescriptorSet, 0, len(sets))
	for _, set := range sets {
		writes = append(writes, samplerWrite(set, modelBinding, tex))
	}
	return writes
}

// RebindTexture points binding 1 of every set at tex. Bindings 0 and 2 are
// left alone. The device must be idle.
func (m *DescriptorManager) RebindTexture(tex *Texture) error {
	if !tex.Sampled() {
		return errors.New("cannot bind a texture without a sampler")
	}

	writes := rebindWrites(m.sets, tex)
	if len(writes) == 0 {
		return nil
	}

	err := m.driver.UpdateDescriptorSets(writes, nil)
	if err != nil {
		return errors.Wrap(err, "failed to rebind model texture")
	}
	return nil
}

// WriteUniform copies ubo into the uniform buffer of image index.
func (m *DescriptorManager) WriteUniform(index int, ubo *UniformBufferObject) error {
	if index < 0 || index >= len(m.uniforms) {
		return errors.Newf("uniform buffer %d out of range, have %d", index, len(m.uniforms))
	}
	return writeData(m.driver, m.uniforms[index].Memory, 0, ubo)
}

func (m *DescriptorManager) destroyPerImage() {
	if m == nil {
		return
	}

	// Sets go with the pool.
	if m.pool.Initialized() {
		m.driver.DestroyDescriptorPool(m.pool, nil)
		m.pool = core1_0.DescriptorPool{}
	}
	m.sets = nil

	for _, buffer := range m.uniforms {
		buffer.Destroy(m.driver)
	}
	m.uniforms = nil
}

func (m *DescriptorManager) Destroy() {
	if m == nil {
		return
	}

	m.destroyPerImage()

	if m.layout.Initialized() {
		m.driver.DestroyDescriptorSetLayout(m.layout, nil)
		m.layout = core1_0.DescriptorSetLayout{}
	}
}
