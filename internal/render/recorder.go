package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// drawOrder puts the skybox first so the model is drawn over it.
func drawOrder(model, skybox *Pipeline, skyboxVisible bool) []*Pipeline {
	if skyboxVisible && skybox != nil {
		return []*Pipeline{skybox, model}
	}
	return []*Pipeline{model}
}

// CommandRecorder keeps one prerecorded primary command buffer per
// framebuffer. Buffers are recorded once and resubmitted every frame until
// something they reference changes.
type CommandRecorder struct {
	driver  core1_0.DeviceDriver
	pool    core1_0.CommandPool
	buffers []core1_0.CommandBuffer
}

func NewCommandRecorder(device *DeviceContext) (*CommandRecorder, error) {
	pool, _, err := device.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: device.graphicsFamily,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create command pool")
	}

	return &CommandRecorder{
		driver: device.deviceDriver,
		pool:   pool,
	}, nil
}

func (r *CommandRecorder) Buffer(index int) core1_0.CommandBuffer {
	return r.buffers[index]
}

func (r *CommandRecorder) Count() int {
	if r == nil {
		return 0
	}
	return len(r.buffers)
}

// RecordAll frees the previous buffers and records one per framebuffer of
// swapchain, drawing pipelines in order with descriptor set i bound in
// buffer i. On error no buffers are left. The device must be idle.
func (r *CommandRecorder) RecordAll(swapchain *Swapchain, descriptors *DescriptorManager, pipelines []*Pipeline) error {
	r.free()

	if descriptors.Count() != len(swapchain.Framebuffers) {
		return errors.Newf("%d descriptor sets for %d framebuffers", descriptors.Count(), len(swapchain.Framebuffers))
	}

	buffers, _, err := r.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(swapchain.Framebuffers),
	})
	if err != nil {
		return errors.Wrap(err, "failed to allocate command buffers")
	}
	r.buffers = buffers

	for bufferIdx, buffer := range buffers {
		err = r.record(buffer, swapchain.RenderPass, swapchain.Framebuffers[bufferIdx], swapchain.Extent, descriptors.Set(bufferIdx), pipelines)
		if err != nil {
			r.free()
			return errors.Wrapf(err, "command buffer %d", bufferIdx)
		}
	}

	return nil
}

func (r *CommandRecorder) record(buffer core1_0.CommandBuffer, renderPass core1_0.RenderPass, framebuffer core1_0.Framebuffer, extent core1_0.Extent2D, set core1_0.DescriptorSet, pipelines []*Pipeline) error {
	_, err := r.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageSimultaneousUse,
	})
	if err != nil {
		return errors.Wrap(err, "failed to begin command buffer")
	}

	err = r.driver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  renderPass,
			Framebuffer: framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0, 0, 0, 1},
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return errors.Wrap(err, "failed to begin render pass")
	}

	for _, pipeline := range pipelines {
		r.driver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, pipeline.handle)

		geometry := pipeline.Geometry()
		if geometry != nil {
			r.driver.CmdBindVertexBuffers(buffer, 0, []core1_0.Buffer{geometry.Vertex.Handle}, []int{0})
			r.driver.CmdBindIndexBuffer(buffer, geometry.Index.Handle, 0, core1_0.IndexTypeUInt32)
		}

		r.driver.CmdBindDescriptorSets(buffer, core1_0.PipelineBindPointGraphics, pipeline.layout, 0, []core1_0.DescriptorSet{
			set,
		}, nil)

		if geometry != nil {
			r.driver.CmdDrawIndexed(buffer, geometry.IndexCount, 1, 0, 0, 0)
		}
	}

	r.driver.CmdEndRenderPass(buffer)

	_, err = r.driver.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "failed to end command buffer")
	}

	return nil
}

func (r *CommandRecorder) free() {
	if r != nil && len(r.buffers) > 0 {
		r.driver.FreeCommandBuffers(r.buffers...)
		r.buffers = nil
	}
}

func (r *CommandRecorder) Destroy() {
	if r == nil {
		return
	}

	r.free()

	if r.pool.Initialized() {
		r.driver.DestroyCommandPool(r.pool, nil)
		r.pool = core1_0.CommandPool{}
	}
}
