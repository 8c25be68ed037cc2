package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// RunOneTime records commands into a fresh buffer from the transient pool,
// submits it and waits for the queue to drain.
func (a *Allocator) RunOneTime(record func(commandBuffer core1_0.CommandBuffer) error) error {
	buffers, _, err := a.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        a.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to allocate one-time command buffer")
	}

	buffer := buffers[0]
	defer a.driver.FreeCommandBuffers(buffer)

	_, err = a.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "failed to begin one-time command buffer")
	}

	err = record(buffer)
	if err != nil {
		return err
	}

	_, err = a.driver.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "failed to end one-time command buffer")
	}

	_, err = a.driver.QueueSubmit(a.queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to submit one-time command buffer")
	}

	_, err = a.driver.QueueWaitIdle(a.queue)
	if err != nil {
		return errors.Wrap(err, "failed to wait for one-time command buffer")
	}

	return nil
}

// Stage copies data into a new host-visible transfer source buffer.
func (a *Allocator) Stage(data any) (*Buffer, error) {
	encoded, err := encode(data)
	if err != nil {
		return nil, err
	}

	staging, err := a.CreateBuffer(len(encoded), core1_0.BufferUsageTransferSrc, hostVisible)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging buffer")
	}

	err = writeData(a.driver, staging.Memory, 0, encoded)
	if err != nil {
		staging.Destroy(a.driver)
		return nil, err
	}

	return staging, nil
}

// UploadBuffer creates a device-local buffer holding data. The staging buffer
// is gone by the time UploadBuffer returns.
func (a *Allocator) UploadBuffer(data any, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	encoded, err := encode(data)
	if err != nil {
		return nil, err
	}
	if len(encoded) == 0 {
		return nil, errors.New("refusing to upload an empty buffer")
	}

	staging, err := a.Stage(encoded)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(a.driver)

	buffer, err := a.CreateBuffer(len(encoded), core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	err = a.RunOneTime(func(commandBuffer core1_0.CommandBuffer) error {
		return a.driver.CmdCopyBuffer(commandBuffer, staging.Handle, buffer.Handle,
			core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      len(encoded),
			},
		)
	})
	if err != nil {
		buffer.Destroy(a.driver)
		return nil, errors.Wrap(err, "failed to copy staging buffer")
	}

	return buffer, nil
}
