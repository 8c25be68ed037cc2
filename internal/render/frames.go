package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// MaxFramesInFlight bounds how far the CPU may run ahead of the GPU.
const MaxFramesInFlight = 2

type frameRing struct {
	current int
}

// next returns the slot for this frame and advances the ring.
func (r *frameRing) next() int {
	slot := r.current
	r.current = (r.current + 1) % MaxFramesInFlight
	return slot
}

// imageOwners remembers which ring slot last submitted work for each
// swapchain image.
type imageOwners []int

func newImageOwners(count int) imageOwners {
	owners := make(imageOwners, count)
	for i := range owners {
		owners[i] = -1
	}
	return owners
}

// claim records slot as the owner of image and returns the slot that owned it
// before, or -1 when the caller has nothing else to wait for.
func (o imageOwners) claim(image, slot int) int {
	previous := o[image]
	o[image] = slot
	if previous == slot {
		return -1
	}
	return previous
}

type syncObjects struct {
	imageAvailable core1_0.Semaphore
	renderFinished core1_0.Semaphore
	inFlight       core1_0.Fence
}

// FrameScheduler drives acquire, submit and present over a ring of
// MaxFramesInFlight sync slots.
type FrameScheduler struct {
	driver    core1_0.DeviceDriver
	swapchain khr_swapchain.ExtensionDriver

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	ring   frameRing
	slots  [MaxFramesInFlight]syncObjects
	owners imageOwners
}

func NewFrameScheduler(device *DeviceContext) (*FrameScheduler, error) {
	s := &FrameScheduler{
		driver:        device.deviceDriver,
		swapchain:     device.swapchainExtension,
		graphicsQueue: device.graphicsQueue,
		presentQueue:  device.presentQueue,
	}

	for i := range s.slots {
		err := s.createSyncObjects(&s.slots[i])
		if err != nil {
			s.Destroy()
			return nil, err
		}
	}

	return s, nil
}

func (s *FrameScheduler) createSyncObjects(slot *syncObjects) error {
	var err error
	slot.imageAvailable, _, err = s.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "failed to create semaphore")
	}

	slot.renderFinished, _, err = s.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "failed to create semaphore")
	}

	slot.inFlight, _, err = s.driver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create fence")
	}

	return nil
}

// Reset forgets image ownership after the swapchain was rebuilt with count
// images. The device must be idle.
func (s *FrameScheduler) Reset(count int) {
	s.owners = newImageOwners(count)
}

// Draw renders one frame. It reports stale when the swapchain no longer
// matches the surface; the frame was then not presented, or presented
// suboptimally, and the swapchain should be rebuilt. update is called with
// the acquired image index once that image's uniform buffer is free.
func (s *FrameScheduler) Draw(swapchain *Swapchain, recorder *CommandRecorder, update func(imageIndex int) error) (stale bool, err error) {
	slotIndex := s.ring.next()
	slot := &s.slots[slotIndex]

	_, err = s.driver.WaitForFences(true, common.NoTimeout, slot.inFlight)
	if err != nil {
		return false, errors.Wrap(err, "failed to wait for frame fence")
	}

	imageIndex, res, err := s.swapchain.AcquireNextImage(swapchain.handle, common.NoTimeout, &slot.imageAvailable, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return true, nil
	} else if err != nil {
		return false, errors.Wrap(err, "failed to acquire swapchain image")
	}

	if len(s.owners) != swapchain.ImageCount() {
		s.owners = newImageOwners(swapchain.ImageCount())
	}

	if owner := s.owners.claim(imageIndex, slotIndex); owner >= 0 {
		_, err = s.driver.WaitForFences(true, common.NoTimeout, s.slots[owner].inFlight)
		if err != nil {
			return false, errors.Wrap(err, "failed to wait for image fence")
		}
	}

	_, err = s.driver.ResetFences(slot.inFlight)
	if err != nil {
		return false, errors.Wrap(err, "failed to reset frame fence")
	}

	err = update(imageIndex)
	if err != nil {
		return false, s.release(slot, err)
	}

	_, err = s.driver.QueueSubmit(s.graphicsQueue, &slot.inFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{slot.imageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{recorder.Buffer(imageIndex)},
			SignalSemaphores: []core1_0.Semaphore{slot.renderFinished},
		},
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to submit frame")
	}

	res, err = s.swapchain.QueuePresent(s.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{slot.renderFinished},
		Swapchains:     []khr_swapchain.Swapchain{swapchain.handle},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return true, nil
	} else if err != nil {
		return false, errors.Wrap(err, "failed to present")
	}

	return false, nil
}

// releaseSubmit is an empty batch that consumes the acquire semaphore of
// slot and signals its fence, for a frame abandoned after acquire.
func releaseSubmit(slot *syncObjects) core1_0.SubmitInfo {
	return core1_0.SubmitInfo{
		WaitSemaphores:   []core1_0.Semaphore{slot.imageAvailable},
		WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
	}
}

// release returns slot to a reusable state after cause aborted the frame.
// The acquired image is not presented; the caller rebuilds the swapchain.
func (s *FrameScheduler) release(slot *syncObjects, cause error) error {
	_, err := s.driver.QueueSubmit(s.graphicsQueue, &slot.inFlight, releaseSubmit(slot))
	if err != nil {
		return errors.CombineErrors(cause, errors.Wrap(err, "failed to release frame"))
	}
	return cause
}

func (s *FrameScheduler) Destroy() {
	if s == nil {
		return
	}

	for i := range s.slots {
		slot := &s.slots[i]
		if slot.imageAvailable.Initialized() {
			s.driver.DestroySemaphore(slot.imageAvailable, nil)
			slot.imageAvailable = core1_0.Semaphore{}
		}
		if slot.renderFinished.Initialized() {
			s.driver.DestroySemaphore(slot.renderFinished, nil)
			slot.renderFinished = core1_0.Semaphore{}
		}
		if slot.inFlight.Initialized() {
			s.driver.DestroyFence(slot.inFlight, nil)
			slot.inFlight = core1_0.Fence{}
		}
	}
	s.owners = nil
}
