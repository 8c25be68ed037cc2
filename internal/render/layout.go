package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// ErrUnsupportedTransition is returned for any layout pair the render core
// has no barrier for.
var ErrUnsupportedTransition = errors.New("unsupported layout transition")

type layoutPair struct {
	from core1_0.ImageLayout
	to   core1_0.ImageLayout
}

// transition is the access and stage scope of one image barrier.
type transition struct {
	srcAccess core1_0.AccessFlags
	dstAccess core1_0.AccessFlags
	srcStage  core1_0.PipelineStageFlags
	dstStage  core1_0.PipelineStageFlags
}

var transitions = map[layoutPair]transition{
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal}: {
		srcAccess: 0,
		dstAccess: core1_0.AccessTransferWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: core1_0.AccessTransferWrite,
		dstAccess: core1_0.AccessShaderRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageFragmentShader,
	},
	// Mip generation: a level that was just written becomes the next blit source.
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutTransferSrcOptimal}: {
		srcAccess: core1_0.AccessTransferWrite,
		dstAccess: core1_0.AccessTransferRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal}: {
		srcAccess: 0,
		dstAccess: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageEarlyFragmentTests,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutColorAttachmentOptimal}: {
		srcAccess: 0,
		dstAccess: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageColorAttachmentOutput,
	},
	{core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.ImageLayoutTransferSrcOptimal}: {
		srcAccess: core1_0.AccessShaderRead,
		dstAccess: core1_0.AccessTransferRead,
		srcStage:  core1_0.PipelineStageFragmentShader,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: core1_0.AccessTransferRead,
		dstAccess: core1_0.AccessShaderRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageFragmentShader,
	},
}

func layoutTransition(oldLayout, newLayout core1_0.ImageLayout) (transition, error) {
	t, ok := transitions[layoutPair{oldLayout, newLayout}]
	if !ok {
		return transition{}, errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", oldLayout, newLayout)
	}
	return t, nil
}

func hasStencilComponent(format core1_0.Format) bool {
	return format == core1_0.FormatD32SignedFloatS8UnsignedInt || format == core1_0.FormatD24UnsignedNormalizedS8UnsignedInt
}

// aspectMask returns the aspects a barrier into layout has to cover.
func aspectMask(format core1_0.Format, layout core1_0.ImageLayout) core1_0.ImageAspectFlags {
	if layout != core1_0.ImageLayoutDepthStencilAttachmentOptimal {
		return core1_0.ImageAspectColor
	}

	aspect := core1_0.ImageAspectDepth
	if hasStencilComponent(format) {
		aspect |= core1_0.ImageAspectStencil
	}
	return aspect
}

// subresource selects a range of mip levels across a range of layers.
type subresource struct {
	baseMip   int
	mipLevels int
	baseLayer int
	layers    int
}

// imageBarrier builds the barrier for a supported layout transition.
func imageBarrier(image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout, sub subresource) (core1_0.ImageMemoryBarrier, transition, error) {
	t, err := layoutTransition(oldLayout, newLayout)
	if err != nil {
		return core1_0.ImageMemoryBarrier{}, transition{}, err
	}

	return core1_0.ImageMemoryBarrier{
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspectMask(format, newLayout),
			BaseMipLevel:   sub.baseMip,
			LevelCount:     sub.mipLevels,
			BaseArrayLayer: sub.baseLayer,
			LayerCount:     sub.layers,
		},
		SrcAccessMask: t.srcAccess,
		DstAccessMask: t.dstAccess,
	}, t, nil
}

// cmdTransition records a layout transition barrier.
func cmdTransition(driver core1_0.DeviceDriver, commandBuffer core1_0.CommandBuffer, image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout, sub subresource) error {
	barrier, t, err := imageBarrier(image, format, oldLayout, newLayout, sub)
	if err != nil {
		return err
	}

	return driver.CmdPipelineBarrier(commandBuffer, t.srcStage, t.dstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
}

// TransitionImageLayout moves image between layouts in a one-time command.
func (a *Allocator) TransitionImageLayout(image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout, mipLevels, layers int) error {
	// Reject before touching the queue.
	_, err := layoutTransition(oldLayout, newLayout)
	if err != nil {
		return err
	}

	return a.RunOneTime(func(commandBuffer core1_0.CommandBuffer) error {
		return cmdTransition(a.driver, commandBuffer, image, format, oldLayout, newLayout, subresource{
			mipLevels: mipLevels,
			layers:    layers,
		})
	})
}
