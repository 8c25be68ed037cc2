package render

import (
	"math/bits"

	"github.com/vkngwrapper/core/v3/core1_0"
)

// MipLevels is floor(log2(min(width, height))) + 1.
func MipLevels(width, height int) int {
	smallest := min(width, height)
	if smallest < 1 {
		return 1
	}
	return bits.Len(uint(smallest))
}

type mipStepKind int

const (
	mipBarrier mipStepKind = iota
	mipBlit
)

// mipStep is one command of mip chain generation. Barriers move a single
// level between layouts; blits copy level-1 into level at half size.
type mipStep struct {
	kind  mipStepKind
	level int

	from core1_0.ImageLayout
	to   core1_0.ImageLayout

	srcWidth, srcHeight int
	dstWidth, dstHeight int
}

// planMipmaps lists the commands that fill levels 1..levels-1 from level 0.
// Every level starts in TRANSFER_DST and ends in SHADER_READ_ONLY.
func planMipmaps(width, height, levels int) []mipStep {
	steps := make([]mipStep, 0, 3*levels)

	mipWidth := width
	mipHeight := height
	for level := 1; level < levels; level++ {
		steps = append(steps, mipStep{
			kind:  mipBarrier,
			level: level - 1,
			from:  core1_0.ImageLayoutTransferDstOptimal,
			to:    core1_0.ImageLayoutTransferSrcOptimal,
		})

		nextMipWidth := mipWidth
		nextMipHeight := mipHeight
		if nextMipWidth > 1 {
			nextMipWidth /= 2
		}
		if nextMipHeight > 1 {
			nextMipHeight /= 2
		}

		steps = append(steps, mipStep{
			kind:      mipBlit,
			level:     level,
			srcWidth:  mipWidth,
			srcHeight: mipHeight,
			dstWidth:  nextMipWidth,
			dstHeight: nextMipHeight,
		})

		steps = append(steps, mipStep{
			kind:  mipBarrier,
			level: level - 1,
			from:  core1_0.ImageLayoutTransferSrcOptimal,
			to:    core1_0.ImageLayoutShaderReadOnlyOptimal,
		})

		mipWidth = nextMipWidth
		mipHeight = nextMipHeight
	}

	steps = append(steps, mipStep{
		kind:  mipBarrier,
		level: levels - 1,
		from:  core1_0.ImageLayoutTransferDstOptimal,
		to:    core1_0.ImageLayoutShaderReadOnlyOptimal,
	})

	return steps
}

// cmdGenerateMipmaps records planMipmaps for every layer of image at once.
func cmdGenerateMipmaps(driver core1_0.DeviceDriver, commandBuffer core1_0.CommandBuffer, image core1_0.Image, format core1_0.Format, width, height, levels, layers int) error {
	for _, step := range planMipmaps(width, height, levels) {
		if step.kind == mipBarrier {
			err := cmdTransition(driver, commandBuffer, image, format, step.from, step.to, subresource{
				baseMip:   step.level,
				mipLevels: 1,
				layers:    layers,
			})
			if err != nil {
				return err
			}
			continue
		}

		err := driver.CmdBlitImage(commandBuffer, image, core1_0.ImageLayoutTransferSrcOptimal, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       step.level - 1,
					BaseArrayLayer: 0,
					LayerCount:     layers,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: step.srcWidth, Y: step.srcHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       step.level,
					BaseArrayLayer: 0,
					LayerCount:     layers,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: step.dstWidth, Y: step.dstHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return err
		}
	}

	return nil
}
