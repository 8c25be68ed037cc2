package render

import (
	"testing"

	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{512, 512, 10},
		{1024, 512, 10},
		{512, 1024, 10},
		{640, 480, 9},
		{1, 1, 1},
		{3, 200, 2},
		{0, 16, 1},
	}
	for _, tt := range tests {
		if got := MipLevels(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevels(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestPlanMipmaps(t *testing.T) {
	const levels = 4
	steps := planMipmaps(8, 6, levels)

	// Three commands per generated level plus the last level's barrier.
	if want := 3*(levels-1) + 1; len(steps) != want {
		t.Fatalf("planMipmaps() has %d steps, want %d", len(steps), want)
	}

	wantSizes := [][4]int{
		{8, 6, 4, 3},
		{4, 3, 2, 1},
		{2, 1, 1, 1},
	}

	for level := 1; level < levels; level++ {
		group := steps[3*(level-1) : 3*level]

		toSrc, blit, toRead := group[0], group[1], group[2]
		if toSrc.kind != mipBarrier || toSrc.level != level-1 ||
			toSrc.from != core1_0.ImageLayoutTransferDstOptimal || toSrc.to != core1_0.ImageLayoutTransferSrcOptimal {
			t.Errorf("level %d: first step = %+v, want level %d DST->SRC", level, toSrc, level-1)
		}
		if blit.kind != mipBlit || blit.level != level {
			t.Errorf("level %d: second step = %+v, want blit into %d", level, blit, level)
		}
		got := [4]int{blit.srcWidth, blit.srcHeight, blit.dstWidth, blit.dstHeight}
		if got != wantSizes[level-1] {
			t.Errorf("level %d: blit sizes = %v, want %v", level, got, wantSizes[level-1])
		}
		if toRead.kind != mipBarrier || toRead.level != level-1 ||
			toRead.from != core1_0.ImageLayoutTransferSrcOptimal || toRead.to != core1_0.ImageLayoutShaderReadOnlyOptimal {
			t.Errorf("level %d: third step = %+v, want level %d SRC->SHADER_READ", level, toRead, level-1)
		}
	}

	last := steps[len(steps)-1]
	if last.kind != mipBarrier || last.level != levels-1 ||
		last.from != core1_0.ImageLayoutTransferDstOptimal || last.to != core1_0.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("last step = %+v, want level %d DST->SHADER_READ", last, levels-1)
	}
}

func TestPlanMipmapsEndsEveryLevelReadable(t *testing.T) {
	for _, size := range [][2]int{{512, 512}, {300, 17}, {1, 1}} {
		levels := MipLevels(size[0], size[1])
		state := make([]core1_0.ImageLayout, levels)
		for i := range state {
			state[i] = core1_0.ImageLayoutTransferDstOptimal
		}

		for _, step := range planMipmaps(size[0], size[1], levels) {
			if step.kind != mipBarrier {
				continue
			}
			if state[step.level] != step.from {
				t.Fatalf("%v: level %d is %v, barrier expects %v", size, step.level, state[step.level], step.from)
			}
			if _, err := layoutTransition(step.from, step.to); err != nil {
				t.Fatalf("%v: %v", size, err)
			}
			state[step.level] = step.to
		}

		for level, layout := range state {
			if layout != core1_0.ImageLayoutShaderReadOnlyOptimal {
				t.Errorf("%v: level %d ends in %v", size, level, layout)
			}
		}
	}
}
