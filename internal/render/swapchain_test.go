package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestChooseSurfaceFormat(t *testing.T) {
	linear := khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}
	srgb := khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}

	if got := chooseSurfaceFormat([]khr_surface.SurfaceFormat{linear, srgb}); got != srgb {
		t.Errorf("chooseSurfaceFormat() = %+v, want the sRGB format", got)
	}
	if got := chooseSurfaceFormat([]khr_surface.SurfaceFormat{linear}); got != linear {
		t.Errorf("chooseSurfaceFormat() = %+v, want the first format", got)
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []khr_surface.PresentMode{khr_surface.PresentModeImmediate, khr_surface.PresentModeMailbox, khr_surface.PresentModeFIFO}
	withoutMailbox := []khr_surface.PresentMode{khr_surface.PresentModeImmediate, khr_surface.PresentModeFIFO}

	tests := []struct {
		name   string
		modes  []khr_surface.PresentMode
		prefer bool
		want   khr_surface.PresentMode
	}{
		{"mailbox offered and preferred", withMailbox, true, khr_surface.PresentModeMailbox},
		{"mailbox offered, not preferred", withMailbox, false, khr_surface.PresentModeFIFO},
		{"mailbox missing", withoutMailbox, true, khr_surface.PresentModeFIFO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := choosePresentMode(tt.modes, tt.prefer); got != tt.want {
				t.Errorf("choosePresentMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseExtent(t *testing.T) {
	fixed := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: 800, Height: 600},
		MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
	}
	if got := chooseExtent(fixed, 1024, 768); got != fixed.CurrentExtent {
		t.Errorf("chooseExtent() = %+v, want the current extent", got)
	}

	free := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: core1_0.Extent2D{Width: 2048, Height: 1024},
	}
	tests := []struct {
		w, h int
		want core1_0.Extent2D
	}{
		{1024, 768, core1_0.Extent2D{Width: 1024, Height: 768}},
		{4000, 4000, core1_0.Extent2D{Width: 2048, Height: 1024}},
		{10, 10, core1_0.Extent2D{Width: 64, Height: 64}},
	}
	for _, tt := range tests {
		if got := chooseExtent(free, tt.w, tt.h); got != tt.want {
			t.Errorf("chooseExtent(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max int
		want     int
	}{
		{2, 0, 3},
		{2, 8, 3},
		{3, 3, 3},
		{1, 2, 2},
	}
	for _, tt := range tests {
		caps := &khr_surface.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		if got := chooseImageCount(caps); got != tt.want {
			t.Errorf("chooseImageCount(min %d, max %d) = %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestNewSwapchainHeadless(t *testing.T) {
	_, err := NewSwapchain(&DeviceContext{}, nil, 800, 600)
	if err == nil {
		t.Fatal("NewSwapchain on a headless device should fail")
	}
}

func TestSwapchainDestroyNil(t *testing.T) {
	var s *Swapchain
	s.Destroy(&DeviceContext{})
}

func TestSwapchainStatus(t *testing.T) {
	var s swapchainStatus

	if got := s.next(800, 600); got != frameDraw {
		t.Fatalf("valid swapchain: next() = %v, want draw", got)
	}

	s.markDirty()
	if !s.dirty() {
		t.Fatal("markDirty did not mark the swapchain dirty")
	}

	// Minimized: stays dirty, no frame work.
	for i := 0; i < 3; i++ {
		if got := s.next(0, 600); got != frameSkip {
			t.Fatalf("zero width: next() = %v, want skip", got)
		}
		if s.state != swapchainDirty {
			t.Fatalf("zero width: state = %v, want dirty", s.state)
		}
	}
	if got := s.next(800, 0); got != frameSkip {
		t.Fatalf("zero height: next() = %v, want skip", got)
	}

	if got := s.next(1024, 768); got != frameRecreate {
		t.Fatalf("restored: next() = %v, want recreate", got)
	}
	if s.state != swapchainRecreating {
		t.Fatalf("state = %v, want recreating", s.state)
	}

	s.recreated(errors.New("out of memory"))
	if s.state != swapchainDirty {
		t.Fatalf("failed rebuild: state = %v, want dirty", s.state)
	}

	if got := s.next(1024, 768); got != frameRecreate {
		t.Fatalf("retry: next() = %v, want recreate", got)
	}
	s.recreated(nil)
	if s.dirty() {
		t.Fatalf("state = %v after a successful rebuild, want valid", s.state)
	}
	if got := s.next(1024, 768); got != frameDraw {
		t.Fatalf("next() = %v, want draw", got)
	}
}
