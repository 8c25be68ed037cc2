// Package window wraps an SDL2 window that doubles as the Vulkan surface
// source for the render core.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

type Options struct {
	Title  string
	Width  int
	Height int
	// Hidden creates the window without showing it, for tests.
	Hidden bool
}

// Window is an SDL window created with Vulkan support.
type Window struct {
	handle     *sdl.Window
	fullscreen bool
}

// Open initializes SDL video and creates a resizable Vulkan window.
func Open(opts Options) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "failed to initialize sdl")
	}

	flags := uint32(sdl.WINDOW_VULKAN | sdl.WINDOW_RESIZABLE)
	if opts.Hidden {
		flags |= sdl.WINDOW_HIDDEN
	} else {
		flags |= sdl.WINDOW_SHOWN
	}

	handle, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED, int32(opts.Width), int32(opts.Height), flags)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "failed to create window")
	}

	return &Window{handle: handle}, nil
}

// Loader returns the Vulkan global driver SDL loaded for this window.
func (w *Window) Loader() (core1_0.GlobalDriver, error) {
	driver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load vulkan")
	}
	return driver, nil
}

func (w *Window) InstanceExtensions() []string {
	return w.handle.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instance, surfaceExtension, w.handle)
}

// DrawableSize is the window size in pixels, which differs from the window
// size on high-DPI displays.
func (w *Window) DrawableSize() (width, height int) {
	dw, dh := w.handle.VulkanGetDrawableSize()
	return int(dw), int(dh)
}

// Size is the window size in screen coordinates, the space mouse events use.
func (w *Window) Size() (width, height int) {
	sw, sh := w.handle.GetSize()
	return int(sw), int(sh)
}

func (w *Window) SetTitle(title string) {
	w.handle.SetTitle(title)
}

// Minimized reports whether the window is currently iconified.
func (w *Window) Minimized() bool {
	return w.handle.GetFlags()&sdl.WINDOW_MINIMIZED != 0
}

// ToggleFullscreen switches between windowed and desktop fullscreen.
func (w *Window) ToggleFullscreen() error {
	var flags uint32
	if !w.fullscreen {
		flags = sdl.WINDOW_FULLSCREEN_DESKTOP
	}

	err := w.handle.SetFullscreen(flags)
	if err != nil {
		return errors.Wrap(err, "failed to toggle fullscreen")
	}
	w.fullscreen = !w.fullscreen
	return nil
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w == nil || w.handle == nil {
		return
	}

	_ = w.handle.Destroy()
	w.handle = nil
	sdl.Quit()
}
