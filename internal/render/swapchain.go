package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type swapchainSupport struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func chooseSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func choosePresentMode(availablePresentModes []khr_surface.PresentMode, preferMailbox bool) khr_surface.PresentMode {
	if !preferMailbox {
		return khr_surface.PresentModeFIFO
	}

	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	// FIFO is the only mode every surface has to support.
	return khr_surface.PresentModeFIFO
}

// chooseExtent uses the surface extent unless the surface lets the swapchain
// decide, in which case the drawable size is clamped to the allowed range.
func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width = max(capabilities.MinImageExtent.Width, min(width, capabilities.MaxImageExtent.Width))
	height = max(capabilities.MinImageExtent.Height, min(height, capabilities.MaxImageExtent.Height))

	return core1_0.Extent2D{Width: width, Height: height}
}

func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// Swapchain holds everything whose size or count follows the surface: the
// presentable images and their views, the render pass, the multisampled
// color and depth attachments and one framebuffer per image. It is only ever
// built and destroyed as a whole.
type Swapchain struct {
	handle khr_swapchain.Swapchain

	Format      core1_0.Format
	PresentMode khr_surface.PresentMode
	Extent      core1_0.Extent2D

	Images       []core1_0.Image
	Views        []core1_0.ImageView
	RenderPass   core1_0.RenderPass
	Color        *Texture
	Depth        *Texture
	Framebuffers []core1_0.Framebuffer
}

// NewSwapchain builds a swapchain for a drawable of width x height.
func NewSwapchain(device *DeviceContext, allocator *Allocator, width, height int) (*Swapchain, error) {
	if device.headless() {
		return nil, errors.New("cannot create a swapchain on a headless device")
	}

	s := &Swapchain{}
	err := s.build(device, allocator, width, height)
	if err != nil {
		s.Destroy(device)
		return nil, err
	}

	Logger().Info("swapchain created",
		"width", s.Extent.Width,
		"height", s.Extent.Height,
		"images", len(s.Images),
		"presentMode", s.PresentMode)

	return s, nil
}

func (s *Swapchain) build(device *DeviceContext, allocator *Allocator, width, height int) error {
	err := s.createSwapchain(device, width, height)
	if err != nil {
		return err
	}

	err = s.createImageViews(device)
	if err != nil {
		return err
	}

	err = s.createRenderPass(device)
	if err != nil {
		return err
	}

	err = s.createColorResources(device, allocator)
	if err != nil {
		return err
	}

	err = s.createDepthResources(device, allocator)
	if err != nil {
		return err
	}

	return s.createFramebuffers(device)
}

func (s *Swapchain) createSwapchain(device *DeviceContext, width, height int) error {
	support, err := device.querySwapchainSupport(device.physicalDevice)
	if err != nil {
		return err
	}

	surfaceFormat := chooseSurfaceFormat(support.Formats)
	presentMode := choosePresentMode(support.PresentModes, device.cfg.PreferMailbox)
	extent := chooseExtent(support.Capabilities, width, height)

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	if device.graphicsFamily != device.presentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, device.graphicsFamily, device.presentFamily)
	}

	swapchain, _, err := device.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: device.surface,

		MinImageCount:    chooseImageCount(support.Capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create swapchain")
	}

	s.handle = swapchain
	s.Extent = extent
	s.Format = surfaceFormat.Format
	s.PresentMode = presentMode
	return nil
}

func (s *Swapchain) createImageViews(device *DeviceContext) error {
	images, _, err := device.swapchainExtension.GetSwapchainImages(s.handle)
	if err != nil {
		return errors.Wrap(err, "failed to get swapchain images")
	}
	s.Images = images

	for _, image := range images {
		view, err := createImageView(device.deviceDriver, image, core1_0.ImageViewType2D, s.Format, core1_0.ImageAspectColor, 1, 1)
		if err != nil {
			return err
		}

		s.Views = append(s.Views, view)
	}

	return nil
}

func (s *Swapchain) createRenderPass(device *DeviceContext) error {
	renderPass, _, err := device.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         s.Format,
				Samples:        device.msaaSamples,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutColorAttachmentOptimal,
			},
			{
				Format:         device.depthFormat,
				Samples:        device.msaaSamples,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
			{
				Format:         s.Format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpDontCare,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				ResolveAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 2,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create render pass")
	}

	s.RenderPass = renderPass
	return nil
}

// createAttachment allocates a single-level, device-local image of the
// swapchain size and moves it into layout.
func (s *Swapchain) createAttachment(device *DeviceContext, allocator *Allocator, format core1_0.Format, usage core1_0.ImageUsageFlags, layout core1_0.ImageLayout) (*Texture, error) {
	tex := &Texture{
		Format:    format,
		Width:     s.Extent.Width,
		Height:    s.Extent.Height,
		MipLevels: 1,
		Layers:    1,
	}

	var err error
	tex.Image, tex.Memory, err = allocator.CreateImage(ImageSpec{
		Width:     s.Extent.Width,
		Height:    s.Extent.Height,
		MipLevels: 1,
		Layers:    1,
		Samples:   device.msaaSamples,
		Format:    format,
		Tiling:    core1_0.ImageTilingOptimal,
		Usage:     usage,
		Memory:    core1_0.MemoryPropertyDeviceLocal,
	})
	if err != nil {
		return nil, err
	}

	tex.View, err = createImageView(device.deviceDriver, tex.Image, core1_0.ImageViewType2D, format, aspectMask(format, layout), 1, 1)
	if err != nil {
		tex.Destroy(device.deviceDriver)
		return nil, err
	}

	err = allocator.TransitionImageLayout(tex.Image, format, core1_0.ImageLayoutUndefined, layout, 1, 1)
	if err != nil {
		tex.Destroy(device.deviceDriver)
		return nil, err
	}

	return tex, nil
}

func (s *Swapchain) createColorResources(device *DeviceContext, allocator *Allocator) error {
	var err error
	s.Color, err = s.createAttachment(device, allocator, s.Format,
		core1_0.ImageUsageTransientAttachment|core1_0.ImageUsageColorAttachment,
		core1_0.ImageLayoutColorAttachmentOptimal)
	if err != nil {
		return errors.Wrap(err, "color attachment")
	}
	return nil
}

func (s *Swapchain) createDepthResources(device *DeviceContext, allocator *Allocator) error {
	var err error
	s.Depth, err = s.createAttachment(device, allocator, device.depthFormat,
		core1_0.ImageUsageDepthStencilAttachment,
		core1_0.ImageLayoutDepthStencilAttachmentOptimal)
	if err != nil {
		return errors.Wrap(err, "depth attachment")
	}
	return nil
}

func (s *Swapchain) createFramebuffers(device *DeviceContext) error {
	for _, imageView := range s.Views {
		framebuffer, _, err := device.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: s.RenderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				s.Color.View,
				s.Depth.View,
				imageView,
			},
			Width:  s.Extent.Width,
			Height: s.Extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create framebuffer")
		}

		s.Framebuffers = append(s.Framebuffers, framebuffer)
	}

	return nil
}

// ImageCount is the number of presentable images, and so the number of
// framebuffers, uniform buffers, descriptor sets and command buffers.
func (s *Swapchain) ImageCount() int {
	return len(s.Images)
}

// Destroy releases every swapchain resource. Safe on a partially built
// swapchain and more than once.
func (s *Swapchain) Destroy(device *DeviceContext) {
	if s == nil {
		return
	}
	driver := device.deviceDriver

	for _, framebuffer := range s.Framebuffers {
		driver.DestroyFramebuffer(framebuffer, nil)
	}
	s.Framebuffers = nil

	s.Depth.Destroy(driver)
	s.Depth = nil
	s.Color.Destroy(driver)
	s.Color = nil

	if s.RenderPass.Initialized() {
		driver.DestroyRenderPass(s.RenderPass, nil)
		s.RenderPass = core1_0.RenderPass{}
	}

	for _, imageView := range s.Views {
		driver.DestroyImageView(imageView, nil)
	}
	s.Views = nil
	s.Images = nil

	if s.handle.Initialized() {
		device.swapchainExtension.DestroySwapchain(s.handle, nil)
		s.handle = khr_swapchain.Swapchain{}
	}
}
