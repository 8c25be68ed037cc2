package render

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/scop/internal/asset"
	"github.com/vkngwrapper/scop/internal/camera"
)

// ErrFatal marks failures that leave the render core unable to draw, as
// opposed to asset errors that keep the current texture or model. Check with
// errors.Is.
var ErrFatal = errors.New("render core failure")

func fatal(err error) error {
	return errors.Mark(err, ErrFatal)
}

// parkedGeometry holds pipeline geometry while the pipelines themselves are
// being rebuilt.
type parkedGeometry struct {
	model  *Geometry
	skybox *Geometry
}

func (p *parkedGeometry) destroy(driver core1_0.DeviceDriver) {
	p.model.Destroy(driver)
	p.skybox.Destroy(driver)
	*p = parkedGeometry{}
}

// Core is the render core of the viewer: one textured model drawn over an
// optional cubemap skybox into a window surface. All methods must be called
// from the thread that created it.
type Core struct {
	cfg     Config
	shaders Shaders

	device      *DeviceContext
	allocator   *Allocator
	textures    *TextureLoader
	cache       *PipelineCache
	descriptors *DescriptorManager
	recorder    *CommandRecorder
	frames      *FrameScheduler

	swapchain *Swapchain
	status    swapchainStatus
	model     *Pipeline
	skybox    *Pipeline
	parked    parkedGeometry

	modelTexture  *Texture
	skyboxTexture *Texture

	transforms    *camera.Transforms
	skyboxVisible bool
}

// New brings up the render core for a surface of width x height, showing
// mesh textured with the image at imagePath. The skybox is read from
// cfg.SkyboxDir. On error everything created so far is released.
func New(cfg Config, surface Surface, width, height int, imagePath string, mesh *asset.Mesh, shaders Shaders) (*Core, error) {
	if surface == nil {
		return nil, errors.New("render core needs a surface")
	}

	c := &Core{
		cfg:           cfg,
		shaders:       shaders,
		skyboxVisible: true,
	}

	err := c.init(surface, width, height, imagePath, mesh)
	if err != nil {
		c.Destroy()
		return nil, err
	}

	return c, nil
}

func (c *Core) init(surface Surface, width, height int, imagePath string, mesh *asset.Mesh) error {
	if mesh == nil {
		return errors.New("render core needs a mesh")
	}

	loader, err := surface.Loader()
	if err != nil {
		return errors.Wrap(err, "vulkan loader")
	}

	c.device, err = NewDeviceContext(c.cfg, loader, surface)
	if err != nil {
		return err
	}

	c.allocator, err = NewAllocator(c.device)
	if err != nil {
		return err
	}
	c.textures = NewTextureLoader(c.device, c.allocator)

	img, err := asset.LoadImage(imagePath)
	if err != nil {
		return err
	}
	c.modelTexture, err = c.textures.LoadImage(img.FlipVertical())
	if err != nil {
		return errors.Wrap(err, "model texture")
	}

	faces, err := asset.LoadCubemap(context.Background(), asset.CubemapPaths(c.cfg.SkyboxDir))
	if err != nil {
		return errors.Wrap(err, "skybox")
	}
	c.skyboxTexture, err = c.textures.LoadCubemap(faces)
	if err != nil {
		return errors.Wrap(err, "skybox texture")
	}

	c.parked.model, err = UploadGeometry(c.allocator, mesh)
	if err != nil {
		return errors.Wrap(err, "model geometry")
	}
	c.parked.skybox, err = UploadGeometry(c.allocator, asset.SkyboxCube())
	if err != nil {
		return errors.Wrap(err, "skybox geometry")
	}

	c.cache, err = OpenPipelineCache(c.device, c.cfg.PipelineCachePath)
	if err != nil {
		return err
	}

	c.descriptors, err = NewDescriptorManager(c.device, c.allocator)
	if err != nil {
		return err
	}

	c.recorder, err = NewCommandRecorder(c.device)
	if err != nil {
		return err
	}

	c.frames, err = NewFrameScheduler(c.device)
	if err != nil {
		return err
	}

	c.transforms = camera.New(mesh.Min, mesh.Max)

	return c.createSwapchainResources(width, height)
}

// createSwapchainResources builds the swapchain, both pipelines and the
// per-image resources, attaches parked geometry and records command buffers.
// On error nothing swapchain-dependent is left and the geometry is parked.
func (c *Core) createSwapchainResources(width, height int) error {
	err := c.buildSwapchainResources(width, height)
	if err != nil {
		c.destroySwapchainResources()
		return err
	}
	return nil
}

func (c *Core) buildSwapchainResources(width, height int) error {
	var err error
	c.swapchain, err = NewSwapchain(c.device, c.allocator, width, height)
	if err != nil {
		return err
	}

	builder := newPipelineBuilder(c.device, c.swapchain, c.descriptors.Layout(), c.cache)

	c.skybox, err = builder.Build(PipelineSpec{
		Name:     "skybox",
		Shaders:  c.shaders.Skybox,
		CullMode: core1_0.CullModeBack,
	})
	if err != nil {
		return err
	}

	c.model, err = builder.Build(PipelineSpec{
		Name:     "model",
		Shaders:  c.shaders.Model,
		CullMode: core1_0.CullModeFlags(0),
	})
	if err != nil {
		return err
	}

	c.model.Attach(c.parked.model)
	c.skybox.Attach(c.parked.skybox)
	c.parked = parkedGeometry{}

	err = c.descriptors.Rebuild(c.swapchain.ImageCount(), c.modelTexture, c.skyboxTexture)
	if err != nil {
		return err
	}

	c.frames.Reset(c.swapchain.ImageCount())

	return c.record()
}

func (c *Core) destroySwapchainResources() {
	driver := c.device.deviceDriver

	if c.model != nil {
		if g := c.model.Detach(); g != nil {
			c.parked.model = g
		}
		c.model.Destroy(driver)
		c.model = nil
	}
	if c.skybox != nil {
		if g := c.skybox.Detach(); g != nil {
			c.parked.skybox = g
		}
		c.skybox.Destroy(driver)
		c.skybox = nil
	}

	// Buffers and sets reference the framebuffers and pipelines above.
	c.recorder.free()
	c.descriptors.destroyPerImage()

	c.swapchain.Destroy(c.device)
	c.swapchain = nil
}

// pipelines lists what the command buffers draw, in order.
func (c *Core) pipelines() []*Pipeline {
	return drawOrder(c.model, c.skybox, c.skyboxVisible)
}

// record re-records every command buffer. A failure leaves no buffers and
// a dirty swapchain, so the next Frame rebuilds before drawing.
func (c *Core) record() error {
	err := c.recorder.RecordAll(c.swapchain, c.descriptors, c.pipelines())
	if err != nil {
		c.status.markDirty()
		return fatal(errors.Wrap(err, "failed to record command buffers"))
	}
	return nil
}

// RecreateSwapchain rebuilds everything that depends on the surface size.
// Geometry and textures survive.
func (c *Core) RecreateSwapchain(width, height int) error {
	err := c.device.WaitIdle()
	if err != nil {
		return fatal(err)
	}

	c.destroySwapchainResources()

	err = c.createSwapchainResources(width, height)
	if err != nil {
		return fatal(errors.Wrap(err, "failed to recreate swapchain"))
	}
	return nil
}

// Resized marks the swapchain as out of date. The next Frame rebuilds it.
func (c *Core) Resized() {
	c.status.markDirty()
}

// DrawFrame renders and presents one frame. It reports stale when the
// swapchain has to be rebuilt before the next frame, including when there is
// no complete set of command buffers to submit.
func (c *Core) DrawFrame() (stale bool, err error) {
	if c.swapchain == nil || c.recorder.Count() != c.swapchain.ImageCount() {
		c.status.markDirty()
		return true, nil
	}

	stale, err = c.frames.Draw(c.swapchain, c.recorder, func(imageIndex int) error {
		ubo := newUniformBufferObject(c.transforms, c.swapchain.Extent.Width, c.swapchain.Extent.Height)
		return c.descriptors.WriteUniform(imageIndex, &ubo)
	})
	if err != nil {
		c.status.markDirty()
		return false, fatal(err)
	}

	if stale {
		c.status.markDirty()
	}
	return stale, nil
}

// Frame runs one iteration of the present loop for a drawable of
// width x height: rebuild the swapchain if it is dirty, skip while the area
// is zero, draw otherwise.
func (c *Core) Frame(width, height int) error {
	switch c.status.next(width, height) {
	case frameSkip:
		return nil
	case frameRecreate:
		err := c.RecreateSwapchain(width, height)
		c.status.recreated(err)
		if err != nil {
			return err
		}
		Logger().Debug("swapchain recreated", "width", width, "height", height)
	}

	_, err := c.DrawFrame()
	return err
}

// LoadNewTexture replaces the model texture with the image at path. On error
// the current texture stays bound.
func (c *Core) LoadNewTexture(path string) error {
	img, err := asset.LoadImage(path)
	if err != nil {
		return err
	}

	tex, err := c.textures.LoadImage(img.FlipVertical())
	if err != nil {
		return err
	}

	err = c.device.WaitIdle()
	if err != nil {
		tex.Destroy(c.device.deviceDriver)
		return fatal(err)
	}

	err = c.descriptors.RebindTexture(tex)
	if err != nil {
		tex.Destroy(c.device.deviceDriver)
		return fatal(err)
	}

	c.modelTexture.Destroy(c.device.deviceDriver)
	c.modelTexture = tex

	Logger().Info("texture loaded", "path", path, "width", tex.Width, "height", tex.Height)

	if c.swapchain == nil {
		return nil
	}
	return c.record()
}

// LoadNewModel replaces the model geometry and reframes the camera around
// it. On error the current model stays.
func (c *Core) LoadNewModel(mesh *asset.Mesh) error {
	geometry, err := UploadGeometry(c.allocator, mesh)
	if err != nil {
		return err
	}

	err = c.device.WaitIdle()
	if err != nil {
		geometry.Destroy(c.device.deviceDriver)
		return fatal(err)
	}

	if c.model == nil {
		c.parked.model.Destroy(c.device.deviceDriver)
		c.parked.model = geometry
	} else {
		c.model.ReplaceGeometry(c.device.deviceDriver, geometry)
	}

	c.transforms.Reframe(mesh.Min, mesh.Max)
	c.transforms.Reset()

	Logger().Info("model loaded", "vertices", len(mesh.Vertices), "indices", len(mesh.Indices))

	if c.swapchain == nil {
		return nil
	}
	return c.record()
}

// SetSkyboxVisible shows or hides the skybox.
func (c *Core) SetSkyboxVisible(visible bool) error {
	if visible == c.skyboxVisible {
		return nil
	}

	err := c.device.WaitIdle()
	if err != nil {
		return fatal(err)
	}

	c.skyboxVisible = visible
	if c.swapchain == nil {
		return nil
	}
	return c.record()
}

// SkyboxVisible reports whether the skybox is part of the recorded frame.
func (c *Core) SkyboxVisible() bool {
	return c.skyboxVisible
}

// ResetTransforms puts the model and camera back where they started.
func (c *Core) ResetTransforms() {
	c.transforms.Reset()
}

// Transforms gives access to the camera state used for the next frame.
func (c *Core) Transforms() *camera.Transforms {
	return c.transforms
}

// Extent is the current swapchain size, zero while there is no swapchain.
func (c *Core) Extent() core1_0.Extent2D {
	if c.swapchain == nil {
		return core1_0.Extent2D{}
	}
	return c.swapchain.Extent
}

// WaitIdle blocks until the GPU has finished every submitted frame.
func (c *Core) WaitIdle() error {
	if c.device == nil {
		return nil
	}
	return c.device.WaitIdle()
}

// Destroy waits for the device, saves the pipeline cache and releases
// everything in reverse creation order. Safe to call more than once.
func (c *Core) Destroy() {
	if c.device == nil {
		return
	}

	err := c.device.WaitIdle()
	if err != nil {
		Logger().Error("wait idle before teardown", "error", err)
	}

	if c.device.deviceDriver != nil {
		c.destroySwapchainResources()
		c.parked.destroy(c.device.deviceDriver)

		c.frames.Destroy()
		c.recorder.Destroy()
		c.descriptors.Destroy()

		err = c.cache.Save()
		if err != nil {
			Logger().Warn("pipeline cache not saved", "error", err)
		}
		c.cache.Destroy()

		c.skyboxTexture.Destroy(c.device.deviceDriver)
		c.modelTexture.Destroy(c.device.deviceDriver)
		c.allocator.Destroy()
	}

	c.device.Destroy()
	c.device = nil
}
