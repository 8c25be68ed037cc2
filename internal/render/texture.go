package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/scop/internal/asset"
)

const textureFormat = core1_0.FormatR8G8B8A8SRGB

// Texture is an image with its memory and view. Sampler is set only on
// textures read from shaders; attachments have none.
type Texture struct {
	Image   core1_0.Image
	Memory  core1_0.DeviceMemory
	View    core1_0.ImageView
	Sampler core1_0.Sampler

	Format    core1_0.Format
	Width     int
	Height    int
	MipLevels int
	Layers    int
}

// Sampled reports whether the texture can be bound as a combined image
// sampler.
func (t *Texture) Sampled() bool {
	return t != nil && t.Sampler.Initialized()
}

func (t *Texture) Destroy(driver core1_0.DeviceDriver) {
	if t == nil {
		return
	}

	if t.Sampler.Initialized() {
		driver.DestroySampler(t.Sampler, nil)
		t.Sampler = core1_0.Sampler{}
	}

	if t.View.Initialized() {
		driver.DestroyImageView(t.View, nil)
		t.View = core1_0.ImageView{}
	}

	if t.Image.Initialized() {
		driver.DestroyImage(t.Image, nil)
		t.Image = core1_0.Image{}
	}

	if t.Memory.Initialized() {
		driver.FreeMemory(t.Memory, nil)
		t.Memory = core1_0.DeviceMemory{}
	}
}

func createImageView(driver core1_0.DeviceDriver, image core1_0.Image, viewType core1_0.ImageViewType, format core1_0.Format, aspect core1_0.ImageAspectFlags, mipLevels, layers int) (core1_0.ImageView, error) {
	imageView, _, err := driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	})
	if err != nil {
		return core1_0.ImageView{}, errors.Wrap(err, "failed to create image view")
	}
	return imageView, nil
}

// TextureLoader turns RGBA8 pixels into sampled, fully mipmapped textures.
type TextureLoader struct {
	device    *DeviceContext
	allocator *Allocator
}

func NewTextureLoader(device *DeviceContext, allocator *Allocator) *TextureLoader {
	return &TextureLoader{device: device, allocator: allocator}
}

// LoadTexture uploads a single 2D RGBA8 image.
func (l *TextureLoader) LoadTexture(pixels []byte, width, height int) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("invalid texture size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return nil, errors.Newf("texture is %dx%d but has %d bytes of pixels", width, height, len(pixels))
	}

	return l.load(pixels, width, height, 1)
}

// LoadImage uploads a decoded image.
func (l *TextureLoader) LoadImage(img asset.Image) (*Texture, error) {
	return l.LoadTexture(img.Pix, img.Width, img.Height)
}

// LoadCubemap uploads six faces as the layers of a cube image, in
// asset.CubemapFaceNames order. Faces are validated before anything is
// allocated.
func (l *TextureLoader) LoadCubemap(faces [asset.CubemapFaceCount]asset.Image) (*Texture, error) {
	err := asset.ValidateCubemapFaces(faces)
	if err != nil {
		return nil, err
	}

	faceSize := faces[0].Size()
	pixels := make([]byte, 0, faceSize*asset.CubemapFaceCount)
	for _, face := range faces {
		pixels = append(pixels, face.Pix...)
	}

	return l.load(pixels, faces[0].Width, faces[0].Height, asset.CubemapFaceCount)
}

func (l *TextureLoader) load(pixels []byte, width, height, layers int) (*Texture, error) {
	features := l.device.optimalTilingFeatures(textureFormat)
	if (features & core1_0.FormatFeatureSampledImageFilterLinear) == 0 {
		return nil, errors.Newf("texture image format %s does not support linear blitting", textureFormat)
	}

	// Layer i starts at faceSize * i.
	staging, err := l.allocator.Stage(pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(l.allocator.driver)

	tex := &Texture{
		Format:    textureFormat,
		Width:     width,
		Height:    height,
		MipLevels: MipLevels(width, height),
		Layers:    layers,
	}

	var flags core1_0.ImageCreateFlags
	viewType := core1_0.ImageViewType2D
	if layers == asset.CubemapFaceCount {
		flags = core1_0.ImageCreateCubeCompatible
		viewType = core1_0.ImageViewTypeCube
	}

	tex.Image, tex.Memory, err = l.allocator.CreateImage(ImageSpec{
		Width:     width,
		Height:    height,
		MipLevels: tex.MipLevels,
		Layers:    layers,
		Samples:   core1_0.Samples1,
		Format:    textureFormat,
		Tiling:    core1_0.ImageTilingOptimal,
		Usage:     core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		Memory:    core1_0.MemoryPropertyDeviceLocal,
		Flags:     flags,
	})
	if err != nil {
		return nil, err
	}

	err = l.allocator.RunOneTime(func(commandBuffer core1_0.CommandBuffer) error {
		return l.cmdUpload(commandBuffer, staging, tex)
	})
	if err != nil {
		tex.Destroy(l.allocator.driver)
		return nil, errors.Wrap(err, "failed to upload texture")
	}

	tex.View, err = createImageView(l.allocator.driver, tex.Image, viewType, textureFormat, core1_0.ImageAspectColor, tex.MipLevels, layers)
	if err != nil {
		tex.Destroy(l.allocator.driver)
		return nil, err
	}

	tex.Sampler, err = l.createSampler(tex.MipLevels)
	if err != nil {
		tex.Destroy(l.allocator.driver)
		return nil, err
	}

	Logger().Debug("texture uploaded",
		"width", width,
		"height", height,
		"layers", layers,
		"mipLevels", tex.MipLevels)

	return tex, nil
}

func (l *TextureLoader) cmdUpload(commandBuffer core1_0.CommandBuffer, staging *Buffer, tex *Texture) error {
	driver := l.allocator.driver

	err := cmdTransition(driver, commandBuffer, tex.Image, tex.Format, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, subresource{
		mipLevels: tex.MipLevels,
		layers:    tex.Layers,
	})
	if err != nil {
		return err
	}

	err = driver.CmdCopyBufferToImage(commandBuffer, staging.Handle, tex.Image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     tex.Layers,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: tex.Width, Height: tex.Height, Depth: 1},
		},
	)
	if err != nil {
		return err
	}

	return cmdGenerateMipmaps(driver, commandBuffer, tex.Image, tex.Format, tex.Width, tex.Height, tex.MipLevels, tex.Layers)
}

func (l *TextureLoader) createSampler(mipLevels int) (core1_0.Sampler, error) {
	sampler, _, err := l.allocator.driver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    l.device.properties.Limits.MaxSamplerAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     float32(mipLevels),
	})
	if err != nil {
		return core1_0.Sampler{}, errors.Wrap(err, "failed to create sampler")
	}
	return sampler, nil
}

// ReadbackLevel0 copies mip level 0 of one layer back to host memory. The
// texture is left in SHADER_READ_ONLY layout.
func (l *TextureLoader) ReadbackLevel0(tex *Texture, layer int) ([]byte, error) {
	if layer < 0 || layer >= tex.Layers {
		return nil, errors.Newf("layer %d out of range, texture has %d", layer, tex.Layers)
	}

	size := tex.Width * tex.Height * 4
	readback, err := l.allocator.CreateBuffer(size, core1_0.BufferUsageTransferDst, hostVisible)
	if err != nil {
		return nil, err
	}
	defer readback.Destroy(l.allocator.driver)

	driver := l.allocator.driver
	level0 := subresource{mipLevels: 1, baseLayer: layer, layers: 1}
	err = l.allocator.RunOneTime(func(commandBuffer core1_0.CommandBuffer) error {
		err := cmdTransition(driver, commandBuffer, tex.Image, tex.Format, core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.ImageLayoutTransferSrcOptimal, level0)
		if err != nil {
			return err
		}

		err = driver.CmdCopyImageToBuffer(commandBuffer, tex.Image, core1_0.ImageLayoutTransferSrcOptimal, readback.Handle,
			core1_0.BufferImageCopy{
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: layer,
					LayerCount:     1,
				},
				ImageExtent: core1_0.Extent3D{Width: tex.Width, Height: tex.Height, Depth: 1},
			},
		)
		if err != nil {
			return err
		}

		return cmdTransition(driver, commandBuffer, tex.Image, tex.Format, core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, level0)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read texture back")
	}

	return readData(driver, readback.Memory, 0, size)
}
