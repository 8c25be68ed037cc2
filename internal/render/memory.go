package render

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const hostVisible = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

// Buffer is a buffer bound to its own allocation. Size is the allocation
// size, which can exceed the requested size.
type Buffer struct {
	Handle core1_0.Buffer
	Memory core1_0.DeviceMemory
	Size   int
}

func (b *Buffer) Destroy(driver core1_0.DeviceDriver) {
	if b == nil {
		return
	}

	if b.Handle.Initialized() {
		driver.DestroyBuffer(b.Handle, nil)
		b.Handle = core1_0.Buffer{}
	}

	if b.Memory.Initialized() {
		driver.FreeMemory(b.Memory, nil)
		b.Memory = core1_0.DeviceMemory{}
	}
}

// ImageSpec describes an image for Allocator.CreateImage.
type ImageSpec struct {
	Width     int
	Height    int
	MipLevels int
	Layers    int
	Samples   core1_0.SampleCountFlags
	Format    core1_0.Format
	Tiling    core1_0.ImageTiling
	Usage     core1_0.ImageUsageFlags
	Memory    core1_0.MemoryPropertyFlags
	Flags     core1_0.ImageCreateFlags
}

// Allocator creates buffers and images bound to dedicated device memory and
// runs staged uploads through a transient command pool.
type Allocator struct {
	driver      core1_0.DeviceDriver
	memoryTypes []core1_0.MemoryPropertyFlags
	queue       core1_0.Queue
	pool        core1_0.CommandPool
}

func NewAllocator(device *DeviceContext) (*Allocator, error) {
	pool, _, err := device.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateTransient,
		QueueFamilyIndex: device.graphicsFamily,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transient command pool")
	}

	return &Allocator{
		driver:      device.deviceDriver,
		memoryTypes: device.memoryTypes,
		queue:       device.graphicsQueue,
		pool:        pool,
	}, nil
}

func (a *Allocator) Destroy() {
	if a == nil {
		return
	}

	if a.pool.Initialized() {
		a.driver.DestroyCommandPool(a.pool, nil)
		a.pool = core1_0.CommandPool{}
	}
}

// CreateBuffer creates a buffer whose memory has every flag in properties.
// Nothing is left allocated on failure.
func (a *Allocator) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*Buffer, error) {
	buffer, _, err := a.driver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create buffer of %d bytes", size)
	}
	result := &Buffer{Handle: buffer}

	memRequirements := a.driver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := findMemoryType(a.memoryTypes, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		result.Destroy(a.driver)
		return nil, err
	}

	result.Memory, _, err = a.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		result.Destroy(a.driver)
		return nil, errors.Wrapf(err, "failed to allocate %d bytes of buffer memory", memRequirements.Size)
	}
	result.Size = memRequirements.Size

	_, err = a.driver.BindBufferMemory(buffer, result.Memory, 0)
	if err != nil {
		result.Destroy(a.driver)
		return nil, errors.Wrap(err, "failed to bind buffer memory")
	}

	return result, nil
}

// CreateImage creates an image and binds it to memory with the requested
// properties.
func (a *Allocator) CreateImage(spec ImageSpec) (core1_0.Image, core1_0.DeviceMemory, error) {
	layers := spec.Layers
	if layers < 1 {
		layers = 1
	}

	image, _, err := a.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		Flags:     spec.Flags,
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     spec.MipLevels,
		ArrayLayers:   layers,
		Format:        spec.Format,
		Tiling:        spec.Tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         spec.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       spec.Samples,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, errors.Wrapf(err, "failed to create %dx%d image", spec.Width, spec.Height)
	}

	memReqs := a.driver.GetImageMemoryRequirements(image)
	memoryIndex, err := findMemoryType(a.memoryTypes, memReqs.MemoryTypeBits, spec.Memory)
	if err != nil {
		a.driver.DestroyImage(image, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	imageMemory, _, err := a.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		a.driver.DestroyImage(image, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, errors.Wrapf(err, "failed to allocate %d bytes of image memory", memReqs.Size)
	}

	_, err = a.driver.BindImageMemory(image, imageMemory, 0)
	if err != nil {
		a.driver.DestroyImage(image, nil)
		a.driver.FreeMemory(imageMemory, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, errors.Wrap(err, "failed to bind image memory")
	}

	return image, imageMemory, nil
}

// encode lays data out the way the GPU reads it. Byte slices are passed
// through untouched.
func encode(data any) ([]byte, error) {
	if raw, ok := data.([]byte); ok {
		return raw, nil
	}

	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %T", data)
	}
	return buf.Bytes(), nil
}

// writeData maps memory and copies the encoding of data to offset.
func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	encoded, err := encode(data)
	if err != nil {
		return err
	}

	memoryPtr, _, err := driver.MapMemory(memory, offset, len(encoded), 0)
	if err != nil {
		return errors.Wrap(err, "failed to map memory")
	}
	defer driver.UnmapMemory(memory)

	copy(unsafe.Slice((*byte)(memoryPtr), len(encoded)), encoded)
	return nil
}

// readData maps size bytes at offset and returns a copy of them.
func readData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset, size int) ([]byte, error) {
	memoryPtr, _, err := driver.MapMemory(memory, offset, size, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to map memory")
	}
	defer driver.UnmapMemory(memory)

	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(memoryPtr), size))
	return out, nil
}
