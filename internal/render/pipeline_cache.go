package render

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const (
	cacheHeaderSize    = 32
	cacheHeaderVersion = 1
)

// cacheHeader is the fixed prefix of Vulkan pipeline cache data, least
// significant byte first.
type cacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

func parseCacheHeader(data []byte) (cacheHeader, error) {
	var header cacheHeader
	if len(data) < cacheHeaderSize {
		return header, errors.Newf("pipeline cache is %d bytes, shorter than its header", len(data))
	}

	err := binary.Read(bytes.NewReader(data), common.ByteOrder, &header)
	if err != nil {
		return cacheHeader{}, errors.Wrap(err, "failed to read pipeline cache header")
	}
	return header, nil
}

// matches reports why the header does not belong to the device, or nil.
func (h cacheHeader) matches(properties *core1_0.PhysicalDeviceProperties) error {
	switch {
	case h.Length < cacheHeaderSize:
		return errors.Newf("header length %d", h.Length)
	case h.Version != cacheHeaderVersion:
		return errors.Newf("header version %d", h.Version)
	case h.VendorID != properties.VendorID:
		return errors.Newf("vendor %#x, device has %#x", h.VendorID, properties.VendorID)
	case h.DeviceID != properties.DeviceID:
		return errors.Newf("device %#x, device has %#x", h.DeviceID, properties.DeviceID)
	case h.UUID != properties.PipelineCacheUUID:
		return errors.Newf("cache uuid %s, device has %s", h.UUID, properties.PipelineCacheUUID)
	}
	return nil
}

// PipelineCache is a Vulkan pipeline cache backed by a file. A nil
// *PipelineCache is valid and means pipelines are built uncached.
type PipelineCache struct {
	driver core1_0.DeviceDriver
	path   string
	handle core1_0.PipelineCache
}

// OpenPipelineCache seeds a pipeline cache from path. Data written by a
// different driver or device is discarded and the file removed. An empty
// path gives an in-memory cache that is never saved.
func OpenPipelineCache(device *DeviceContext, path string) (*PipelineCache, error) {
	initial := loadCacheData(path, device.properties)

	handle, _, err := device.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initial,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipeline cache")
	}

	Logger().Debug("pipeline cache opened", "path", path, "bytes", len(initial))

	return &PipelineCache{
		driver: device.deviceDriver,
		path:   path,
		handle: handle,
	}, nil
}

func loadCacheData(path string, properties *core1_0.PhysicalDeviceProperties) []byte {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			Logger().Warn("pipeline cache unreadable", "path", path, "error", err)
		}
		return nil
	}

	header, err := parseCacheHeader(data)
	if err == nil {
		err = header.matches(properties)
	}
	if err != nil {
		Logger().Info("discarding pipeline cache", "path", path, "reason", err)
		if rmErr := os.Remove(path); rmErr != nil {
			Logger().Warn("failed to remove pipeline cache", "path", path, "error", rmErr)
		}
		return nil
	}

	return data
}

func (c *PipelineCache) handlePtr() *core1_0.PipelineCache {
	if c == nil || !c.handle.Initialized() {
		return nil
	}
	return &c.handle
}

// Save writes the cache contents back to its file.
func (c *PipelineCache) Save() error {
	if c == nil || c.path == "" || !c.handle.Initialized() {
		return nil
	}

	data, _, err := c.driver.GetPipelineCacheData(c.handle)
	if err != nil {
		return errors.Wrap(err, "failed to read pipeline cache data")
	}

	if dir := filepath.Dir(c.path); dir != "" {
		err = os.MkdirAll(dir, 0o755)
		if err != nil {
			return errors.Wrap(err, "pipeline cache directory")
		}
	}

	err = os.WriteFile(c.path, data, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to write pipeline cache %s", c.path)
	}

	Logger().Debug("pipeline cache saved", "path", c.path, "bytes", len(data))
	return nil
}

func (c *PipelineCache) Destroy() {
	if c == nil {
		return
	}

	if c.handle.Initialized() {
		c.driver.DestroyPipelineCache(c.handle, nil)
		c.handle = core1_0.PipelineCache{}
	}
}
