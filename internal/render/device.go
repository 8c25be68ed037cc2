package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

var depthFormatCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// Surface is the window side of the render core: it provides the Vulkan
// loader, the instance extensions needed to present, and the surface itself.
type Surface interface {
	Loader() (core1_0.GlobalDriver, error)
	InstanceExtensions() []string
	CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)
	DrawableSize() (width, height int)
}

type queueFamilies struct {
	graphics *int
	present  *int
}

func (q queueFamilies) complete(needPresent bool) bool {
	return q.graphics != nil && (!needPresent || q.present != nil)
}

// DeviceContext owns the instance, the chosen physical device, the logical
// device and its queues. Everything else in the package is created from it.
type DeviceContext struct {
	cfg Config

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceSource      Surface
	surfaceExtension   khr_surface.ExtensionDriver
	surface            khr_surface.Surface
	swapchainExtension khr_swapchain.ExtensionDriver

	physicalDevice core1_0.PhysicalDevice
	properties     *core1_0.PhysicalDeviceProperties
	memoryTypes    []core1_0.MemoryPropertyFlags

	graphicsFamily int
	presentFamily  int
	graphicsQueue  core1_0.Queue
	presentQueue   core1_0.Queue

	msaaSamples core1_0.SampleCountFlags
	depthFormat core1_0.Format
}

// NewDeviceContext brings up Vulkan. With a nil surface the context is
// headless: no present queue, no swapchain extension.
func NewDeviceContext(cfg Config, globalDriver core1_0.GlobalDriver, surface Surface) (*DeviceContext, error) {
	d := &DeviceContext{
		cfg:           cfg,
		globalDriver:  globalDriver,
		surfaceSource: surface,
		msaaSamples:   core1_0.Samples1,
	}

	err := d.init()
	if err != nil {
		d.Destroy()
		return nil, err
	}

	return d, nil
}

func (d *DeviceContext) init() error {
	err := d.createInstance()
	if err != nil {
		return err
	}

	err = d.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = d.createSurface()
	if err != nil {
		return err
	}

	err = d.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = d.createLogicalDevice()
	if err != nil {
		return err
	}

	d.depthFormat, err = findSupportedFormat(depthFormatCandidates, core1_0.FormatFeatureDepthStencilAttachment, d.optimalTilingFeatures)
	if err != nil {
		return errors.Wrap(err, "no depth format")
	}

	return nil
}

func (d *DeviceContext) headless() bool {
	return d.surfaceSource == nil
}

func (d *DeviceContext) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    d.cfg.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := d.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate instance extensions")
	}

	var required []string
	if !d.headless() {
		required = append(required, d.surfaceSource.InstanceExtensions()...)
	}
	if d.cfg.EnableValidation {
		required = append(required, ext_debug_utils.ExtensionName)
	}

	for _, ext := range required {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if d.cfg.EnableValidation {
		layers, _, err := d.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "failed to enumerate instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("validation layer %s not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		// Covers messages emitted during vkCreateInstance itself.
		instanceOptions.Next = d.debugMessengerOptions()
	}

	d.instanceDriver, _, err = d.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "failed to create instance")
	}

	return nil
}

func (d *DeviceContext) createSurface() error {
	if d.headless() {
		return nil
	}

	d.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(d.instanceDriver)
	surface, err := d.surfaceSource.CreateSurface(d.instanceDriver.Instance(), d.surfaceExtension)
	if err != nil {
		return errors.Wrap(err, "failed to create surface")
	}

	d.surface = surface
	return nil
}

func (d *DeviceContext) pickPhysicalDevice() error {
	physicalDevices, _, err := d.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate physical devices")
	}

	for _, device := range physicalDevices {
		if !d.isDeviceSuitable(device) {
			continue
		}

		properties, err := d.instanceDriver.GetPhysicalDeviceProperties(device)
		if err != nil {
			return errors.Wrap(err, "failed to read physical device properties")
		}

		d.physicalDevice = device
		d.properties = properties
		d.msaaSamples = maxUsableSampleCount(
			properties.Limits.FramebufferColorSampleCounts&properties.Limits.FramebufferDepthSampleCounts,
			d.cfg.MaxSamples,
		)

		memProperties := d.instanceDriver.GetPhysicalDeviceMemoryProperties(device)
		d.memoryTypes = d.memoryTypes[:0]
		for _, memoryType := range memProperties.MemoryTypes {
			d.memoryTypes = append(d.memoryTypes, memoryType.PropertyFlags)
		}

		Logger().Info("selected physical device",
			"name", properties.DeviceName,
			"msaa", d.msaaSamples,
			"headless", d.headless())
		return nil
	}

	return errors.New("failed to find a suitable GPU")
}

func (d *DeviceContext) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := d.findQueueFamilies(device)
	if err != nil || !indices.complete(!d.headless()) {
		return false
	}

	features := d.instanceDriver.GetPhysicalDeviceFeatures(device)
	if !features.SamplerAnisotropy {
		return false
	}

	if d.headless() {
		return true
	}

	extensions, _, err := d.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}
	_, hasSwapchain := extensions[khr_swapchain.ExtensionName]
	if !hasSwapchain {
		return false
	}

	support, err := d.querySwapchainSupport(device)
	if err != nil {
		return false
	}

	return len(support.Formats) > 0 && len(support.PresentModes) > 0
}

func (d *DeviceContext) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilies, error) {
	indices := queueFamilies{}
	families := d.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for familyIdx, family := range families {
		if indices.graphics == nil && (family.QueueFlags&core1_0.QueueGraphics) != 0 {
			indices.graphics = new(int)
			*indices.graphics = familyIdx
		}

		if !d.headless() && indices.present == nil {
			supported, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceSupport(d.surface, device, familyIdx)
			if err != nil {
				return indices, err
			}

			if supported {
				indices.present = new(int)
				*indices.present = familyIdx
			}
		}

		if indices.complete(!d.headless()) {
			break
		}
	}

	return indices, nil
}

func (d *DeviceContext) createLogicalDevice() error {
	indices, err := d.findQueueFamilies(d.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "failed to query queue families")
	}

	d.graphicsFamily = *indices.graphics
	d.presentFamily = d.graphicsFamily
	if indices.present != nil {
		d.presentFamily = *indices.present
	}

	uniqueQueueFamilies := []int{d.graphicsFamily}
	if d.presentFamily != d.graphicsFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, d.presentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	for _, family := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	var extensionNames []string
	if !d.headless() {
		extensionNames = append(extensionNames, khr_swapchain.ExtensionName)
	}

	extensions, _, err := d.instanceDriver.EnumerateDeviceExtensionProperties(d.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "failed to enumerate device extensions")
	}

	// Required by MoltenVK and other portability drivers.
	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	d.deviceDriver, _, err = d.instanceDriver.CreateDevice(d.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}

	d.graphicsQueue = d.deviceDriver.GetQueue(d.graphicsFamily, 0)
	d.presentQueue = d.deviceDriver.GetQueue(d.presentFamily, 0)

	if !d.headless() {
		d.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(d.deviceDriver)
	}

	return nil
}

func (d *DeviceContext) querySwapchainSupport(device core1_0.PhysicalDevice) (swapchainSupport, error) {
	var support swapchainSupport
	var err error

	support.Capabilities, _, err = d.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(d.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "failed to read surface capabilities")
	}

	support.Formats, _, err = d.surfaceExtension.GetPhysicalDeviceSurfaceFormats(d.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "failed to read surface formats")
	}

	support.PresentModes, _, err = d.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(d.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "failed to read surface present modes")
	}

	return support, nil
}

func (d *DeviceContext) optimalTilingFeatures(format core1_0.Format) core1_0.FormatFeatureFlags {
	return d.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, format).OptimalTilingFeatures
}

// Driver is the logical device driver.
func (d *DeviceContext) Driver() core1_0.DeviceDriver {
	return d.deviceDriver
}

func (d *DeviceContext) MSAASamples() core1_0.SampleCountFlags {
	return d.msaaSamples
}

func (d *DeviceContext) DepthFormat() core1_0.Format {
	return d.depthFormat
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *DeviceContext) WaitIdle() error {
	if d.deviceDriver == nil {
		return nil
	}

	_, err := d.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "failed to wait for device idle")
	}
	return nil
}

// Destroy tears the context down in reverse creation order. Safe to call on
// a partially built context and more than once.
func (d *DeviceContext) Destroy() {
	if d.deviceDriver != nil {
		d.deviceDriver.DestroyDevice(nil)
		d.deviceDriver = nil
	}

	if d.debugMessenger.Initialized() {
		d.debugDriver.DestroyDebugUtilsMessenger(d.debugMessenger, nil)
		d.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if d.surface.Initialized() {
		d.surfaceExtension.DestroySurface(d.surface, nil)
		d.surface = khr_surface.Surface{}
	}

	if d.instanceDriver != nil {
		d.instanceDriver.DestroyInstance(nil)
		d.instanceDriver = nil
	}
}

// findMemoryType returns the first memory type allowed by typeFilter whose
// flags include every requested property.
func findMemoryType(memoryTypes []core1_0.MemoryPropertyFlags, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, flags := range memoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (flags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("failed to find a memory type for filter %#x with properties %s", typeFilter, properties)
}

var sampleCountsDescending = []core1_0.SampleCountFlags{
	core1_0.Samples64,
	core1_0.Samples32,
	core1_0.Samples16,
	core1_0.Samples8,
	core1_0.Samples4,
	core1_0.Samples2,
}

// maxUsableSampleCount picks the highest sample count present in counts that
// does not exceed limit. A zero limit means no cap.
func maxUsableSampleCount(counts core1_0.SampleCountFlags, limit core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	for _, samples := range sampleCountsDescending {
		if limit != 0 && samples > limit {
			continue
		}
		if (counts & samples) != 0 {
			return samples
		}
	}
	return core1_0.Samples1
}

// findSupportedFormat returns the first candidate whose features, as reported
// by featuresOf, include every requested feature.
func findSupportedFormat(candidates []core1_0.Format, features core1_0.FormatFeatureFlags, featuresOf func(core1_0.Format) core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range candidates {
		if (featuresOf(format) & features) == features {
			return format, nil
		}
	}

	return 0, errors.Newf("failed to find supported format for featureset %s", features)
}
