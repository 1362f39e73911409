package orbitalvk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

//Handles the presenter borrows from the driver at creation time
type PresenterDevice struct {
	Adapter vk.PhysicalDevice
	Device  vk.Device
	Queue   vk.Queue
	Surface vk.Surface
}

//Requested swap chain properties. Zero values fall back to surface defaults.
type PresenterDesc struct {
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
	ImageExtent  vk.Extent2D
	ImageCount   uint32
}

//Actual swap chain properties after creation
type PresenterInfo struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	ImageExtent vk.Extent2D
	ImageCount  uint32
}

//Synchronization pair of one frame slot. Acquire is signaled when the
//swapchain image is available for rendering, Present is signaled by the GPU
//when rendering completes and gates the display flip.
type PresenterSync struct {
	Acquire vk.Semaphore
	Present vk.Semaphore
}

//CorePresenter owns the swapchain over the video output surface and hands
//out presentable images with their per frame synchronization conditions.
type CorePresenter struct {
	device PresenterDevice
	info   PresenterInfo

	swapchain   vk.Swapchain
	images      []vk.Image
	image_views []vk.ImageView
	semaphores  []PresenterSync

	image_index uint32
	frame_index uint32
}

func NewCorePresenter(device PresenterDevice, desc PresenterDesc) (*CorePresenter, error) {
	core := &CorePresenter{device: device}
	if err := core.recreateSwapchain(desc); err != nil {
		return nil, err
	}
	return core, nil
}

func (core *CorePresenter) Info() PresenterInfo {
	return core.info
}

func (core *CorePresenter) GetImage(index uint32) vk.Image {
	return core.images[index]
}

//AcquireNextImage yields the next presentable surface image. The returned
//sync pair belongs to the current frame slot, the caller submits rendering
//gated on sync.Acquire and signals sync.Present from the GPU.
func (core *CorePresenter) AcquireNextImage() (PresenterSync, uint32, error) {
	sync := core.semaphores[core.frame_index]

	ret := vk.AcquireNextImage(core.device.Device, core.swapchain, vk.MaxUint64,
		sync.Acquire, vk.NullFence, &core.image_index)
	if ret != vk.Success && ret != vk.Suboptimal {
		return sync, 0, NewError(ret)
	}
	return sync, core.image_index, nil
}

//PresentImage queues the display flip of the acquired image, waiting on the
//current frame's Present semaphore, and advances to the next frame slot
func (core *CorePresenter) PresentImage() vk.Result {
	sync := core.semaphores[core.frame_index]

	ret := vk.QueuePresent(core.device.Queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sync.Present},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{core.swapchain},
		PImageIndices:      []uint32{core.image_index},
	})

	core.frame_index = (core.frame_index + 1) % uint32(len(core.semaphores))
	return ret
}

func (core *CorePresenter) recreateSwapchain(desc PresenterDesc) error {
	if core.swapchain != vk.NullSwapchain {
		core.destroySwapchain()
	}

	//Query everything again, size limits and supported modes may have changed
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(core.device.Adapter, core.device.Surface, &caps)
	if isError(ret) {
		if ret == vk.ErrorSurfaceLost {
			return fmt.Errorf("presenter surface lost")
		}
		return NewError(ret)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var format_count uint32
	vk.GetPhysicalDeviceSurfaceFormats(core.device.Adapter, core.device.Surface, &format_count, nil)
	formats := make([]vk.SurfaceFormat, format_count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(core.device.Adapter, core.device.Surface, &format_count, formats)
	if isError(ret) {
		return NewError(ret)
	}
	for index := range formats {
		formats[index].Deref()
	}

	var mode_count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(core.device.Adapter, core.device.Surface, &mode_count, nil)
	modes := make([]vk.PresentMode, mode_count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(core.device.Adapter, core.device.Surface, &mode_count, modes)
	if isError(ret) {
		return NewError(ret)
	}

	core.info.Format = pickFormat(formats, desc.Formats)
	core.info.PresentMode = pickPresentMode(modes, desc.PresentModes)
	core.info.ImageExtent = pickImageExtent(caps, desc.ImageExtent)
	core.info.ImageCount = pickImageCount(caps, desc.ImageCount)

	if core.info.ImageExtent.Width == 0 || core.info.ImageExtent.Height == 0 {
		return fmt.Errorf("presenter surface has zero extent")
	}

	//Figure out a suitable surface transform
	pre_transform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		pre_transform = vk.SurfaceTransformIdentityBit
	}

	//One of the composite alpha modes is guaranteed to be set
	composite_alpha := vk.CompositeAlphaOpaqueBit
	for _, candidate := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(candidate) != 0 {
			composite_alpha = candidate
			break
		}
	}

	var swapchain vk.Swapchain
	ret = vk.CreateSwapchain(core.device.Device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          core.device.Surface,
		MinImageCount:    core.info.ImageCount,
		ImageFormat:      core.info.Format.Format,
		ImageColorSpace:  core.info.Format.ColorSpace,
		ImageExtent:      core.info.ImageExtent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     pre_transform,
		CompositeAlpha:   composite_alpha,
		PresentMode:      core.info.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}, nil, &swapchain)
	if isError(ret) {
		return NewError(ret)
	}
	core.swapchain = swapchain

	info_log.Printf("Presenter: format %d present mode %d size %dx%d images %d",
		core.info.Format.Format, core.info.PresentMode,
		core.info.ImageExtent.Width, core.info.ImageExtent.Height, core.info.ImageCount)

	var image_count uint32
	vk.GetSwapchainImages(core.device.Device, core.swapchain, &image_count, nil)
	core.images = make([]vk.Image, image_count)
	ret = vk.GetSwapchainImages(core.device.Device, core.swapchain, &image_count, core.images)
	if isError(ret) {
		return NewError(ret)
	}

	core.image_views = make([]vk.ImageView, image_count)
	for index := range core.images {
		if err := core.createImageView(index); err != nil {
			return err
		}
	}

	core.semaphores = make([]PresenterSync, image_count)
	for index := range core.semaphores {
		sync := PresenterSync{}
		ret = vk.CreateSemaphore(core.device.Device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sync.Acquire)
		if isError(ret) {
			return NewError(ret)
		}
		ret = vk.CreateSemaphore(core.device.Device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sync.Present)
		if isError(ret) {
			return NewError(ret)
		}
		core.semaphores[index] = sync
	}

	core.image_index = 0
	core.frame_index = 0
	return nil
}

func (core *CorePresenter) createImageView(index int) error {
	var view vk.ImageView
	ret := vk.CreateImageView(core.device.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    core.images[index],
		ViewType: vk.ImageViewType2d,
		Format:   core.info.Format.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if isError(ret) {
		return NewError(ret)
	}
	core.image_views[index] = view
	return nil
}

func (core *CorePresenter) destroySwapchain() {
	for _, view := range core.image_views {
		vk.DestroyImageView(core.device.Device, view, nil)
	}
	for _, sync := range core.semaphores {
		vk.DestroySemaphore(core.device.Device, sync.Acquire, nil)
		vk.DestroySemaphore(core.device.Device, sync.Present, nil)
	}
	vk.DestroySwapchain(core.device.Device, core.swapchain, nil)
	core.image_views = nil
	core.semaphores = nil
	core.images = nil
	core.swapchain = vk.NullSwapchain
}

func (core *CorePresenter) Destroy() {
	if core.swapchain != vk.NullSwapchain {
		vk.DeviceWaitIdle(core.device.Device)
		core.destroySwapchain()
	}
}

//Selects the swap chain surface format. Preferred formats are matched in
//order against what the surface reports, first on format plus color space
//then on format alone.
func pickFormat(available []vk.SurfaceFormat, preferred []vk.SurfaceFormat) vk.SurfaceFormat {
	fallback := vk.SurfaceFormat{
		Format:     vk.FormatB8g8r8a8Unorm,
		ColorSpace: vk.ColorSpaceSrgbNonlinear,
	}
	if len(available) == 0 {
		return fallback
	}
	//A single undefined entry means the surface accepts any format
	if len(available) == 1 && available[0].Format == vk.FormatUndefined {
		if len(preferred) > 0 {
			return preferred[0]
		}
		return fallback
	}
	for _, want := range preferred {
		for _, have := range available {
			if have.Format == want.Format && have.ColorSpace == want.ColorSpace {
				return have
			}
		}
	}
	for _, want := range preferred {
		for _, have := range available {
			if have.Format == want.Format {
				return have
			}
		}
	}
	return available[0]
}

//Selects the present mode, falling back to FIFO which the spec guarantees
func pickPresentMode(available []vk.PresentMode, preferred []vk.PresentMode) vk.PresentMode {
	for _, want := range preferred {
		for _, have := range available {
			if have == want {
				return have
			}
		}
	}
	return vk.PresentModeFifo
}

//Selects the swap chain extent, clamping the desired size into the surface
//limits when the surface does not dictate an exact extent
func pickImageExtent(caps vk.SurfaceCapabilities, desired vk.Extent2D) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	clamp := func(value, lo, hi uint32) uint32 {
		if value < lo {
			return lo
		}
		if hi != 0 && value > hi {
			return hi
		}
		return value
	}
	return vk.Extent2D{
		Width:  clamp(desired.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(desired.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

//Selects the swap chain image count within the surface limits. A zero
//desired count asks for one image above the minimum for double buffering
//headroom.
func pickImageCount(caps vk.SurfaceCapabilities, desired uint32) uint32 {
	count := desired
	if count == 0 {
		count = caps.MinImageCount + 1
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
