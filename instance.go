package orbitalvk

import (
	"fmt"
	"runtime"
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

//CoreInstance owns the Vulkan instance and the adapter enumeration. One
//process wide instance is created by the driver, adapters are enumerated
//once and ranked by power so EnumAdapters(0) yields the most capable GPU.
type CoreInstance struct {
	handle     vk.Instance
	extensions *InstanceExtensionList
	enabled    *CoreNameSet
	layers     []string
	adapters   []*CoreAdapter
}

//Validation layers requested when available, negotiation never fails on a
//missing layer
func wantedValidationLayers() []string {
	return []string{
		"VK_LAYER_KHRONOS_validation",
	}
}

//Creates the Vulkan instance and enumerates adapters. required_extensions
//carries the platform surface extensions the window system needs, typically
//window.GetRequiredInstanceExtensions(), each treated as a Required entry.
func NewCoreInstance(app_name string, required_extensions []string) (*CoreInstance, error) {
	var core CoreInstance

	available, err := EnumInstanceExtensions()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate instance extensions: %w", err)
	}

	core.extensions = NewInstanceExtensionList()
	wanted := core.extensions.List()
	for _, name := range required_extensions {
		wanted = append(wanted, NewCoreExtension(name, ExtensionModeRequired))
	}

	core.enabled = NewCoreNameSet()
	if !available.EnableExtensions(wanted, core.enabled) {
		return nil, fmt.Errorf("instance lacks required extensions")
	}

	available_layers, err := EnumInstanceLayers()
	if err != nil {
		warn_log.Printf("Failed to enumerate instance layers: %v", err)
		available_layers = NewCoreNameSet()
	}
	for _, layer := range wantedValidationLayers() {
		if available_layers.Supports(layer) != 0 {
			core.layers = append(core.layers, layer)
		}
	}

	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		flags = vk.InstanceCreateFlags(0x00000001) //VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT
	}

	extension_names := safeStrings(core.enabled.ToList())
	layer_names := safeStrings(append([]string{}, core.layers...))

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(app_name),
			PEngineName:        safeString("orbitalvk"),
		},
		EnabledExtensionCount:   uint32(len(extension_names)),
		PpEnabledExtensionNames: extension_names,
		EnabledLayerCount:       uint32(len(layer_names)),
		PpEnabledLayerNames:     layer_names,
		Flags:                   flags,
	}, nil, &instance)

	if ret != vk.Success {
		return nil, NewError(ret)
	}

	if runtime.GOOS == "darwin" {
		vk.InitInstance(instance)
	}

	core.handle = instance

	if err := core.enumAdapters(); err != nil {
		core.Destroy()
		return nil, err
	}

	return &core, nil
}

func (core *CoreInstance) enumAdapters() error {
	var gpu_count uint32
	ret := vk.EnumeratePhysicalDevices(core.handle, &gpu_count, nil)
	if isError(ret) {
		return NewError(ret)
	}
	if gpu_count == 0 {
		return fmt.Errorf("no physical graphics devices found")
	}

	gpus := make([]vk.PhysicalDevice, gpu_count)
	ret = vk.EnumeratePhysicalDevices(core.handle, &gpu_count, gpus)
	if isError(ret) {
		return NewError(ret)
	}

	core.adapters = make([]*CoreAdapter, 0, gpu_count)
	for _, gpu := range gpus {
		core.adapters = append(core.adapters, newCoreAdapter(gpu))
	}
	rankAdapters(core.adapters)

	return nil
}

//Orders adapters by capability, index 0 becomes the most powerful GPU in
//the system. Discrete beats integrated beats virtual, ties break on device
//local memory.
func rankAdapters(adapters []*CoreAdapter) {
	sort.SliceStable(adapters, func(i, j int) bool {
		ri, rj := adapterTypeRank(adapters[i].device_type), adapterTypeRank(adapters[j].device_type)
		if ri != rj {
			return ri > rj
		}
		return adapterLocalMemory(adapters[i]) > adapterLocalMemory(adapters[j])
	})
}

func adapterTypeRank(device_type vk.PhysicalDeviceType) int {
	switch device_type {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 3
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 2
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 1
	default:
		return 0
	}
}

func adapterLocalMemory(adapter *CoreAdapter) vk.DeviceSize {
	var total vk.DeviceSize
	for index, flags := range adapter.heap_flags {
		if flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			total += adapter.heap_size[index]
		}
	}
	return total
}

func (core *CoreInstance) Handle() vk.Instance {
	return core.handle
}

//Returns the adapter at the requested rank in the power ranked enumeration,
//or nil when the rank is out of range. A nil result is fatal for the calling
//driver, no fallback adapter selection is defined.
func (core *CoreInstance) EnumAdapters(rank int) *CoreAdapter {
	if rank < 0 || rank >= len(core.adapters) {
		return nil
	}
	return core.adapters[rank]
}

func (core *CoreInstance) Destroy() {
	if core.handle != nil {
		vk.DestroyInstance(core.handle, nil)
		core.handle = nil
	}
}
