package orbitalvk

import (
	"fmt"
	"sync/atomic"

	vk "github.com/vulkan-go/vulkan"
)

const invalidQueueFamily = ^uint32(0)

//Per heap accounting snapshot. MemoryAllocated mirrors what the allocator
//reported through NotifyHeapMemoryAlloc/Free, MemoryBudget falls back to the
//heap size when no budget query is available.
type CoreHeapInfo struct {
	HeapFlags       vk.MemoryHeapFlags
	MemoryBudget    vk.DeviceSize
	MemoryAllocated vk.DeviceSize
}

//Queue family indices for each hardware queue capability the driver uses
type CoreQueueIndices struct {
	Graphics uint32
	Compute  uint32
	Transfer uint32
}

//CoreAdapter corresponds to one physical graphics device. All queried state
//is cached at enumeration time and immutable afterwards, except the per heap
//allocation counters which are updated atomically by allocator code.
type CoreAdapter struct {
	handle vk.PhysicalDevice

	name        string
	device_type vk.PhysicalDeviceType
	properties  vk.PhysicalDeviceProperties
	features    vk.PhysicalDeviceFeatures

	heap_flags   []vk.MemoryHeapFlags
	heap_size    []vk.DeviceSize
	heap_alloc   []uint64
	memory_types []vk.MemoryType

	queue_families []vk.QueueFamilyProperties

	device_extensions *CoreNameSet
	extra_extensions  *CoreNameSet
}

//Queries all adapter state from the physical device handle
func newCoreAdapter(handle vk.PhysicalDevice) *CoreAdapter {
	adapter := &CoreAdapter{
		handle:            handle,
		device_extensions: NewCoreNameSet(),
		extra_extensions:  NewCoreNameSet(),
	}

	vk.GetPhysicalDeviceProperties(handle, &adapter.properties)
	adapter.properties.Deref()
	adapter.name = vk.ToString(adapter.properties.DeviceName[:])
	adapter.device_type = adapter.properties.DeviceType

	vk.GetPhysicalDeviceFeatures(handle, &adapter.features)
	adapter.features.Deref()

	var memory_props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(handle, &memory_props)
	memory_props.Deref()

	heap_count := int(memory_props.MemoryHeapCount)
	adapter.heap_flags = make([]vk.MemoryHeapFlags, heap_count)
	adapter.heap_size = make([]vk.DeviceSize, heap_count)
	adapter.heap_alloc = make([]uint64, heap_count)
	for index := 0; index < heap_count; index++ {
		memory_props.MemoryHeaps[index].Deref()
		adapter.heap_flags[index] = memory_props.MemoryHeaps[index].Flags
		adapter.heap_size[index] = memory_props.MemoryHeaps[index].Size
	}

	type_count := int(memory_props.MemoryTypeCount)
	adapter.memory_types = make([]vk.MemoryType, type_count)
	for index := 0; index < type_count; index++ {
		memory_props.MemoryTypes[index].Deref()
		adapter.memory_types[index] = memory_props.MemoryTypes[index]
	}

	var family_count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &family_count, nil)
	adapter.queue_families = make([]vk.QueueFamilyProperties, family_count)
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &family_count, adapter.queue_families)
	for index := range adapter.queue_families {
		adapter.queue_families[index].Deref()
	}

	extensions, err := EnumDeviceExtensions(handle)
	if err != nil {
		warn_log.Printf("Failed to enumerate device extensions for %s: %v", adapter.name, err)
	}
	adapter.device_extensions = extensions

	return adapter
}

//Physical device handle
func (a *CoreAdapter) Handle() vk.PhysicalDevice {
	return a.handle
}

func (a *CoreAdapter) Name() string {
	return a.name
}

//Core properties of the physical device
func (a *CoreAdapter) DeviceProperties() vk.PhysicalDeviceProperties {
	return a.properties
}

//Supported device feature set
func (a *CoreAdapter) Features() vk.PhysicalDeviceFeatures {
	return a.features
}

//Returns properties of all available memory heaps and the amount of memory
//allocated from each by the rest of the system. Safe to call concurrently
//with allocation notifications.
func (a *CoreAdapter) MemoryHeapInfo() []CoreHeapInfo {
	info := make([]CoreHeapInfo, len(a.heap_flags))
	for index := range info {
		info[index] = CoreHeapInfo{
			HeapFlags:       a.heap_flags[index],
			MemoryBudget:    a.heap_size[index],
			MemoryAllocated: vk.DeviceSize(atomic.LoadUint64(&a.heap_alloc[index])),
		}
	}
	return info
}

//Registers a memory allocation against the given heap. Lock free, callable
//from any allocator thread.
func (a *CoreAdapter) NotifyHeapMemoryAlloc(heap uint32, bytes vk.DeviceSize) {
	if int(heap) < len(a.heap_alloc) {
		atomic.AddUint64(&a.heap_alloc[heap], uint64(bytes))
	}
}

//Registers a memory deallocation against the given heap
func (a *CoreAdapter) NotifyHeapMemoryFree(heap uint32, bytes vk.DeviceSize) {
	if int(heap) < len(a.heap_alloc) {
		atomic.AddUint64(&a.heap_alloc[heap], ^(uint64(bytes) - 1))
	}
}

//True iff every reported heap is device local. Used by memory placement
//policy to skip host/device transfer staging on unified memory systems.
func (a *CoreAdapter) IsUnifiedMemoryArchitecture() bool {
	for _, flags := range a.heap_flags {
		if flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) == 0 {
			return false
		}
	}
	return len(a.heap_flags) > 0
}

//Picks a memory type compatible with the requirement bits and carrying the
//requested property flags. Returns the type index and its owning heap, used
//by allocator code to attribute heap accounting.
func (a *CoreAdapter) findMemoryType(type_bits uint32, flags vk.MemoryPropertyFlags) (uint32, uint32, bool) {
	for index, memory_type := range a.memory_types {
		if type_bits&(1<<uint32(index)) == 0 {
			continue
		}
		if memory_type.PropertyFlags&flags == flags {
			return uint32(index), memory_type.HeapIndex, true
		}
	}
	return 0, 0, false
}

//Registers additional extensions to enable when creating a device on this
//adapter, on top of the queried device extension list
func (a *CoreAdapter) EnableExtensions(extensions *CoreNameSet) {
	a.extra_extensions.Merge(extensions)
}

//Picks a queue family whose capability flags match the requested flags
//exactly under the given mask. Masking away the unrequested capability bits
//makes the most specific family win, a dedicated transfer family beats the
//all purpose graphics family for transfer work.
func (a *CoreAdapter) findQueueFamily(mask vk.QueueFlags, flags vk.QueueFlags) uint32 {
	for index := range a.queue_families {
		if a.queue_families[index].QueueFlags&mask == flags {
			return uint32(index)
		}
	}
	return invalidQueueFamily
}

//Retrieves queue family indices for graphics, compute and transfer work.
//Compute and transfer fall back to the less specific family when no dedicated
//family exists. Graphics has no fallback, its absence fails device creation.
func (a *CoreAdapter) FindQueueFamilies() CoreQueueIndices {
	graphics_compute := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)

	queues := CoreQueueIndices{
		Graphics: a.findQueueFamily(graphics_compute, graphics_compute),
		Compute:  a.findQueueFamily(graphics_compute, vk.QueueFlags(vk.QueueComputeBit)),
		Transfer: a.findQueueFamily(graphics_compute|vk.QueueFlags(vk.QueueTransferBit), vk.QueueFlags(vk.QueueTransferBit)),
	}
	if queues.Compute == invalidQueueFamily {
		queues.Compute = queues.Graphics
	}
	if queues.Transfer == invalidQueueFamily {
		queues.Transfer = queues.Compute
	}
	return queues
}

//Device features the driver asks for. Anisotropy is enabled opportunistically,
//the rest is required for guest command stream translation.
func (a *CoreAdapter) requestFeatures() vk.PhysicalDeviceFeatures {
	var request vk.PhysicalDeviceFeatures
	request.FullDrawIndexUint32 = vk.True
	request.GeometryShader = vk.True
	request.MultiDrawIndirect = vk.True
	request.SamplerAnisotropy = a.features.SamplerAnisotropy
	return request
}

//Verifies every requested feature bit against the supported feature set
func (a *CoreAdapter) checkFeatureSupport(required vk.PhysicalDeviceFeatures) bool {
	supported := func(want, have vk.Bool32) bool {
		return want == vk.False || have == vk.True
	}
	return supported(required.FullDrawIndexUint32, a.features.FullDrawIndexUint32) &&
		supported(required.GeometryShader, a.features.GeometryShader) &&
		supported(required.MultiDrawIndirect, a.features.MultiDrawIndirect) &&
		supported(required.SamplerAnisotropy, a.features.SamplerAnisotropy)
}

//Creates a logical device on this adapter. Negotiates device extensions
//against the queried extension list merged with any registered extras,
//resolves queue family indices and verifies feature support. Any failure
//here is initialization-fatal for the calling driver.
func (a *CoreAdapter) CreateDevice(instance *CoreInstance) (*CoreDevice, error) {

	available := NewCoreNameSet()
	available.Merge(a.device_extensions)
	available.Merge(a.extra_extensions)

	wanted := NewDeviceExtensionList()
	enabled := NewCoreNameSet()
	if !available.EnableExtensions(wanted.List(), enabled) {
		return nil, fmt.Errorf("adapter %s lacks required device extensions", a.name)
	}
	enabled.Merge(a.extra_extensions)

	queues := a.FindQueueFamilies()
	if queues.Graphics == invalidQueueFamily {
		return nil, fmt.Errorf("adapter %s has no graphics capable queue family", a.name)
	}

	required := a.requestFeatures()
	if !a.checkFeatureSupport(required) {
		return nil, fmt.Errorf("adapter %s lacks required device features", a.name)
	}

	//One queue per distinct family actually used
	families := []uint32{queues.Graphics}
	if queues.Compute != queues.Graphics {
		families = append(families, queues.Compute)
	}
	if queues.Transfer != queues.Graphics && queues.Transfer != queues.Compute {
		families = append(families, queues.Transfer)
	}

	priority := float32(1.0)
	queue_infos := make([]vk.DeviceQueueCreateInfo, len(families))
	for index, family := range families {
		queue_infos[index] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		}
	}

	extension_names := safeStrings(enabled.ToList())

	var handle vk.Device
	ret := vk.CreateDevice(a.handle, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queue_infos)),
		PQueueCreateInfos:       queue_infos,
		EnabledExtensionCount:   uint32(len(extension_names)),
		PpEnabledExtensionNames: extension_names,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{required},
	}, nil, &handle)

	if ret != vk.Success {
		return nil, NewError(ret)
	}

	device := &CoreDevice{
		instance:   instance,
		adapter:    a,
		handle:     handle,
		extensions: enabled,
		features:   required,
	}
	device.queues.Graphics = CoreQueueInfo{Family: queues.Graphics}
	device.queues.Compute = CoreQueueInfo{Family: queues.Compute}
	device.queues.Transfer = CoreQueueInfo{Family: queues.Transfer}
	vk.GetDeviceQueue(handle, queues.Graphics, 0, &device.queues.Graphics.Handle)
	vk.GetDeviceQueue(handle, queues.Compute, 0, &device.queues.Compute.Handle)
	vk.GetDeviceQueue(handle, queues.Transfer, 0, &device.queues.Transfer.Handle)

	a.logAdapterInfo(queues)

	return device, nil
}

func (a *CoreAdapter) logAdapterInfo(queues CoreQueueIndices) {
	info_log.Printf("Adapter: %s (type %d)", a.name, a.device_type)
	for index, info := range a.MemoryHeapInfo() {
		device_local := ""
		if info.HeapFlags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			device_local = " device-local"
		}
		info_log.Printf("  Heap %d: %d MiB%s", index, info.MemoryBudget>>20, device_local)
	}
	info_log.Printf("  Queue families: graphics %d compute %d transfer %d",
		queues.Graphics, queues.Compute, queues.Transfer)
}
