package orbitalvk

import (
	"sync"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

//Builds an adapter from synthetic queried state, bypassing device enumeration
func testAdapter(device_type vk.PhysicalDeviceType, heap_flags []vk.MemoryHeapFlags, heap_size []vk.DeviceSize) *CoreAdapter {
	return &CoreAdapter{
		name:              "test adapter",
		device_type:       device_type,
		heap_flags:        heap_flags,
		heap_size:         heap_size,
		heap_alloc:        make([]uint64, len(heap_flags)),
		device_extensions: NewCoreNameSet(),
		extra_extensions:  NewCoreNameSet(),
	}
}

func deviceLocal() vk.MemoryHeapFlags {
	return vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit)
}

func TestRankAdapters(t *testing.T) {
	integrated := testAdapter(vk.PhysicalDeviceTypeIntegratedGpu,
		[]vk.MemoryHeapFlags{deviceLocal()}, []vk.DeviceSize{16 << 30})
	discrete_small := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal(), 0}, []vk.DeviceSize{4 << 30, 16 << 30})
	discrete_big := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal(), 0}, []vk.DeviceSize{12 << 30, 16 << 30})
	software := testAdapter(vk.PhysicalDeviceTypeCpu,
		[]vk.MemoryHeapFlags{0}, []vk.DeviceSize{32 << 30})

	adapters := []*CoreAdapter{software, integrated, discrete_small, discrete_big}
	rankAdapters(adapters)

	want := []*CoreAdapter{discrete_big, discrete_small, integrated, software}
	for index := range want {
		if adapters[index] != want[index] {
			t.Fatalf("rankAdapters: rank %d is %s type %d, wrong order",
				index, adapters[index].name, adapters[index].device_type)
		}
	}

	//Rank n is never more capable than rank n-1
	for index := 1; index < len(adapters); index++ {
		prev, cur := adapters[index-1], adapters[index]
		if adapterTypeRank(cur.device_type) > adapterTypeRank(prev.device_type) {
			t.Errorf("rankAdapters: rank %d outranks rank %d by type", index, index-1)
		}
		if adapterTypeRank(cur.device_type) == adapterTypeRank(prev.device_type) &&
			adapterLocalMemory(cur) > adapterLocalMemory(prev) {
			t.Errorf("rankAdapters: rank %d outranks rank %d by memory", index, index-1)
		}
	}
}

func TestEnumAdaptersOutOfRange(t *testing.T) {
	first := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal()}, []vk.DeviceSize{8 << 30})
	instance := &CoreInstance{adapters: []*CoreAdapter{first}}

	if instance.EnumAdapters(0) != first {
		t.Error("EnumAdapters: rank 0 did not return the first ranked adapter")
	}
	if instance.EnumAdapters(-1) != nil {
		t.Error("EnumAdapters: negative rank must return nil")
	}
	if instance.EnumAdapters(1) != nil {
		t.Error("EnumAdapters: out of range rank must return nil")
	}
}

func TestFindQueueFamilyMostSpecificWins(t *testing.T) {
	graphics := vk.QueueFlags(vk.QueueGraphicsBit)
	compute := vk.QueueFlags(vk.QueueComputeBit)
	transfer := vk.QueueFlags(vk.QueueTransferBit)

	adapter := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu, nil, nil)
	adapter.queue_families = []vk.QueueFamilyProperties{
		{QueueFlags: graphics | compute | transfer},
		{QueueFlags: compute | transfer},
		{QueueFlags: transfer},
	}

	queues := adapter.FindQueueFamilies()
	if queues.Graphics != 0 {
		t.Errorf("FindQueueFamilies: graphics family %d, want 0", queues.Graphics)
	}
	if queues.Compute != 1 {
		t.Errorf("FindQueueFamilies: compute family %d, want the dedicated family 1", queues.Compute)
	}
	if queues.Transfer != 2 {
		t.Errorf("FindQueueFamilies: transfer family %d, want the dedicated family 2", queues.Transfer)
	}
}

func TestFindQueueFamilyFallbacks(t *testing.T) {
	graphics := vk.QueueFlags(vk.QueueGraphicsBit)
	compute := vk.QueueFlags(vk.QueueComputeBit)

	//Single all purpose family, everything falls back to it
	adapter := testAdapter(vk.PhysicalDeviceTypeIntegratedGpu, nil, nil)
	adapter.queue_families = []vk.QueueFamilyProperties{
		{QueueFlags: graphics | compute | vk.QueueFlags(vk.QueueTransferBit)},
	}
	queues := adapter.FindQueueFamilies()
	if queues.Graphics != 0 || queues.Compute != 0 || queues.Transfer != 0 {
		t.Errorf("FindQueueFamilies: fallbacks gave %+v, want family 0 everywhere", queues)
	}

	//Compute only device has no graphics family at all
	adapter.queue_families = []vk.QueueFamilyProperties{
		{QueueFlags: compute},
	}
	queues = adapter.FindQueueFamilies()
	if queues.Graphics != invalidQueueFamily {
		t.Errorf("FindQueueFamilies: graphics family %d on a compute only device, want invalid", queues.Graphics)
	}
}

func TestFindMemoryType(t *testing.T) {
	host_visible := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	host_coherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	device_local := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

	adapter := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal(), 0}, []vk.DeviceSize{8 << 30, 16 << 30})
	adapter.memory_types = []vk.MemoryType{
		{PropertyFlags: device_local, HeapIndex: 0},
		{PropertyFlags: host_visible | host_coherent, HeapIndex: 1},
	}

	type_index, heap_index, ok := adapter.findMemoryType(^uint32(0), host_visible|host_coherent)
	if !ok || type_index != 1 || heap_index != 1 {
		t.Errorf("findMemoryType: got (%d, %d, %v), want host visible type 1 on heap 1",
			type_index, heap_index, ok)
	}

	//Requirement bits exclude the only matching type
	if _, _, ok := adapter.findMemoryType(1<<0, host_visible); ok {
		t.Error("findMemoryType: matched a type outside the requirement bits")
	}
	if _, _, ok := adapter.findMemoryType(^uint32(0), device_local|host_visible); ok {
		t.Error("findMemoryType: matched a type missing requested property flags")
	}
}

func TestHeapAccounting(t *testing.T) {
	adapter := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal()}, []vk.DeviceSize{8 << 30})

	adapter.NotifyHeapMemoryAlloc(0, 4096)
	adapter.NotifyHeapMemoryAlloc(0, 1024)
	adapter.NotifyHeapMemoryFree(0, 1024)

	info := adapter.MemoryHeapInfo()
	if len(info) != 1 {
		t.Fatalf("MemoryHeapInfo: got %d heaps, want 1", len(info))
	}
	if info[0].MemoryAllocated != 4096 {
		t.Errorf("MemoryHeapInfo: allocated %d, want 4096", info[0].MemoryAllocated)
	}
	if info[0].MemoryBudget != 8<<30 {
		t.Errorf("MemoryHeapInfo: budget %d, want the heap size", info[0].MemoryBudget)
	}

	//Out of range heap indices are ignored
	adapter.NotifyHeapMemoryAlloc(7, 4096)
	adapter.NotifyHeapMemoryFree(7, 4096)
}

func TestHeapAccountingConcurrent(t *testing.T) {
	adapter := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal()}, []vk.DeviceSize{8 << 30})

	var group sync.WaitGroup
	workers := 8
	rounds := 1000
	for worker := 0; worker < workers; worker++ {
		group.Add(1)
		go func() {
			defer group.Done()
			for round := 0; round < rounds; round++ {
				adapter.NotifyHeapMemoryAlloc(0, 256)
				adapter.NotifyHeapMemoryFree(0, 256)
			}
		}()
	}
	group.Wait()

	if allocated := adapter.MemoryHeapInfo()[0].MemoryAllocated; allocated != 0 {
		t.Errorf("MemoryHeapInfo: %d bytes allocated after balanced concurrent use, want 0", allocated)
	}
}

func TestIsUnifiedMemoryArchitecture(t *testing.T) {
	unified := testAdapter(vk.PhysicalDeviceTypeIntegratedGpu,
		[]vk.MemoryHeapFlags{deviceLocal()}, []vk.DeviceSize{16 << 30})
	if !unified.IsUnifiedMemoryArchitecture() {
		t.Error("IsUnifiedMemoryArchitecture: all device local heaps reported as non unified")
	}

	split := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu,
		[]vk.MemoryHeapFlags{deviceLocal(), 0}, []vk.DeviceSize{8 << 30, 16 << 30})
	if split.IsUnifiedMemoryArchitecture() {
		t.Error("IsUnifiedMemoryArchitecture: host visible heap reported as unified")
	}

	empty := testAdapter(vk.PhysicalDeviceTypeOther, nil, nil)
	if empty.IsUnifiedMemoryArchitecture() {
		t.Error("IsUnifiedMemoryArchitecture: adapter without heaps reported as unified")
	}
}

func TestCheckFeatureSupport(t *testing.T) {
	adapter := testAdapter(vk.PhysicalDeviceTypeDiscreteGpu, nil, nil)
	adapter.features.FullDrawIndexUint32 = vk.True
	adapter.features.GeometryShader = vk.True
	adapter.features.MultiDrawIndirect = vk.True

	if !adapter.checkFeatureSupport(adapter.requestFeatures()) {
		t.Error("checkFeatureSupport: requested feature set rejected by a capable adapter")
	}

	var required vk.PhysicalDeviceFeatures
	required.SamplerAnisotropy = vk.True
	if adapter.checkFeatureSupport(required) {
		t.Error("checkFeatureSupport: unsupported feature bit accepted")
	}

	//Anisotropy is requested opportunistically, never beyond what is supported
	request := adapter.requestFeatures()
	if request.SamplerAnisotropy != adapter.features.SamplerAnisotropy {
		t.Error("requestFeatures: anisotropy request does not follow adapter support")
	}
}
