package orbitalvk

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

//CoreBuffer is a GPU visible buffer with bound device memory. It embeds the
//resource usage counters so command recording can mark it in use, and it
//reports its allocation to the adapter heap accounting.
type CoreBuffer struct {
	CoreResource

	device *CoreDevice
	buffer vk.Buffer
	memory vk.DeviceMemory
	size   vk.DeviceSize
	heap   uint32
}

//Creates a host visible buffer, binds memory for it and uploads data when
//non empty. The allocation is charged against the owning heap's counter.
func NewCoreBuffer(device *CoreDevice, data []byte, size vk.DeviceSize, usage vk.BufferUsageFlagBits) (*CoreBuffer, error) {
	if size == 0 {
		size = vk.DeviceSize(len(data))
	}
	if size == 0 {
		return nil, fmt.Errorf("zero sized buffer requested")
	}

	var buffer vk.Buffer
	ret := vk.CreateBuffer(device.handle, &vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Usage: vk.BufferUsageFlags(usage),
		Size:  size,
	}, nil, &buffer)
	if isError(ret) {
		return nil, NewError(ret)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device.handle, buffer, &reqs)
	reqs.Deref()

	type_index, heap_index, ok := device.adapter.findMemoryType(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if !ok {
		vk.DestroyBuffer(device.handle, buffer, nil)
		return nil, fmt.Errorf("no host visible memory type for buffer")
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(device.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: type_index,
	}, nil, &memory)
	if isError(ret) {
		vk.DestroyBuffer(device.handle, buffer, nil)
		return nil, NewError(ret)
	}
	vk.BindBufferMemory(device.handle, buffer, memory, 0)

	device.adapter.NotifyHeapMemoryAlloc(heap_index, reqs.Size)

	core := &CoreBuffer{
		device: device,
		buffer: buffer,
		memory: memory,
		size:   reqs.Size,
		heap:   heap_index,
	}

	if len(data) > 0 {
		var mapped unsafe.Pointer
		ret = vk.MapMemory(device.handle, memory, 0, vk.DeviceSize(len(data)), 0, &mapped)
		if isError(ret) {
			warn_log.Printf("Failed to map buffer memory for upload (len=%d)", len(data))
			return core, nil
		}
		if copied := vk.Memcopy(mapped, data); copied != len(data) {
			warn_log.Printf("Short buffer upload, %d != %d", copied, len(data))
		}
		vk.UnmapMemory(device.handle, memory)
	}

	return core, nil
}

func (b *CoreBuffer) Handle() vk.Buffer {
	return b.buffer
}

func (b *CoreBuffer) Size() vk.DeviceSize {
	return b.size
}

//Waits for pending GPU reads and writes, then frees the buffer and credits
//the heap accounting
func (b *CoreBuffer) Destroy() {
	if b.device == nil {
		return
	}
	b.WaitIdle(AccessRead)
	vk.FreeMemory(b.device.handle, b.memory, nil)
	vk.DestroyBuffer(b.device.handle, b.buffer, nil)
	b.device.adapter.NotifyHeapMemoryFree(b.heap, b.size)
	b.device = nil
}
