package orbitalvk

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

//GpuCommand describes one guest command buffer in the console's native
//encoding, as handed over by guest code. The core never interprets the
//contents itself.
type GpuCommand struct {
	Buffer unsafe.Pointer
	Size   uint32
}

type trackedResource struct {
	resource *CoreResource
	access   Access
}

//CoreCommandList is the opaque host recording produced by translating one
//guest command buffer. It carries the host command buffer handle plus the
//usage references of every resource the recording touches, so completion can
//release them.
type CoreCommandList struct {
	Command vk.CommandBuffer
	tracked []trackedResource
}

//Marks the resource as in use by this recording for the given access kind.
//The translation step must call this for every resource its commands
//reference, the submission pipeline relies on the counters being raised
//before the list reaches the queue.
func (c *CoreCommandList) TrackResource(resource *CoreResource, access Access) {
	resource.Acquire(access)
	c.tracked = append(c.tracked, trackedResource{resource: resource, access: access})
}

//Releases every tracked resource. Runs when the GPU signals completion of
//this recording.
func (c *CoreCommandList) notifyComplete() {
	for _, entry := range c.tracked {
		entry.resource.Release(entry.access)
	}
	c.tracked = c.tracked[:0]
}

//CommandRecorder is the command buffer translation collaborator. It parses
//one guest command buffer and produces the equivalent host command list, or
//fails with a translation error (unsupported opcode, malformed packet) which
//the submission pipeline surfaces as a dropped frame for that call.
type CommandRecorder interface {
	Record(queue *GpuQueue, cmd GpuCommand) (*CoreCommandList, error)
}

//DummyRecorder accepts any well formed guest buffer and produces an empty
//host command list. Attached to every queue until a real translator replaces
//it, so the submission pipeline stays exercisable without opcode decoding.
type DummyRecorder struct{}

func (r *DummyRecorder) Record(queue *GpuQueue, cmd GpuCommand) (*CoreCommandList, error) {
	if cmd.Buffer == nil || cmd.Size == 0 {
		return nil, fmt.Errorf("malformed guest command buffer (addr %p size %d)", cmd.Buffer, cmd.Size)
	}
	return &CoreCommandList{}, nil
}

//CoreCommandPool allocates host command buffers and recycles them between
//frames. Not thread safe, each queue owns its own pool.
type CoreCommandPool struct {
	device  vk.Device
	pool    vk.CommandPool
	buffers []vk.CommandBuffer
	count   uint32
}

func NewCoreCommandPool(device vk.Device, family_index uint32) (*CoreCommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family_index,
		//ResetCommandBufferBit allows command buffers to be reset individually
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return &CoreCommandPool{device: device, pool: pool}, nil
}

//Marks every managed command buffer as recycleable
func (c *CoreCommandPool) Reset() {
	c.count = 0
}

//Returns a fresh or recycled primary command buffer in the reset state
func (c *CoreCommandPool) NewCommandBuffer() (vk.CommandBuffer, error) {
	if c.count < uint32(len(c.buffers)) {
		buffer := c.buffers[c.count]
		ret := vk.ResetCommandBuffer(buffer,
			vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit))
		if isError(ret) {
			return buffer, NewError(ret)
		}
		c.count++
		return buffer, nil
	}
	c.buffers = append(c.buffers, nil)
	ret := vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, c.buffers[c.count:])
	if isError(ret) {
		c.buffers = c.buffers[:c.count]
		return nil, NewError(ret)
	}
	buffer := c.buffers[c.count]
	c.count++
	return buffer, nil
}

func (c *CoreCommandPool) Destroy() {
	if len(c.buffers) > 0 {
		vk.FreeCommandBuffers(c.device, c.pool, uint32(len(c.buffers)), c.buffers)
	}
	vk.DestroyCommandPool(c.device, c.pool, nil)
	c.buffers = nil
	c.count = 0
}

//CoreFenceManager creates fences and recycles signaled ones, used to track
//GPU progress of in-flight submissions. Not thread safe.
type CoreFenceManager struct {
	device vk.Device
	free   []vk.Fence
	all    []vk.Fence
}

func NewCoreFenceManager(device vk.Device) *CoreFenceManager {
	return &CoreFenceManager{device: device}
}

//Returns an unsignaled fence, reusing a recycled one when available
func (f *CoreFenceManager) NewFence() (vk.Fence, error) {
	if count := len(f.free); count > 0 {
		fence := f.free[count-1]
		f.free = f.free[:count-1]
		return fence, nil
	}
	var fence vk.Fence
	ret := vk.CreateFence(f.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if isError(ret) {
		return fence, NewError(ret)
	}
	f.all = append(f.all, fence)
	return fence, nil
}

//Resets a signaled fence and returns it to the free list
func (f *CoreFenceManager) Recycle(fence vk.Fence) {
	vk.ResetFences(f.device, 1, []vk.Fence{fence})
	f.free = append(f.free, fence)
}

func (f *CoreFenceManager) Destroy() {
	for _, fence := range f.all {
		vk.DestroyFence(f.device, fence, nil)
	}
	f.all = nil
	f.free = nil
}
