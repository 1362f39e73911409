package orbitalvk

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

//Queue kind tag. Graphics and compute queues behave alike once created, the
//tag selects the hardware queue handle and the kind specific creation path.
type QueueType int32

const (
	QueueTypeGraphics QueueType = iota
	QueueTypeCompute
)

//GpuSubmission pairs one translated command list with the synchronization
//conditions of the frame. Wait gates execution on swapchain image
//availability, Wake is signaled by the GPU when rendering completes.
//Ephemeral, consumed by GpuQueue.Submit.
type GpuSubmission struct {
	CmdList *CoreCommandList
	Wait    vk.Semaphore
	Wake    vk.Semaphore
}

//Guest visible ring buffer state of a mapped compute queue
type computeRing struct {
	base_addr     unsafe.Pointer
	size_in_dw    uint32
	read_ptr      *uint32
	next_start_dw uint32
}

type pendingSubmission struct {
	fence    vk.Fence
	cmd_list *CoreCommandList
}

//GpuQueue emulates one console execution queue on top of a hardware queue of
//the logical device. Exactly one graphics queue exists for the lifetime of
//the driver, compute queues come and go with map/unmap requests. Owned and
//driven by the single guest submission thread, only the resource counters it
//touches are designed for concurrent access.
type GpuQueue struct {
	device   *CoreDevice
	kind     QueueType
	recorder CommandRecorder

	pool      *CoreCommandPool
	fences    *CoreFenceManager
	in_flight []pendingSubmission

	ring computeRing
}

//Creates a queue object of the given kind on the device. No host API work
//happens here, command pools are created lazily on first recording.
func NewGpuQueue(device *CoreDevice, kind QueueType) *GpuQueue {
	return &GpuQueue{
		device:   device,
		kind:     kind,
		recorder: &DummyRecorder{},
	}
}

func (q *GpuQueue) Type() QueueType {
	return q.kind
}

func (q *GpuQueue) Device() *CoreDevice {
	return q.device
}

//Attaches the command buffer translation collaborator. Passing nil restores
//the no-op recorder.
func (q *GpuQueue) SetRecorder(recorder CommandRecorder) {
	if recorder == nil {
		recorder = &DummyRecorder{}
	}
	q.recorder = recorder
}

//Hardware queue handle backing this virtual queue
func (q *GpuQueue) queueHandle() vk.Queue {
	if q.device == nil {
		return nil
	}
	if q.kind == QueueTypeCompute {
		return q.device.queues.Compute.Handle
	}
	return q.device.queues.Graphics.Handle
}

func (q *GpuQueue) queueFamily() uint32 {
	if q.kind == QueueTypeCompute {
		return q.device.queues.Compute.Family
	}
	return q.device.queues.Graphics.Family
}

//Host command pool for this queue, created on first use
func (q *GpuQueue) CommandPool() (*CoreCommandPool, error) {
	if q.pool != nil {
		return q.pool, nil
	}
	if q.device == nil || q.device.handle == nil {
		return nil, fmt.Errorf("queue has no live device")
	}
	pool, err := NewCoreCommandPool(q.device.handle, q.queueFamily())
	if err != nil {
		return nil, err
	}
	q.pool = pool
	return q.pool, nil
}

//Record hands the guest command buffer to the translation step and returns
//the resulting host command list. Resource usage counters for everything the
//list references are raised by the recorder before this returns.
func (q *GpuQueue) Record(cmd GpuCommand) (*CoreCommandList, error) {
	return q.recorder.Record(q, cmd)
}

//Releases the resources of every retired submission. Fences are polled, not
//waited on, so this never blocks the submission thread.
func (q *GpuQueue) retireCompleted() {
	remaining := q.in_flight[:0]
	for _, pending := range q.in_flight {
		if vk.GetFenceStatus(q.device.handle, pending.fence) == vk.Success {
			pending.cmd_list.notifyComplete()
			q.fences.Recycle(pending.fence)
			continue
		}
		remaining = append(remaining, pending)
	}
	q.in_flight = remaining
}

//Submit sends the command list to the hardware queue, gated on the
//submission's Wait semaphore and signaling Wake plus a tracking fence on
//completion. Completed earlier submissions are retired first so their
//resource counters drop as soon as the GPU is done with them.
func (q *GpuQueue) Submit(submission GpuSubmission) error {
	if submission.CmdList == nil {
		return fmt.Errorf("nil command list submitted")
	}
	handle := q.queueHandle()
	if handle == nil {
		return fmt.Errorf("queue has no live device")
	}
	if q.fences == nil {
		q.fences = NewCoreFenceManager(q.device.handle)
	}

	q.retireCompleted()

	fence, err := q.fences.NewFence()
	if err != nil {
		return err
	}

	submit_info := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	if submission.CmdList.Command != nil {
		submit_info.CommandBufferCount = 1
		submit_info.PCommandBuffers = []vk.CommandBuffer{submission.CmdList.Command}
	}
	if submission.Wait != vk.NullSemaphore {
		submit_info.WaitSemaphoreCount = 1
		submit_info.PWaitSemaphores = []vk.Semaphore{submission.Wait}
		submit_info.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	}
	if submission.Wake != vk.NullSemaphore {
		submit_info.SignalSemaphoreCount = 1
		submit_info.PSignalSemaphores = []vk.Semaphore{submission.Wake}
	}

	ret := vk.QueueSubmit(handle, 1, []vk.SubmitInfo{submit_info}, fence)
	if isError(ret) {
		//No fence was enqueued, nothing will ever retire this list
		submission.CmdList.notifyComplete()
		q.fences.Recycle(fence)
		return NewError(ret)
	}

	q.in_flight = append(q.in_flight, pendingSubmission{fence: fence, cmd_list: submission.CmdList})
	return nil
}

//Present instructs the presenter to display the acquired image once the
//frame's Wake semaphore fires
func (q *GpuQueue) Present(presenter *CorePresenter) error {
	ret := presenter.PresentImage()
	if ret != vk.Success && ret != vk.Suboptimal {
		return NewError(ret)
	}
	return nil
}

//Blocks until every in-flight submission on this queue retired
func (q *GpuQueue) WaitIdle() {
	if q.device == nil || q.device.handle == nil || len(q.in_flight) == 0 {
		return
	}
	fences := make([]vk.Fence, len(q.in_flight))
	for index, pending := range q.in_flight {
		fences[index] = pending.fence
	}
	vk.WaitForFences(q.device.handle, uint32(len(fences)), fences, vk.True, vk.MaxUint64)
	q.retireCompleted()
}

//Records the guest visible ring buffer of a mapped compute queue. The read
//pointer was zeroed by the mapping call before this runs.
func (q *GpuQueue) mapRing(base_addr unsafe.Pointer, size_in_dw uint32, read_ptr *uint32) {
	q.ring = computeRing{
		base_addr:  base_addr,
		size_in_dw: size_in_dw,
		read_ptr:   read_ptr,
	}
}

//Doorbell notification: new work is available on the ring starting at the
//given dword offset. Baseline behavior records the offset as the next
//consume position, real compute execution resumes the ring from here.
func (q *GpuQueue) Doorbell(next_start_offset_in_dw uint32) {
	q.ring.next_start_dw = next_start_offset_in_dw
	info_log.Printf("Compute queue doorbell, ring base %p next offset %d dw",
		q.ring.base_addr, next_start_offset_in_dw)
}

//Ring base address of a mapped compute queue, nil for graphics queues
func (q *GpuQueue) RingBase() unsafe.Pointer {
	return q.ring.base_addr
}

//Destroys host resources and releases anything still tracked as in-flight
func (q *GpuQueue) Destroy() {
	q.WaitIdle()
	for _, pending := range q.in_flight {
		pending.cmd_list.notifyComplete()
	}
	q.in_flight = nil
	if q.pool != nil {
		q.pool.Destroy()
		q.pool = nil
	}
	if q.fences != nil {
		q.fences.Destroy()
		q.fences = nil
	}
}
