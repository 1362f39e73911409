package orbitalvk

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

//GnmDriver emulates the console graphics driver. It owns the backend
//instance, the selected adapter, the logical device, the single hardware
//graphics queue and the virtual compute queue table, and converts guest
//command buffer submissions into host GPU work synchronized with frame
//presentation.
//
//Construct one per process and inject it into every collaborator that needs
//device access. Guest submissions are executed synchronously, one command
//buffer per call, from one submission thread.
type GnmDriver struct {
	instance *CoreInstance
	adapter  *CoreAdapter
	device   *CoreDevice

	presenter *CorePresenter

	graphics_queue *GpuQueue
	compute_queues [MaxComputeQueueCount]*GpuQueue
}

//Initializes the driver: backend instance, best adapter, logical device and
//the graphics queue every GPU has by default. Every failure here is
//initialization-fatal, the caller must abort driver startup.
func NewGnmDriver(required_instance_extensions []string) (*GnmDriver, error) {
	var driver GnmDriver

	instance, err := NewCoreInstance("GnmDriver", required_instance_extensions)
	if err != nil {
		return nil, fmt.Errorf("create backend instance failed: %w", err)
	}
	driver.instance = instance

	//Adapters are ranked internally by their power, the first one is the
	//most powerful GPU in the system
	driver.adapter = instance.EnumAdapters(0)
	if driver.adapter == nil {
		instance.Destroy()
		return nil, fmt.Errorf("no suitable graphics adapter found")
	}

	driver.device, err = driver.adapter.CreateDevice(instance)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("create logical device failed: %w", err)
	}

	//A GPU must have a graphics queue by default
	driver.createGraphicsQueue()

	return &driver, nil
}

func (d *GnmDriver) Device() *CoreDevice {
	return d.device
}

func (d *GnmDriver) GraphicsQueue() *GpuQueue {
	return d.graphics_queue
}

func (d *GnmDriver) createGraphicsQueue() {
	//Create the only graphics queue
	d.graphics_queue = NewGpuQueue(d.device, QueueTypeGraphics)
}

//Creates the presenter over the surface supplied by the video output. The
//driver owns the live presenter afterwards.
func (d *GnmDriver) CreatePresenter(video_out VideoOutput, desc PresenterDesc) error {
	surface, err := video_out.GetSurface(d.instance.Handle())
	if err != nil {
		return err
	}

	device := PresenterDevice{
		Adapter: d.adapter.Handle(),
		Device:  d.device.Handle(),
		Queue:   d.device.Queues().Graphics.Handle,
		Surface: surface,
	}

	if desc.ImageExtent.Width == 0 && desc.ImageExtent.Height == 0 {
		desc.ImageExtent = video_out.Extent()
	}

	presenter, err := NewCorePresenter(device, desc)
	if err != nil {
		return err
	}
	d.presenter = presenter
	return nil
}

//SubmitCommandBuffers executes one guest command buffer against the graphics
//queue. dcb entries are the draw command buffers, ccb entries the constant
//update buffers which the baseline translation does not consume.
func (d *GnmDriver) SubmitCommandBuffers(count uint32,
	dcb_gpu_addrs []unsafe.Pointer, dcb_sizes_in_bytes []uint32,
	ccb_gpu_addrs []unsafe.Pointer, ccb_sizes_in_bytes []uint32) int32 {

	return d.SubmitAndFlipCommandBuffers(count,
		dcb_gpu_addrs, dcb_sizes_in_bytes,
		ccb_gpu_addrs, ccb_sizes_in_bytes,
		0, 0, 0, 0)
}

//SubmitAndFlipCommandBuffers is the flip variant of submission. The video
//out handle, display buffer index, flip mode and flip argument are accepted
//for the guest ABI but not yet differentiated from the non flip path.
//
//There is only one hardware graphics queue on the emulated console, so guest
//code submits command buffers sequentially from one thread and this call
//parses and executes one command buffer synchronously. Real hardware submits
//asynchronously, pipelining the recording is noted future work.
func (d *GnmDriver) SubmitAndFlipCommandBuffers(count uint32,
	dcb_gpu_addrs []unsafe.Pointer, dcb_sizes_in_bytes []uint32,
	ccb_gpu_addrs []unsafe.Pointer, ccb_sizes_in_bytes []uint32,
	video_out_handle uint32, display_buffer_index uint32,
	flip_mode uint32, flip_arg int64) int32 {

	//Batched multi buffer submission is explicitly unsupported, fail the
	//precondition instead of silently processing the first entry
	if count != 1 || len(dcb_gpu_addrs) < 1 || len(dcb_sizes_in_bytes) < 1 {
		error_log.Printf("Only 1 command buffer per submission call is supported, got %d", count)
		return ErrorInvalidCountValue
	}
	if d.graphics_queue == nil {
		error_log.Printf("Submission with no graphics queue, driver not initialized")
		return ErrorUnknown
	}

	cmd := GpuCommand{
		Buffer: dcb_gpu_addrs[0],
		Size:   dcb_sizes_in_bytes[0],
	}
	cmd_list, err := d.graphics_queue.Record(cmd)
	if err != nil {
		//Translation failure drops the frame for this call, no resource is
		//newly marked in use
		error_log.Printf("Guest command buffer translation failed: %v", err)
		return ErrorSubmissionFailed
	}

	if err := d.submitPresent(cmd_list); err != nil {
		//The recording never reached the GPU, drop its usage references so
		//the dropped frame leaves no resource marked in use
		cmd_list.notifyComplete()
		error_log.Printf("Submission failed: %v", err)
		return ErrorSubmissionFailed
	}

	return StatusOk
}

//Acquires the next presentable image, submits the command list gated on the
//acquire condition and signaling the wake condition, then queues the flip
func (d *GnmDriver) submitPresent(cmd_list *CoreCommandList) error {
	if d.presenter == nil {
		return fmt.Errorf("no presenter, call CreatePresenter first")
	}

	sync, _, err := d.presenter.AcquireNextImage()
	if err != nil {
		return err
	}

	submission := GpuSubmission{
		CmdList: cmd_list,
		Wait:    sync.Acquire,
		Wake:    sync.Present,
	}
	if err := d.graphics_queue.Submit(submission); err != nil {
		return err
	}

	return d.graphics_queue.Present(d.presenter)
}

//SubmitDone hints that all GPU work for the current frame has been
//submitted. The emulated display is a host window, so this is where its
//event queue gets pumped, once per guest visible frame boundary, to keep the
//host window alive.
func (d *GnmDriver) SubmitDone() int32 {
	glfw.PollEvents()
	return StatusOk
}

//MapComputeQueue maps the guest compute queue identified by (pipe_id,
//queue_id) onto a virtual queue slot. Validation failures return the
//matching error code and leave no partial state. On success the guest
//visible read pointer is zeroed and the derived virtual queue id is
//returned.
func (d *GnmDriver) MapComputeQueue(pipe_id uint32, queue_id uint32,
	ring_base_addr unsafe.Pointer, ring_size_in_dw uint32,
	read_ptr_addr unsafe.Pointer) int32 {

	if pipe_id >= MaxPipeId {
		return ErrorComputeQueueInvalidPipeId
	}
	if queue_id >= MaxQueueId {
		return ErrorComputeQueueInvalidQueueId
	}
	if !isAligned(uintptr(ring_base_addr), 256) {
		return ErrorComputeQueueInvalidRingBaseAddr
	}
	if !isPowerOfTwo(ring_size_in_dw) {
		return ErrorComputeQueueInvalidRingSize
	}
	if !isAligned(uintptr(read_ptr_addr), 4) {
		return ErrorComputeQueueInvalidReadPtrAddr
	}

	read_ptr := (*uint32)(read_ptr_addr)
	*read_ptr = 0

	//The id derivation over-provisions the id space relative to the slot
	//table, the capacity check is a hard runtime contract
	vqueue_id := VQueueIdBegin + pipe_id*MaxPipeId + queue_id
	if vqueue_id >= MaxComputeQueueCount {
		error_log.Printf("vqueueId %d is larger than max queue count", vqueue_id)
		return ErrorInternal
	}

	vqueue_index := vqueue_id - VQueueIdBegin
	//Remapping an occupied slot replaces the previous queue
	if previous := d.compute_queues[vqueue_index]; previous != nil {
		previous.Destroy()
	}
	queue := NewGpuQueue(d.device, QueueTypeCompute)
	queue.mapRing(ring_base_addr, ring_size_in_dw, read_ptr)
	d.compute_queues[vqueue_index] = queue

	return int32(vqueue_id)
}

//UnmapComputeQueue destroys the compute queue mapped at the given virtual
//queue id. Out of range ids log an error and change nothing, unmapping an
//already absent slot is a no-op.
func (d *GnmDriver) UnmapComputeQueue(vqueue_id uint32) {
	if vqueue_id < VQueueIdBegin || vqueue_id >= MaxComputeQueueCount {
		error_log.Printf("vqueueId %d is out of the virtual queue id range", vqueue_id)
		return
	}

	vqueue_index := vqueue_id - VQueueIdBegin
	if queue := d.compute_queues[vqueue_index]; queue != nil {
		queue.Destroy()
		d.compute_queues[vqueue_index] = nil
	}
}

//DingDong is the doorbell notification that a mapped compute queue has new
//work on its ring buffer starting at the given dword offset
func (d *GnmDriver) DingDong(vqueue_id uint32, next_start_offset_in_dw uint32) {
	if vqueue_id < VQueueIdBegin || vqueue_id >= MaxComputeQueueCount {
		error_log.Printf("vqueueId %d is out of the virtual queue id range", vqueue_id)
		return
	}

	vqueue_index := vqueue_id - VQueueIdBegin
	queue := d.compute_queues[vqueue_index]
	if queue == nil {
		warn_log.Printf("Doorbell for unmapped vqueueId %d ignored", vqueue_id)
		return
	}
	queue.Doorbell(next_start_offset_in_dw)
}

//DestroyGpuQueues tears down the graphics queue and every mapped compute
//queue. Idempotent, called at driver teardown.
func (d *GnmDriver) DestroyGpuQueues() {
	if d.graphics_queue != nil {
		d.graphics_queue.Destroy()
		d.graphics_queue = nil
	}
	for index, queue := range d.compute_queues {
		if queue != nil {
			queue.Destroy()
			d.compute_queues[index] = nil
		}
	}
}

//Destroy releases every driver owned handle. The driver is unusable
//afterwards, construct a new one to restart the session.
func (d *GnmDriver) Destroy() {
	d.DestroyGpuQueues()
	if d.presenter != nil {
		d.presenter.Destroy()
		d.presenter = nil
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
