package orbitalvk

import vk "github.com/vulkan-go/vulkan"

//One retrieved hardware queue handle and its owning family
type CoreQueueInfo struct {
	Family uint32
	Handle vk.Queue
}

//Queue handles for every hardware queue family the device actually uses.
//Compute and Transfer may alias Graphics on adapters without dedicated
//families.
type CoreDeviceQueues struct {
	Graphics CoreQueueInfo
	Compute  CoreQueueInfo
	Transfer CoreQueueInfo
}

//CoreDevice is the logical device bound to one adapter plus the negotiated
//extension and feature set. Created once per process by the driver and shared
//by everything downstream, its lifetime spans the longest holder.
type CoreDevice struct {
	instance   *CoreInstance
	adapter    *CoreAdapter
	handle     vk.Device
	extensions *CoreNameSet
	features   vk.PhysicalDeviceFeatures
	queues     CoreDeviceQueues
}

func (d *CoreDevice) Handle() vk.Device {
	return d.handle
}

func (d *CoreDevice) Instance() *CoreInstance {
	return d.instance
}

func (d *CoreDevice) Adapter() *CoreAdapter {
	return d.adapter
}

func (d *CoreDevice) Queues() CoreDeviceQueues {
	return d.queues
}

//Negotiated extension name set, ready for capability checks downstream
func (d *CoreDevice) Extensions() *CoreNameSet {
	return d.extensions
}

func (d *CoreDevice) Features() vk.PhysicalDeviceFeatures {
	return d.features
}

//Blocks until all queues on the device are idle
func (d *CoreDevice) WaitIdle() {
	if d.handle != nil {
		vk.DeviceWaitIdle(d.handle)
	}
}

func (d *CoreDevice) Destroy() {
	if d.handle != nil {
		vk.DeviceWaitIdle(d.handle)
		vk.DestroyDevice(d.handle, nil)
		d.handle = nil
	}
}
