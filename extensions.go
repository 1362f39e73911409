package orbitalvk

import (
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

//Negotiation policy for a single extension entry
type ExtensionMode int32

const (
	ExtensionModeDisabled ExtensionMode = iota
	ExtensionModeOptional
	ExtensionModeRequired
	//Passive entries are enabled when available but never fail negotiation,
	//used for informational capabilities such as memory budget queries
	ExtensionModePassive
)

//CoreExtension holds the negotiation state of one instance or device
//extension. The revision stays 0 until the extension is enabled against an
//availability set.
type CoreExtension struct {
	name     string
	mode     ExtensionMode
	revision uint32
}

func NewCoreExtension(name string, mode ExtensionMode) *CoreExtension {
	return &CoreExtension{name: name, mode: mode}
}

func (e *CoreExtension) Name() string {
	return e.name
}

func (e *CoreExtension) Mode() ExtensionMode {
	return e.mode
}

//Changes the extension mode, may be useful after initialization when a
//capability is promoted or demoted dynamically
func (e *CoreExtension) SetMode(mode ExtensionMode) {
	e.mode = mode
}

func (e *CoreExtension) Revision() uint32 {
	return e.revision
}

func (e *CoreExtension) Enabled() bool {
	return e.revision != 0
}

func (e *CoreExtension) enable(revision uint32) {
	if revision == 0 {
		revision = 1
	}
	e.revision = revision
}

func (e *CoreExtension) disable() {
	e.revision = 0
}

//CoreNameSet is a set of extension or layer names mapped to their supported
//revision. Duplicates collapse on Add and Merge.
type CoreNameSet struct {
	names map[string]uint32
}

func NewCoreNameSet() *CoreNameSet {
	return &CoreNameSet{names: make(map[string]uint32)}
}

func (s *CoreNameSet) Add(name string) {
	s.AddRevision(name, 1)
}

func (s *CoreNameSet) AddRevision(name string, revision uint32) {
	if revision == 0 {
		revision = 1
	}
	if current, ok := s.names[name]; !ok || revision > current {
		s.names[name] = revision
	}
}

//Adds all names from the given set, avoiding duplicate entries
func (s *CoreNameSet) Merge(other *CoreNameSet) {
	for name, revision := range other.names {
		s.AddRevision(name, revision)
	}
}

//Returns the supported revision of the given name, or 0 when absent
func (s *CoreNameSet) Supports(name string) uint32 {
	return s.names[name]
}

func (s *CoreNameSet) Count() int {
	return len(s.names)
}

//Sorted name list ready to pass into instance or device create info
func (s *CoreNameSet) ToList() []string {
	list := make([]string, 0, len(s.names))
	for name := range s.names {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

//Walks the wanted entries and enables every one that this availability set
//supports and whose mode is not Disabled. Enabled names are merged into the
//given name set. Returns false when a Required entry could not be enabled,
//after processing the remaining entries so the log names every missing
//capability.
func (s *CoreNameSet) EnableExtensions(wanted []*CoreExtension, enabled *CoreNameSet) bool {
	all_enabled := true
	for _, ext := range wanted {
		if ext.Mode() == ExtensionModeDisabled {
			continue
		}
		revision := s.Supports(ext.Name())
		if revision == 0 {
			if ext.Mode() == ExtensionModeRequired {
				error_log.Printf("Required extension %s not supported", ext.Name())
				all_enabled = false
			}
			continue
		}
		ext.enable(revision)
		enabled.AddRevision(ext.Name(), revision)
	}
	return all_enabled
}

//Removes the extension from the set and zeroes its revision
func (s *CoreNameSet) DisableExtension(ext *CoreExtension) {
	delete(s.names, ext.Name())
	ext.disable()
}

//Extensions the driver asks for when creating a logical device. Swapchain
//support is the only hard requirement, everything else degrades gracefully.
type DeviceExtensionList struct {
	ExtMemoryBudget             *CoreExtension
	ExtExtendedDynamicState     *CoreExtension
	ExtDepthClipEnable          *CoreExtension
	KhrImageFormatList          *CoreExtension
	KhrSwapchain                *CoreExtension
	KhrDriverProperties         *CoreExtension
	KhrSamplerMirrorClampToEdge *CoreExtension
}

func NewDeviceExtensionList() *DeviceExtensionList {
	return &DeviceExtensionList{
		ExtMemoryBudget:             NewCoreExtension("VK_EXT_memory_budget", ExtensionModePassive),
		ExtExtendedDynamicState:     NewCoreExtension("VK_EXT_extended_dynamic_state", ExtensionModeOptional),
		ExtDepthClipEnable:          NewCoreExtension("VK_EXT_depth_clip_enable", ExtensionModeOptional),
		KhrImageFormatList:          NewCoreExtension("VK_KHR_image_format_list", ExtensionModeOptional),
		KhrSwapchain:                NewCoreExtension("VK_KHR_swapchain", ExtensionModeRequired),
		KhrDriverProperties:         NewCoreExtension("VK_KHR_driver_properties", ExtensionModeOptional),
		KhrSamplerMirrorClampToEdge: NewCoreExtension("VK_KHR_sampler_mirror_clamp_to_edge", ExtensionModeOptional),
	}
}

func (d *DeviceExtensionList) List() []*CoreExtension {
	return []*CoreExtension{
		d.ExtMemoryBudget,
		d.ExtExtendedDynamicState,
		d.ExtDepthClipEnable,
		d.KhrImageFormatList,
		d.KhrSwapchain,
		d.KhrDriverProperties,
		d.KhrSamplerMirrorClampToEdge,
	}
}

//Extensions requested at instance creation time
type InstanceExtensionList struct {
	ExtDebugUtils              *CoreExtension
	KhrGetSurfaceCapabilities2 *CoreExtension
	KhrSurface                 *CoreExtension
}

func NewInstanceExtensionList() *InstanceExtensionList {
	return &InstanceExtensionList{
		ExtDebugUtils:              NewCoreExtension("VK_EXT_debug_utils", ExtensionModeOptional),
		KhrGetSurfaceCapabilities2: NewCoreExtension("VK_KHR_get_surface_capabilities2", ExtensionModeOptional),
		KhrSurface:                 NewCoreExtension("VK_KHR_surface", ExtensionModeRequired),
	}
}

func (i *InstanceExtensionList) List() []*CoreExtension {
	return []*CoreExtension{
		i.ExtDebugUtils,
		i.KhrGetSurfaceCapabilities2,
		i.KhrSurface,
	}
}

//EnumInstanceExtensions gets the set of instance extensions available on the platform.
func EnumInstanceExtensions() (set *CoreNameSet, err error) {
	defer checkErr(&err)

	set = NewCoreNameSet()
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if isError(ret) {
		return set, NewError(ret)
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	if isError(ret) {
		return set, NewError(ret)
	}
	for _, ext := range list {
		ext.Deref()
		set.AddRevision(vk.ToString(ext.ExtensionName[:]), ext.SpecVersion)
	}
	return set, err
}

//EnumDeviceExtensions gets the set of device extensions available on the provided physical device.
func EnumDeviceExtensions(gpu vk.PhysicalDevice) (set *CoreNameSet, err error) {
	defer checkErr(&err)

	set = NewCoreNameSet()
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	if isError(ret) {
		return set, NewError(ret)
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	if isError(ret) {
		return set, NewError(ret)
	}
	for _, ext := range list {
		ext.Deref()
		set.AddRevision(vk.ToString(ext.ExtensionName[:]), ext.SpecVersion)
	}
	return set, err
}

//EnumInstanceLayers gets the set of validation layers available on the platform.
func EnumInstanceLayers() (set *CoreNameSet, err error) {
	defer checkErr(&err)

	set = NewCoreNameSet()
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if isError(ret) {
		return set, NewError(ret)
	}
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	if isError(ret) {
		return set, NewError(ret)
	}
	for _, layer := range list {
		layer.Deref()
		set.AddRevision(vk.ToString(layer.LayerName[:]), layer.ImplementationVersion)
	}
	return set, err
}
