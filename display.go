package orbitalvk

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

//VideoOutput is the display subsystem boundary. The core calls into it only
//to obtain the renderable surface at presenter creation time, buffer
//registration and flip status polling live outside this module.
type VideoOutput interface {
	GetSurface(instance vk.Instance) (vk.Surface, error)
	Extent() vk.Extent2D
}

//CoreVideoOut emulates the console display with a GLFW window. The window is
//created by the host application with ClientAPI hint NoAPI, this type only
//derives the Vulkan surface from it.
type CoreVideoOut struct {
	window  *glfw.Window
	surface vk.Surface
}

func NewCoreVideoOut(window *glfw.Window) *CoreVideoOut {
	return &CoreVideoOut{window: window, surface: vk.NullSurface}
}

//Creates the window surface on first call and caches it for the lifetime of
//the video out
func (core *CoreVideoOut) GetSurface(instance vk.Instance) (vk.Surface, error) {
	if core.surface != vk.NullSurface {
		return core.surface, nil
	}
	surface_ptr, err := core.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("failed to create vulkan window surface: %w", err)
	}
	core.surface = vk.SurfaceFromPointer(surface_ptr)
	return core.surface, nil
}

func (core *CoreVideoOut) Extent() vk.Extent2D {
	width, height := core.window.GetFramebufferSize()
	return vk.Extent2D{Width: uint32(width), Height: uint32(height)}
}

//Required instance extensions for presenting to windows of this host,
//forwarded into NewCoreInstance by the driver bootstrap
func (core *CoreVideoOut) RequiredInstanceExtensions() []string {
	return core.window.GetRequiredInstanceExtensions()
}
