package orbitalvk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestPickFormat(t *testing.T) {
	available := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}

	//Exact format plus color space match
	preferred := []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	if got := pickFormat(available, preferred); got.Format != vk.FormatB8g8r8a8Srgb {
		t.Errorf("pickFormat: got format %d, want the exact preferred match", got.Format)
	}

	//Format-only match when no color space agrees
	preferred = []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpace(1000104002)},
	}
	got := pickFormat(available, preferred)
	if got.Format != vk.FormatR8g8b8a8Unorm || got.ColorSpace != vk.ColorSpaceSrgbNonlinear {
		t.Errorf("pickFormat: got (%d, %d), want the format-only match with the surface color space",
			got.Format, got.ColorSpace)
	}

	//No preference agrees, first reported format wins
	preferred = []vk.SurfaceFormat{{Format: vk.FormatR16g16b16a16Sfloat}}
	if got := pickFormat(available, preferred); got != available[0] {
		t.Errorf("pickFormat: got format %d, want the first available", got.Format)
	}
}

func TestPickFormatUnconstrainedSurface(t *testing.T) {
	//A single undefined entry means the surface takes anything
	unconstrained := []vk.SurfaceFormat{{Format: vk.FormatUndefined}}
	preferred := []vk.SurfaceFormat{
		{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	if got := pickFormat(unconstrained, preferred); got != preferred[0] {
		t.Errorf("pickFormat: unconstrained surface ignored the preferred format, got %d", got.Format)
	}

	fallback := pickFormat(unconstrained, nil)
	if fallback.Format != vk.FormatB8g8r8a8Unorm || fallback.ColorSpace != vk.ColorSpaceSrgbNonlinear {
		t.Errorf("pickFormat: got (%d, %d), want the BGRA8 fallback", fallback.Format, fallback.ColorSpace)
	}

	if got := pickFormat(nil, nil); got.Format != vk.FormatB8g8r8a8Unorm {
		t.Errorf("pickFormat: empty format list gave %d, want the BGRA8 fallback", got.Format)
	}
}

func TestPickPresentMode(t *testing.T) {
	available := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}

	preferred := []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate}
	if got := pickPresentMode(available, preferred); got != vk.PresentModeMailbox {
		t.Errorf("pickPresentMode: got %d, want mailbox", got)
	}

	//FIFO support is guaranteed, it is the fallback for unsupported wishes
	preferred = []vk.PresentMode{vk.PresentModeImmediate}
	if got := pickPresentMode(available, preferred); got != vk.PresentModeFifo {
		t.Errorf("pickPresentMode: got %d, want the FIFO fallback", got)
	}
	if got := pickPresentMode(available, nil); got != vk.PresentModeFifo {
		t.Errorf("pickPresentMode: got %d, want the FIFO fallback", got)
	}
}

func TestPickImageExtent(t *testing.T) {
	//Surface dictates the extent
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 1920, Height: 1080},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	got := pickImageExtent(caps, vk.Extent2D{Width: 1280, Height: 720})
	if got.Width != 1920 || got.Height != 1080 {
		t.Errorf("pickImageExtent: got %dx%d, want the surface dictated 1920x1080", got.Width, got.Height)
	}

	//Surface leaves the choice to the swapchain, desired size is clamped
	caps.CurrentExtent = vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32}
	got = pickImageExtent(caps, vk.Extent2D{Width: 8192, Height: 0})
	if got.Width != 4096 || got.Height != 1 {
		t.Errorf("pickImageExtent: got %dx%d, want the clamped 4096x1", got.Width, got.Height)
	}
}

func TestPickImageCount(t *testing.T) {
	caps := vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}

	//Zero asks for one image of headroom above the minimum
	if got := pickImageCount(caps, 0); got != 3 {
		t.Errorf("pickImageCount: got %d for the default, want min+1", got)
	}
	if got := pickImageCount(caps, 1); got != 2 {
		t.Errorf("pickImageCount: got %d, want the clamped minimum 2", got)
	}
	if got := pickImageCount(caps, 16); got != 8 {
		t.Errorf("pickImageCount: got %d, want the clamped maximum 8", got)
	}

	//Zero max means the surface imposes no upper limit
	caps.MaxImageCount = 0
	if got := pickImageCount(caps, 16); got != 16 {
		t.Errorf("pickImageCount: got %d, unbounded surface must honor the request", got)
	}
}
