// Package platform wraps the glfw window the renderer presents to.
package platform

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

// Init initializes glfw. It must run on the main, locked OS thread.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("GLFW Vulkan loader not found")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

// Window is a resizable glfw window without a client API. Escape closes it.
type Window struct {
	win     *glfw.Window
	resized bool
}

func NewWindow(width, height int, title string) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	w := &Window{win: win}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		w.resized = true
	})
	win.SetKeyCallback(func(gw *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.SetShouldClose(true)
		}
	})
	return w, nil
}

func (w *Window) Destroy() {
	w.win.Destroy()
}

// Extent is the framebuffer size in pixels, zero while minimized.
func (w *Window) Extent() hal.Extent {
	return extentOf(w.win.GetFramebufferSize())
}

func extentOf(width, height int) hal.Extent {
	if width <= 0 || height <= 0 {
		return hal.Extent{}
	}
	return hal.Extent{Width: uint32(width), Height: uint32(height)}
}

func (w *Window) WasResized() bool { return w.resized }

func (w *Window) ResetResized() { w.resized = false }

func (w *Window) PollEvents() { glfw.PollEvents() }

func (w *Window) WaitEvents() { glfw.WaitEvents() }

func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

func (w *Window) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.Surface(vulkan.NullHandle), err
	}
	return vulkan.SurfaceFromPointer(ptr), nil
}
