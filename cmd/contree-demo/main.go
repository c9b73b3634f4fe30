package main

import (
	"flag"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/contree"
	"github.com/gekko3d/contree/app"
)

func init() {
	runtime.LockOSThread()
}

func buildScene(tree *contree.Contree) {
	// Ground slab
	for x := -12; x <= 12; x++ {
		for y := -12; y <= 12; y++ {
			tree.Insert(mgl32.Vec3{float32(x), float32(y), 0}, 1)
		}
	}

	// A few pillars
	for _, base := range []mgl32.Vec3{{-6, -6, 0}, {6, -6, 0}, {-6, 6, 0}, {6, 6, 0}} {
		for z := 1; z <= 5; z++ {
			tree.Insert(mgl32.Vec3{base.X(), base.Y(), float32(z)}, 2)
		}
	}

	// Lantern in the middle
	tree.Insert(mgl32.Vec3{0, 0, 3}, 3)
	tree.SetLight(mgl32.Vec3{0, 0, 3}, true)
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug mode (step heatmap, frame stats)")
	flag.Parse()

	logger := contree.NewDefaultLogger("contree", *debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Contree", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	materials := contree.NewMaterialRegistry()
	materials.Set(1, contree.Material{Color: [4]float32{0.45, 0.5, 0.4, 1}})
	materials.Set(2, contree.Material{Color: [4]float32{0.6, 0.55, 0.5, 1}, Reflectivity: 0.1})
	materials.Set(3, contree.Material{Color: [4]float32{1, 0.9, 0.6, 1}, Traits: contree.TraitEmissive})

	tree := contree.NewContree(8, contree.NewMirror(), logger)
	buildScene(tree)

	application := app.NewApp(window, tree, materials, logger)
	application.DebugMode = *debug
	if err := application.Init(); err != nil {
		panic(err)
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if application.MouseCaptured {
			dx := float32(xpos - application.MouseX)
			dy := float32(ypos - application.MouseY)
			application.Camera.Yaw += dx * application.Camera.Sensitivity
			application.Camera.AddPitch(-dy * application.Camera.Sensitivity)
		}
		application.MouseX = xpos
		application.MouseY = ypos
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyTab && action == glfw.Press {
			application.MouseCaptured = !application.MouseCaptured
			if application.MouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
