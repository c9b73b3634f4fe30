package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/contree"
	"github.com/gekko3d/contree/gpu"
	"github.com/gekko3d/contree/shaders"
)

// App owns the window, the WebGPU device, and the per-frame loop that keeps
// the device-side tree in sync with the host tree before each dispatch.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	ComputePipeline *wgpu.ComputePipeline
	RenderPipeline  *wgpu.RenderPipeline

	StorageTexture *wgpu.Texture
	StorageView    *wgpu.TextureView
	Sampler        *wgpu.Sampler

	OutputBindGroup *wgpu.BindGroup // storage texture for the march pass
	RenderBG        *wgpu.BindGroup // fullscreen blit

	BufferManager *gpu.BufferManager
	Tree          *contree.Contree
	Materials     *contree.MaterialRegistry
	Camera        *CameraState
	Profiler      *Profiler
	Log           contree.Logger

	MouseX        float64
	MouseY        float64
	MouseCaptured bool
	DebugMode     bool

	LastTime       float64
	LastRenderTime float64
	FrameCount     int
	FPS            float64
	FPSTime        float64
}

func NewApp(window *glfw.Window, tree *contree.Contree, materials *contree.MaterialRegistry, log contree.Logger) *App {
	if log == nil {
		log = contree.NewNopLogger()
	}
	return &App{
		Window:    window,
		Tree:      tree,
		Materials: materials,
		Camera:    NewCameraState(),
		Profiler:  NewProfiler(),
		Log:       log,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)

	surface := a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))
	a.Surface = surface

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, a.Device, a.Config)

	csModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Contree March CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ContreeMarchWGSL},
	})
	if err != nil {
		return err
	}

	fsModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return err
	}

	a.ComputePipeline, err = a.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "March Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     csModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return err
	}

	a.RenderPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     fsModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	a.BufferManager = gpu.NewBufferManager(a.Device)

	a.Sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	// Initial uploads before any bind group exists.
	a.BufferManager.UpdateCamera(ident16(), ident16(), [3]float32{}, a.DebugMode)
	a.BufferManager.UpdateMaterials(a.Materials)
	a.BufferManager.Register(a.Tree)

	a.setupTextures(width, height)
	a.setupBindGroups()
	a.BufferManager.CreateBindGroups(a.ComputePipeline, a.Tree)

	a.LastTime = glfw.GetTime()
	a.Log.Infof("Renderer ready: %dx%d, format %v", width, height, format)
	return nil
}

func (a *App) setupTextures(w, h int) {
	if w == 0 || h == 0 {
		return
	}

	if a.StorageTexture != nil {
		a.StorageTexture.Release()
	}

	var err error
	a.StorageTexture, err = a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Storage Tex",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
		SampleCount:   1,
	})
	if err != nil {
		panic(err)
	}
	a.StorageView, err = a.StorageTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}
}

func (a *App) setupBindGroups() {
	var err error

	a.OutputBindGroup, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.ComputePipeline.GetBindGroupLayout(2),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.StorageView},
		},
	})
	if err != nil {
		panic(err)
	}

	a.RenderBG, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.RenderPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.StorageView},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	if err != nil {
		panic(err)
	}
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
		a.setupTextures(w, h)
		a.setupBindGroups()
	}
}

func (a *App) Update() {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now

	a.processInput(dt)

	a.Profiler.BeginScope("sync")
	cmds := a.Tree.Mirror().Drain()
	recreated := a.BufferManager.ApplyWrites(cmds)
	a.BufferManager.UpdateTreeParams(a.Tree)
	if recreated {
		a.BufferManager.CreateBindGroups(a.ComputePipeline, a.Tree)
		a.Log.Debugf("Node buffers reallocated, bind groups rebuilt")
	}
	a.Profiler.EndScope("sync")
	a.Profiler.SetCount("writes", len(cmds))
	a.Profiler.SetCount("inner", a.Tree.InnerCount())
	a.Profiler.SetCount("leaf", a.Tree.LeafCount())

	view := a.Camera.GetViewMatrix()
	aspect := float32(a.Config.Width) / float32(a.Config.Height)
	if aspect == 0 {
		aspect = 1.0
	}
	proj := mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 1000.0)

	a.BufferManager.UpdateCamera([16]float32(view.Inv()), [16]float32(proj.Inv()), a.Camera.Position, a.DebugMode)
}

func (a *App) processInput(dt float32) {
	move := a.Camera.Speed * dt
	if a.Window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		move *= 4
	}
	if a.Window.GetKey(glfw.KeyW) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Add(a.Camera.GetForward().Mul(move))
	}
	if a.Window.GetKey(glfw.KeyS) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Sub(a.Camera.GetForward().Mul(move))
	}
	if a.Window.GetKey(glfw.KeyD) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Add(a.Camera.GetRight().Mul(move))
	}
	if a.Window.GetKey(glfw.KeyA) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Sub(a.Camera.GetRight().Mul(move))
	}
	if a.Window.GetKey(glfw.KeyE) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Add(mgl32.Vec3{0, 0, move})
	}
	if a.Window.GetKey(glfw.KeyQ) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Sub(mgl32.Vec3{0, 0, move})
	}
}

func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Log.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	// March Pass
	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(a.ComputePipeline)
	cPass.SetBindGroup(0, a.BufferManager.BindGroup0, nil)
	cPass.SetBindGroup(1, a.BufferManager.BindGroup1, nil)
	cPass.SetBindGroup(2, a.OutputBindGroup, nil)

	wgX := (a.Config.Width + 7) / 8
	wgY := (a.Config.Height + 7) / 8
	cPass.DispatchWorkgroups(wgX, wgY, 1)
	if err := cPass.End(); err != nil {
		a.Log.Errorf("March pass End failed: %v", err)
	}

	// Blit
	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(a.RenderPipeline)
	rPass.SetBindGroup(0, a.RenderBG, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		a.Log.Errorf("Render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Log.Errorf("Encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
			if a.DebugMode {
				a.Log.Debugf("FPS: %.1f\n%s", a.FPS, a.Profiler.StatsString())
			}
			a.Window.SetTitle(fmt.Sprintf("Contree (%.0f fps)", a.FPS))
		}
	}
	a.LastRenderTime = now
}

func ident16() [16]float32 {
	return [16]float32(mgl32.Ident4())
}
