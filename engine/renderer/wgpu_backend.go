package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"scopeview/engine/renderer/shader"

	"github.com/cogentcore/webgpu/wgpu"
)

// offscreenFormat is the fixed color format of every offscreen render target.
// Pipelines rendering into offscreen surfaces are compiled against it once.
const offscreenFormat = wgpu.TextureFormatRGBA8UnormSrgb

type wgpuBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surface       *wgpu.Surface
	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	overlayPipeline *wgpu.RenderPipeline

	blitPipeline *wgpu.RenderPipeline
	blitLayout   *wgpu.BindGroupLayout
	blitSampler  *wgpu.Sampler
	blitGroups   map[*wgpuTexture]*wgpu.BindGroup
}

var _ Backend = &wgpuBackend{}

// NewBackend creates the shared WebGPU device backing both the production and
// presentation contexts. Locks the calling goroutine to its OS thread since
// surface creation must happen on the thread owning the native window.
//
// Parameters:
//   - surfaceDescriptor: the native window surface descriptor, or nil for a
//     headless backend that can only render offscreen
//   - opts: optional builder options to apply
//
// Returns:
//   - Backend: the initialized backend
//   - error: ErrInitializationFailed wrapping the cause when no adapter or
//     device could be acquired
func NewBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...BackendOption) (Backend, error) {
	runtime.LockOSThread()
	b := &wgpuBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		blitGroups:  make(map[*wgpuTexture]*wgpu.BindGroup),
	}
	cfg := &backendConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if surfaceDescriptor != nil {
		b.surface = b.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: requesting adapter: %v", ErrInitializationFailed, err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Scope Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: requesting device: %v", ErrInitializationFailed, err)
	}
	b.device = d
	b.queue = d.GetQueue()

	if cfg.presentMode != nil {
		b.presentMode = *cfg.presentMode
	}

	return b, nil
}

func (b *wgpuBackend) CreateColorTarget(label string, width, height uint32) (Texture, error) {
	return b.createTarget(label, width, height, offscreenFormat)
}

func (b *wgpuBackend) CreateDepthTarget(label string, width, height uint32) (Texture, error) {
	return b.createTarget(label, width, height, wgpu.TextureFormatDepth24Plus)
}

func (b *wgpuBackend) createTarget(label string, width, height uint32, format wgpu.TextureFormat) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %s: zero dimension %dx%d", ErrAllocationFailed, label, width, height)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAllocationFailed, label, err)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: %s view: %v", ErrAllocationFailed, label, err)
	}

	return &wgpuTexture{
		backend: b,
		label:   label,
		width:   width,
		height:  height,
		texture: tex,
		view:    view,
	}, nil
}

func (b *wgpuBackend) BeginPass(color, depth Texture, clear ClearColor) (Pass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	colorTex, ok := color.(*wgpuTexture)
	if !ok || colorTex.view == nil {
		return nil, fmt.Errorf("begin pass: color target is not a live texture")
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("begin pass: creating command encoder: %w", err)
	}

	descriptor := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    colorTex.view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: clear.R,
					G: clear.G,
					B: clear.B,
					A: clear.A,
				},
			},
		},
	}
	if depthTex, ok := depth.(*wgpuTexture); ok && depthTex != nil && depthTex.view != nil {
		descriptor.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depthTex.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}

	pass := encoder.BeginRenderPass(descriptor)

	return &wgpuPass{
		backend: b,
		encoder: encoder,
		pass:    pass,
	}, nil
}

func (b *wgpuBackend) ConfigurePresent(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	// The blit pipeline targets the surface format, which may change across
	// reconfigurations. Drop it so the next composite rebuilds it.
	if b.blitPipeline != nil {
		b.blitPipeline.Release()
		b.blitPipeline = nil
	}
}

func (b *wgpuBackend) Composite(frame Texture, clear ClearColor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return ErrNoPresentTarget
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("composite: acquiring surface texture: %w", err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("composite: creating surface view: %w", err)
	}
	defer func() {
		view.Release()
		surfaceTexture.Release()
	}()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("composite: creating command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: clear.R,
					G: clear.G,
					B: clear.B,
					A: clear.A,
				},
			},
		},
	})

	if frame != nil {
		frameTex, ok := frame.(*wgpuTexture)
		if !ok || frameTex.view == nil {
			pass.End()
			pass.Release()
			return fmt.Errorf("composite: frame is not a live texture")
		}
		if err := b.ensureBlitPipeline(); err != nil {
			pass.End()
			pass.Release()
			return err
		}
		bindGroup, err := b.blitGroup(frameTex)
		if err != nil {
			pass.End()
			pass.Release()
			return err
		}
		pass.SetPipeline(b.blitPipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
	}

	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("composite: finishing encoder: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.surface.Present()

	return nil
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for tex, group := range b.blitGroups {
		group.Release()
		delete(b.blitGroups, tex)
	}
	if b.blitPipeline != nil {
		b.blitPipeline.Release()
		b.blitPipeline = nil
	}
	if b.blitLayout != nil {
		b.blitLayout.Release()
		b.blitLayout = nil
	}
	if b.blitSampler != nil {
		b.blitSampler.Release()
		b.blitSampler = nil
	}
	if b.overlayPipeline != nil {
		b.overlayPipeline.Release()
		b.overlayPipeline = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// ensureOverlayPipeline lazily builds the line-list pipeline used for drawing
// scope overlay geometry into offscreen targets. Caller must hold b.mu.
func (b *wgpuBackend) ensureOverlayPipeline() error {
	if b.overlayPipeline != nil {
		return nil
	}

	vertex, fragment := shader.Overlay()
	vs, fs, err := b.compilePair(vertex, fragment)
	if err != nil {
		return err
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "Overlay Pipeline Layout",
	})
	if err != nil {
		return fmt.Errorf("creating overlay pipeline layout: %w", err)
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Overlay Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertex.EntryPoint(),
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: 24,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 8, ShaderLocation: 1},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragment.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    offscreenFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyLineList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("creating overlay pipeline: %w", err)
	}

	b.overlayPipeline = created
	return nil
}

// ensureBlitPipeline lazily builds the fullscreen textured-triangle pipeline
// used to composite a published frame into the window surface. Caller must
// hold b.mu and have configured the surface.
func (b *wgpuBackend) ensureBlitPipeline() error {
	if b.blitPipeline != nil {
		return nil
	}
	if b.surfaceFormat == nil {
		return fmt.Errorf("composite: surface not configured")
	}

	vertex, fragment := shader.Blit()
	vs, fs, err := b.compilePair(vertex, fragment)
	if err != nil {
		return err
	}

	if b.blitLayout == nil {
		layout, layoutErr := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label: "Blit Bind Group Layout",
			Entries: []wgpu.BindGroupLayoutEntry{
				{
					Binding:    0,
					Visibility: wgpu.ShaderStageFragment,
					Texture: wgpu.TextureBindingLayout{
						SampleType:    wgpu.TextureSampleTypeFloat,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				},
				{
					Binding:    1,
					Visibility: wgpu.ShaderStageFragment,
					Sampler: wgpu.SamplerBindingLayout{
						Type: wgpu.SamplerBindingTypeFiltering,
					},
				},
			},
		})
		if layoutErr != nil {
			return fmt.Errorf("creating blit bind group layout: %w", layoutErr)
		}
		b.blitLayout = layout
	}

	if b.blitSampler == nil {
		samp, sampErr := b.device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         "Blit Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMinClamp:   0.0,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		})
		if sampErr != nil {
			return fmt.Errorf("creating blit sampler: %w", sampErr)
		}
		b.blitSampler = samp
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.blitLayout},
	})
	if err != nil {
		return fmt.Errorf("creating blit pipeline layout: %w", err)
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Blit Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertex.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragment.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("creating blit pipeline: %w", err)
	}

	b.blitPipeline = created
	return nil
}

func (b *wgpuBackend) compilePair(vertex, fragment shader.Shader) (vs, fs *wgpu.ShaderModule, err error) {
	vs, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertex.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertex.Source(),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compiling %s: %w", vertex.Key(), err)
	}
	fs, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: fragment.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fragment.Source(),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compiling %s: %w", fragment.Key(), err)
	}
	return vs, fs, nil
}

// blitGroup returns the cached bind group sampling the given frame texture,
// creating it on first use. Caller must hold b.mu.
func (b *wgpuBackend) blitGroup(tex *wgpuTexture) (*wgpu.BindGroup, error) {
	if group, ok := b.blitGroups[tex]; ok {
		return group, nil
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  tex.label + " Blit Bind Group",
		Layout: b.blitLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: tex.view},
			{Binding: 1, Sampler: b.blitSampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating blit bind group for %s: %w", tex.label, err)
	}

	b.blitGroups[tex] = group
	return group, nil
}

// forgetFrame drops cached presentation state referencing a texture that is
// about to be destroyed.
func (b *wgpuBackend) forgetFrame(tex *wgpuTexture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if group, ok := b.blitGroups[tex]; ok {
		group.Release()
		delete(b.blitGroups, tex)
	}
}

type wgpuTexture struct {
	backend *wgpuBackend
	label   string
	width   uint32
	height  uint32
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string  { return t.label }
func (t *wgpuTexture) Width() uint32  { return t.width }
func (t *wgpuTexture) Height() uint32 { return t.height }

func (t *wgpuTexture) Release() {
	if t.texture == nil {
		return
	}
	t.backend.forgetFrame(t)
	t.view.Release()
	t.texture.Release()
	t.view = nil
	t.texture = nil
}

type wgpuPass struct {
	backend *wgpuBackend
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
	buffers []*wgpu.Buffer
	ended   bool
}

var _ Pass = &wgpuPass{}

func (p *wgpuPass) DrawLines(vertexData []byte, vertexCount uint32) error {
	if p.ended {
		return fmt.Errorf("draw lines: pass already ended")
	}
	if vertexCount == 0 {
		return nil
	}

	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()

	if err := p.backend.ensureOverlayPipeline(); err != nil {
		return err
	}

	buf, err := p.backend.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Overlay Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return fmt.Errorf("draw lines: creating vertex buffer: %w", err)
	}
	p.backend.queue.WriteBuffer(buf, 0, vertexData)
	p.buffers = append(p.buffers, buf)

	p.pass.SetPipeline(p.backend.overlayPipeline)
	p.pass.SetVertexBuffer(0, buf, 0, wgpu.WholeSize)
	p.pass.Draw(vertexCount, 1, 0, 0)

	return nil
}

func (p *wgpuPass) Encoder() any {
	return p.pass
}

func (p *wgpuPass) End() error {
	if p.ended {
		return nil
	}
	p.ended = true

	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()

	p.pass.End()
	p.pass.Release()

	commandBuffer, err := p.encoder.Finish(nil)
	if err != nil {
		p.encoder.Release()
		p.releaseBuffers()
		return fmt.Errorf("end pass: finishing encoder: %w", err)
	}
	p.backend.queue.Submit(commandBuffer)
	commandBuffer.Release()
	p.encoder.Release()

	// Block until the submitted work completes. Publishing a surface without
	// this wait would let the presentation context sample a half-drawn frame.
	p.backend.device.Poll(true, nil)

	p.releaseBuffers()
	return nil
}

func (p *wgpuPass) releaseBuffers() {
	for _, buf := range p.buffers {
		buf.Release()
	}
	p.buffers = nil
}
