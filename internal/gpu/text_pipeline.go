package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/textbrush/internal/vertex"
	"github.com/gogpu/wgpu/hal"
)

// Byte sizes per quad.
const (
	quadVertexBytes = vertex.VerticesPerQuad * vertex.Size
	quadIndexBytes  = vertex.IndicesPerQuad * 4
)

// PipelineStats contains pipeline statistics.
type PipelineStats struct {
	State         State
	QuadCapacity  int
	Quads         int
	BufferGrows   uint64
	BindGroups    uint64
	Draws         uint64
	VertexUploads uint64
}

// Pipeline manages GPU resources for glyph rendering via a vertex+fragment
// render pipeline. All glyphs of a frame are drawn with one indexed draw
// call into the caller's render pass.
//
// Architecture:
//
//	Pipeline owns shader, layouts, pipeline, sampler, uniform buffer
//	Pipeline owns growable vertex and index buffers
//	the bind group is rebuilt when the atlas texture view changes
//
// Pipeline is not safe for concurrent use.
type Pipeline struct {
	device hal.Device
	queue  hal.Queue
	cfg    PipelineConfig

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline
	sampler       hal.Sampler

	uniformBuf hal.Buffer
	vertBuf    hal.Buffer
	idxBuf     hal.Buffer
	quadCap    int

	bindGroup    hal.BindGroup
	boundTexture *AtlasTexture
	boundVersion uint64

	state      State
	quads      int
	indexCount uint32
	uniform    []byte

	bufferGrows, bindGroups, draws, uploads uint64
}

// NewPipeline compiles the glyph shader and creates the render pipeline
// and initial buffers.
func NewPipeline(device hal.Device, queue hal.Queue, cfg PipelineConfig) (*Pipeline, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{device: device, queue: queue, cfg: cfg}
	if err := p.createPipeline(); err != nil {
		p.Destroy()
		return nil, err
	}
	if err := p.createBuffers(cfg.InitialQuadCapacity); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// createPipeline compiles the shader and creates the render pipeline with
// premultiplied alpha blending.
func (p *Pipeline) createPipeline() error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "text_shader",
		Source: hal.ShaderSource{WGSL: textShaderSource},
	})
	if err != nil {
		return fmt.Errorf("gpu: compile text shader: %w", err)
	}
	p.shader = shader

	// Bind group layout:
	//   Binding 0: Globals (uniform buffer, vertex+fragment)
	//   Binding 1: atlas texture (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	uniformLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "text_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create text uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "text_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: create text pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	// Quads are pixel aligned, so linear filtering only matters under a
	// custom transform.
	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "text_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("gpu: create text sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "text_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: vertexEntryPoint,
			Buffers:    textVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: fragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    p.cfg.Format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: p.depthStencilState(),
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: p.cfg.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create text pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// depthStencilState returns the depth test for z-ordered sections, or
// nil when the render pass has no depth attachment. The stencil test is
// Always/Keep; text does not interact with stencil.
func (p *Pipeline) depthStencilState() *hal.DepthStencilState {
	if p.cfg.DepthStencilFormat == gputypes.TextureFormatUndefined {
		return nil
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            p.cfg.DepthStencilFormat,
		DepthWriteEnabled: true,
		DepthCompare:      gputypes.CompareFunctionLessEqual,
		StencilFront:      keep,
		StencilBack:       keep,
		StencilReadMask:   0x00,
		StencilWriteMask:  0x00,
	}
}

// textVertexLayout returns the vertex buffer layout of the glyph shader.
// Matches VertexInput in text.wgsl:
//
//	location 0: position (vec3<f32>)
//	location 1: tex_coord (vec2<f32>)
//	location 2: color (vec4<f32>)
func textVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertex.Size,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1}, // tex_coord
				{Format: gputypes.VertexFormatFloat32x4, Offset: 20, ShaderLocation: 2}, // color
			},
		},
	}
}

// createBuffers allocates the uniform buffer and vertex and index buffers
// for quads glyphs.
func (p *Pipeline) createBuffers(quads int) error {
	uniformBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "text_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create text uniform buffer: %w", err)
	}
	p.uniformBuf = uniformBuf
	return p.allocateQuads(quads)
}

// allocateQuads replaces the vertex and index buffers with buffers for
// quads glyphs.
func (p *Pipeline) allocateQuads(quads int) error {
	vertBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "text_vertices",
		Size:  uint64(quads * quadVertexBytes), //nolint:gosec // quads is positive
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create text vertex buffer for %d quads: %w", quads, err)
	}
	idxBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "text_indices",
		Size:  uint64(quads * quadIndexBytes), //nolint:gosec // quads is positive
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		p.device.DestroyBuffer(vertBuf)
		return fmt.Errorf("gpu: create text index buffer for %d quads: %w", quads, err)
	}

	p.destroyQuadBuffers()
	p.vertBuf, p.idxBuf = vertBuf, idxBuf
	p.quadCap = quads
	return nil
}

// ResizeViewport sets the orthographic projection for a width x height
// pixel viewport, replacing any custom transform.
func (p *Pipeline) ResizeViewport(width, height float32) error {
	if !validViewport(width, height) {
		return fmt.Errorf("%w: %vx%v", ErrInvalidViewport, width, height)
	}
	return p.SetTransform(Ortho(width, height))
}

// SetTransform replaces the projection with the column-major matrix m,
// which maps (x, y, z, 1) in screen pixels to clip space.
func (p *Pipeline) SetTransform(m [16]float32) error {
	p.uniform = encodeMatrix(p.uniform[:0], m)
	if err := p.queue.WriteBuffer(p.uniformBuf, 0, p.uniform); err != nil {
		return fmt.Errorf("gpu: write text uniforms: %w", err)
	}
	if p.state == StateUnbound {
		p.state = StateBound
	}
	return nil
}

// UploadVertices writes the mesh into the vertex and index buffers,
// doubling their capacity when it is exceeded. Buffers never shrink.
func (p *Pipeline) UploadVertices(m vertex.Mesh) error {
	if p.state == StateUnbound {
		return &StateError{Op: "UploadVertices", State: p.state}
	}

	quads := m.Quads()
	if quads > p.quadCap {
		newCap := max(p.quadCap, 1)
		for newCap < quads {
			newCap *= 2
		}
		if err := p.allocateQuads(newCap); err != nil {
			return err
		}
		p.bufferGrows++
		slogger().Debug("text buffers grown", "quads", quads, "capacity", newCap)
	}

	if quads > 0 {
		if err := p.queue.WriteBuffer(p.vertBuf, 0, m.VertexBytes()); err != nil {
			return fmt.Errorf("gpu: write text vertices: %w", err)
		}
		if err := p.queue.WriteBuffer(p.idxBuf, 0, m.IndexBytes()); err != nil {
			return fmt.Errorf("gpu: write text indices: %w", err)
		}
		p.uploads++
	}

	p.quads = quads
	p.indexCount = uint32(len(m.Indices)) //nolint:gosec // bounded by buffer capacity
	p.state = StateReady
	return nil
}

// Reuse marks the previously uploaded vertices ready to be drawn again.
func (p *Pipeline) Reuse() error {
	switch p.state {
	case StateReady:
		return nil
	case StateDrawn:
		p.state = StateReady
		return nil
	default:
		return &StateError{Op: "Reuse", State: p.state}
	}
}

// Invalidate drops the uploaded vertices. The next Draw fails until
// vertices are uploaded again.
func (p *Pipeline) Invalidate() {
	if p.state == StateReady || p.state == StateDrawn {
		p.state = StateBound
	}
}

// Draw records the glyph draw into rp. It is only valid in StateReady; in
// any other state it returns a *StateError and records nothing. With no
// quads uploaded it records nothing and succeeds.
func (p *Pipeline) Draw(rp hal.RenderPassEncoder, tex *AtlasTexture) error {
	if p.state != StateReady {
		return &StateError{Op: "Draw", State: p.state}
	}
	if p.indexCount == 0 {
		p.state = StateDrawn
		return nil
	}
	if tex == nil || tex.View() == nil {
		return ErrNilAtlasTexture
	}
	if err := p.ensureBindGroup(tex); err != nil {
		return err
	}

	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, p.vertBuf, 0)
	rp.SetIndexBuffer(p.idxBuf, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(p.indexCount, 1, 0, 0, 0)

	p.draws++
	p.state = StateDrawn
	return nil
}

// ensureBindGroup recreates the bind group when the atlas texture view
// was replaced.
func (p *Pipeline) ensureBindGroup(tex *AtlasTexture) error {
	if p.bindGroup != nil && p.boundTexture == tex && p.boundVersion == tex.Version() {
		return nil
	}
	bindGroup, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "text_bind",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniformBuf.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: tex.View().NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create text bind group: %w", err)
	}
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
	}
	p.bindGroup = bindGroup
	p.boundTexture = tex
	p.boundVersion = tex.Version()
	p.bindGroups++
	return nil
}

// State returns the current pipeline state.
func (p *Pipeline) State() State { return p.state }

// QuadCapacity returns the number of quads the buffers can hold.
func (p *Pipeline) QuadCapacity() int { return p.quadCap }

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		State:         p.state,
		QuadCapacity:  p.quadCap,
		Quads:         p.quads,
		BufferGrows:   p.bufferGrows,
		BindGroups:    p.bindGroups,
		Draws:         p.draws,
		VertexUploads: p.uploads,
	}
}

// Destroy releases all GPU resources held by the pipeline in reverse
// creation order. Safe to call multiple times.
func (p *Pipeline) Destroy() {
	if p.device == nil {
		return
	}
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
		p.boundTexture = nil
	}
	p.destroyQuadBuffers()
	if p.uniformBuf != nil {
		p.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.uniformLayout != nil {
		p.device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
	p.state = StateUnbound
}

func (p *Pipeline) destroyQuadBuffers() {
	if p.vertBuf != nil {
		p.device.DestroyBuffer(p.vertBuf)
		p.vertBuf = nil
	}
	if p.idxBuf != nil {
		p.device.DestroyBuffer(p.idxBuf)
		p.idxBuf = nil
	}
	p.quadCap = 0
}
