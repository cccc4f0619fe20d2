package gpu

import (
	"errors"
	"strings"
	"testing"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/internal/vertex"
	"github.com/gogpu/textbrush/layout"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// recordingPass records the commands of a render pass.
type recordingPass struct {
	noop.RenderPassEncoder
	calls      []string
	indexCount uint32
	format     gputypes.IndexFormat
}

func (r *recordingPass) SetPipeline(hal.RenderPipeline) { r.calls = append(r.calls, "SetPipeline") }

func (r *recordingPass) SetBindGroup(uint32, hal.BindGroup, []uint32) {
	r.calls = append(r.calls, "SetBindGroup")
}

func (r *recordingPass) SetVertexBuffer(uint32, hal.Buffer, uint64) {
	r.calls = append(r.calls, "SetVertexBuffer")
}

func (r *recordingPass) SetIndexBuffer(_ hal.Buffer, format gputypes.IndexFormat, _ uint64) {
	r.calls = append(r.calls, "SetIndexBuffer")
	r.format = format
}

func (r *recordingPass) DrawIndexed(indexCount, _, _ uint32, _ int32, _ uint32) {
	r.calls = append(r.calls, "DrawIndexed")
	r.indexCount = indexCount
}

func newTestPipeline(t *testing.T, cfg PipelineConfig) (*Pipeline, *AtlasTexture, hal.Device) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	p, err := NewPipeline(device, queue, cfg)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	t.Cleanup(p.Destroy)

	tex, err := NewAtlasTexture(device, queue, FormatAlpha8)
	if err != nil {
		t.Fatalf("NewAtlasTexture() error = %v", err)
	}
	if err := tex.Resize(256, 256); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	t.Cleanup(tex.Destroy)
	return p, tex, device
}

func meshOf(n int) vertex.Mesh {
	glyphs := make([]vertex.Glyph, n)
	for i := range glyphs {
		x := float32(i * 10)
		glyphs[i] = vertex.Glyph{
			Screen: layout.Rect{MinX: x, MinY: 0, MaxX: x + 8, MaxY: 12},
			UV:     atlas.UVRect{U0: 0, V0: 0, U1: 0.1, V1: 0.1},
			Color:  [4]float32{1, 1, 1, 1},
			Clip:   layout.Rect{MinX: -1e9, MinY: -1e9, MaxX: 1e9, MaxY: 1e9},
		}
	}
	return vertex.NewBuilder().Build(glyphs)
}

// readBuffer maps a noop buffer and returns a copy of its contents.
func readBuffer(t *testing.T, device hal.Device, buf hal.Buffer, size int) []byte {
	t.Helper()
	m, err := device.MapBuffer(buf, 0, uint64(size))
	if err != nil {
		t.Fatalf("MapBuffer() error = %v", err)
	}
	defer func() { _ = device.UnmapBuffer(buf) }()
	return append([]byte(nil), unsafe.Slice((*byte)(m.Ptr), size)...)
}

func TestShaderSource(t *testing.T) {
	source := TextShaderSource()
	if source == "" {
		t.Fatal("text shader source is empty")
	}
	for _, want := range []string{
		"@vertex", "@fragment", vertexEntryPoint, fragmentEntryPoint,
		"@group(0) @binding(0)", "texture_2d<f32>", "sampler", "textureSample",
	} {
		if !strings.Contains(source, want) {
			t.Errorf("shader source missing %q", want)
		}
	}
}

func TestValidateShader(t *testing.T) {
	n, err := ValidateShader()
	if err != nil {
		t.Fatalf("ValidateShader() error = %v", err)
	}
	if n == 0 {
		t.Error("ValidateShader() produced an empty SPIR-V module")
	}
}

func TestPipelineConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*PipelineConfig)
		field string
	}{
		{"default", func(*PipelineConfig) {}, ""},
		{"no format", func(c *PipelineConfig) { c.Format = gputypes.TextureFormatUndefined }, "Format"},
		{"samples", func(c *PipelineConfig) { c.SampleCount = 2 }, "SampleCount"},
		{"capacity", func(c *PipelineConfig) { c.InitialQuadCapacity = 0 }, "InitialQuadCapacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mod(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("Validate() error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestNewPipelineNilDevice(t *testing.T) {
	if _, err := NewPipeline(nil, nil, DefaultPipelineConfig()); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewPipeline(nil) error = %v, want ErrNilDevice", err)
	}
}

func TestPipelineStateMachine(t *testing.T) {
	p, tex, _ := newTestPipeline(t, DefaultPipelineConfig())
	rp := &recordingPass{}

	if p.State() != StateUnbound {
		t.Fatalf("initial state = %v, want Unbound", p.State())
	}

	// Unbound: upload and draw fail.
	if err := p.UploadVertices(meshOf(1)); !errors.Is(err, ErrPipelineNotReady) {
		t.Errorf("UploadVertices in Unbound error = %v", err)
	}
	err := p.Draw(rp, tex)
	var se *StateError
	if !errors.As(err, &se) || se.State != StateUnbound || se.Op != "Draw" {
		t.Errorf("Draw in Unbound error = %v", err)
	}

	// Bound: draw still fails.
	if err := p.ResizeViewport(800, 600); err != nil {
		t.Fatalf("ResizeViewport() error = %v", err)
	}
	if p.State() != StateBound {
		t.Fatalf("state = %v, want Bound", p.State())
	}
	if err := p.Draw(rp, tex); !errors.Is(err, ErrPipelineNotReady) {
		t.Errorf("Draw in Bound error = %v", err)
	}
	if len(rp.calls) != 0 {
		t.Errorf("failed draws recorded %v", rp.calls)
	}

	// Ready -> Drawn.
	if err := p.UploadVertices(meshOf(3)); err != nil {
		t.Fatalf("UploadVertices() error = %v", err)
	}
	if p.State() != StateReady {
		t.Fatalf("state = %v, want Ready", p.State())
	}
	if err := p.Draw(rp, tex); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if p.State() != StateDrawn {
		t.Fatalf("state = %v, want Drawn", p.State())
	}

	// Drawn: a second draw needs Reuse or a new upload.
	if err := p.Draw(rp, tex); !errors.Is(err, ErrPipelineNotReady) {
		t.Errorf("Draw in Drawn error = %v", err)
	}
	if err := p.Reuse(); err != nil {
		t.Fatalf("Reuse() error = %v", err)
	}
	if err := p.Draw(rp, tex); err != nil {
		t.Errorf("Draw after Reuse error = %v", err)
	}

	p.Invalidate()
	if p.State() != StateBound {
		t.Errorf("state after Invalidate = %v, want Bound", p.State())
	}
	if err := p.Reuse(); !errors.Is(err, ErrPipelineNotReady) {
		t.Errorf("Reuse in Bound error = %v", err)
	}
}

func TestPipelineDrawRecordsCommands(t *testing.T) {
	p, tex, _ := newTestPipeline(t, DefaultPipelineConfig())
	rp := &recordingPass{}

	if err := p.ResizeViewport(640, 480); err != nil {
		t.Fatal(err)
	}
	if err := p.UploadVertices(meshOf(2)); err != nil {
		t.Fatal(err)
	}
	if err := p.Draw(rp, tex); err != nil {
		t.Fatal(err)
	}

	want := []string{"SetPipeline", "SetBindGroup", "SetVertexBuffer", "SetIndexBuffer", "DrawIndexed"}
	if strings.Join(rp.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", rp.calls, want)
	}
	if rp.indexCount != 12 {
		t.Errorf("index count = %d, want 12", rp.indexCount)
	}
	if rp.format != gputypes.IndexFormatUint32 {
		t.Errorf("index format = %v, want Uint32", rp.format)
	}
}

func TestPipelineEmptyDraw(t *testing.T) {
	p, _, _ := newTestPipeline(t, DefaultPipelineConfig())
	rp := &recordingPass{}

	if err := p.ResizeViewport(640, 480); err != nil {
		t.Fatal(err)
	}
	if err := p.UploadVertices(meshOf(0)); err != nil {
		t.Fatal(err)
	}
	if err := p.Draw(rp, nil); err != nil {
		t.Fatalf("Draw() with no quads error = %v", err)
	}
	if len(rp.calls) != 0 {
		t.Errorf("empty draw recorded %v", rp.calls)
	}
	if p.Stats().Draws != 0 {
		t.Errorf("draws = %d, want 0", p.Stats().Draws)
	}
}

func TestPipelineBufferGrowth(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.InitialQuadCapacity = 4
	p, _, device := newTestPipeline(t, cfg)
	if err := p.ResizeViewport(100, 100); err != nil {
		t.Fatal(err)
	}

	m := meshOf(9)
	if err := p.UploadVertices(m); err != nil {
		t.Fatalf("UploadVertices() error = %v", err)
	}
	if p.QuadCapacity() != 16 {
		t.Errorf("capacity = %d, want 16", p.QuadCapacity())
	}
	if got := p.Stats().BufferGrows; got != 1 {
		t.Errorf("buffer grows = %d, want 1", got)
	}

	got := readBuffer(t, device, p.vertBuf, len(m.VertexBytes()))
	if string(got) != string(m.VertexBytes()) {
		t.Error("vertex buffer contents differ from mesh bytes")
	}

	// Smaller meshes never shrink the buffers.
	if err := p.UploadVertices(meshOf(1)); err != nil {
		t.Fatal(err)
	}
	if p.QuadCapacity() != 16 {
		t.Errorf("capacity after small upload = %d, want 16", p.QuadCapacity())
	}
}

func TestPipelineRebindsOnTextureResize(t *testing.T) {
	p, tex, _ := newTestPipeline(t, DefaultPipelineConfig())
	rp := &recordingPass{}
	if err := p.ResizeViewport(100, 100); err != nil {
		t.Fatal(err)
	}

	draw := func() {
		t.Helper()
		if err := p.UploadVertices(meshOf(1)); err != nil {
			t.Fatal(err)
		}
		if err := p.Draw(rp, tex); err != nil {
			t.Fatal(err)
		}
	}

	draw()
	draw()
	if got := p.Stats().BindGroups; got != 1 {
		t.Errorf("bind groups = %d, want 1", got)
	}
	if err := tex.Resize(512, 256); err != nil {
		t.Fatal(err)
	}
	draw()
	if got := p.Stats().BindGroups; got != 2 {
		t.Errorf("bind groups after resize = %d, want 2", got)
	}
}

func TestResizeViewportWritesProjection(t *testing.T) {
	p, _, device := newTestPipeline(t, DefaultPipelineConfig())

	for _, size := range [][2]float32{{800, 600}, {800, 600}, {1024, 768}} {
		if err := p.ResizeViewport(size[0], size[1]); err != nil {
			t.Fatalf("ResizeViewport(%v) error = %v", size, err)
		}
		got := readBuffer(t, device, p.uniformBuf, uniformSize)
		want := encodeMatrix(nil, Ortho(size[0], size[1]))
		if string(got) != string(want) {
			t.Errorf("uniform for %v does not match projection", size)
		}
		if p.State() != StateBound {
			t.Errorf("state = %v, want Bound", p.State())
		}
	}

	for _, size := range [][2]float32{{0, 600}, {800, -1}} {
		if err := p.ResizeViewport(size[0], size[1]); !errors.Is(err, ErrInvalidViewport) {
			t.Errorf("ResizeViewport(%v) error = %v, want ErrInvalidViewport", size, err)
		}
	}
}

func TestOrtho(t *testing.T) {
	m := Ortho(800, 600)
	tests := []struct {
		x, y, z float32
		want    [4]float32
	}{
		{0, 0, 0, [4]float32{-1, 1, 1, 1}},
		{800, 600, 1, [4]float32{1, -1, 0, 1}},
		{400, 300, 0.5, [4]float32{0, 0, 0.5, 1}},
	}
	for _, tt := range tests {
		got := Apply(m, tt.x, tt.y, tt.z)
		for i := range got {
			if math32.Abs(got[i]-tt.want[i]) > 1e-5 {
				t.Errorf("Apply(%v, %v, %v) = %v, want %v", tt.x, tt.y, tt.z, got, tt.want)
				break
			}
		}
	}
}

func TestPipelineDepthState(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cfg := DefaultPipelineConfig()
	p, err := NewPipeline(device, queue, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Destroy()
	if p.depthStencilState() != nil {
		t.Error("depth state without a depth format")
	}

	cfg.DepthStencilFormat = gputypes.TextureFormatDepth24Plus
	cfg.SampleCount = 4
	pd, err := NewPipeline(device, queue, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer pd.Destroy()
	ds := pd.depthStencilState()
	if ds == nil || ds.DepthCompare != gputypes.CompareFunctionLessEqual || !ds.DepthWriteEnabled {
		t.Errorf("depth state = %+v, want LessEqual with depth write", ds)
	}
}

func TestAtlasTextureUpload(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	for _, format := range []AtlasFormat{FormatAlpha8, FormatRGBA8} {
		t.Run(format.String(), func(t *testing.T) {
			tex, err := NewAtlasTexture(device, queue, format)
			if err != nil {
				t.Fatal(err)
			}
			defer tex.Destroy()

			if err := tex.Upload(atlas.Rect{Width: 2, Height: 2}, make([]byte, 4)); err == nil {
				t.Error("Upload before Resize succeeded")
			}
			if err := tex.Resize(64, 32); err != nil {
				t.Fatal(err)
			}
			if w, h := tex.Size(); w != 64 || h != 32 {
				t.Errorf("size = %dx%d, want 64x32", w, h)
			}
			if err := tex.Upload(atlas.Rect{X: 4, Y: 4, Width: 2, Height: 2}, []byte{1, 2, 3, 4}); err != nil {
				t.Errorf("Upload() error = %v", err)
			}
			err = tex.Upload(atlas.Rect{X: 63, Y: 0, Width: 2, Height: 1}, []byte{1, 2})
			if !errors.Is(err, atlas.ErrRegionOutOfBounds) {
				t.Errorf("out of bounds Upload() error = %v", err)
			}
			if tex.Writes() != 1 {
				t.Errorf("writes = %d, want 1", tex.Writes())
			}
		})
	}
}

func TestAtlasTextureDrivesAtlas(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tex, err := NewAtlasTexture(device, queue, FormatAlpha8)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Destroy()

	cfg := atlas.Config{InitialWidth: 32, InitialHeight: 32, MaxSize: 64, Padding: 1}
	a, err := atlas.New[int](cfg, tex)
	if err != nil {
		t.Fatalf("atlas.New() error = %v", err)
	}
	version := tex.Version()

	if _, err := a.Upload(1, atlas.Bitmap{Width: 8, Height: 8, Pix: make([]byte, 64)}); err != nil {
		t.Fatal(err)
	}
	if err := a.Grow(64, 32); err != nil {
		t.Fatal(err)
	}
	if w, h := tex.Size(); w != 64 || h != 32 {
		t.Errorf("texture size = %dx%d after grow, want 64x32", w, h)
	}
	if tex.Version() == version {
		t.Error("texture view not replaced on grow")
	}
	// One upload plus one re-upload after the grow.
	if tex.Writes() != 2 {
		t.Errorf("writes = %d, want 2", tex.Writes())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateUnbound, "Unbound"},
		{StateBound, "Bound"},
		{StateReady, "Ready"},
		{StateDrawn, "Drawn"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
