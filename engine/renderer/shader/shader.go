package shader

// Type discriminates the pipeline stage a shader entry point targets.
type Type int

const (
	TypeVertex Type = iota
	TypeFragment
)

// Shader describes one entry point of a WGSL module.
type Shader interface {
	// Key returns the unique identifier of the shader, used as the module
	// label when the backend compiles it.
	Key() string

	// Type returns the pipeline stage the entry point targets.
	Type() Type

	// Source returns the WGSL source of the module containing the entry
	// point. Shaders sharing a Source share one compiled module.
	Source() string

	// EntryPoint returns the WGSL function name to bind for this stage.
	EntryPoint() string
}

type shaderImpl struct {
	key        string
	typ        Type
	source     string
	entryPoint string
}

var _ Shader = &shaderImpl{}

// New creates a Shader for one entry point of a WGSL source module.
//
// Parameters:
//   - key: unique identifier, used as the compiled module label
//   - typ: pipeline stage of the entry point
//   - source: WGSL source text of the module
//   - entryPoint: WGSL function name for the stage
//
// Returns:
//   - Shader: the shader descriptor
func New(key string, typ Type, source, entryPoint string) Shader {
	return &shaderImpl{key: key, typ: typ, source: source, entryPoint: entryPoint}
}

func (s *shaderImpl) Key() string        { return s.key }
func (s *shaderImpl) Type() Type         { return s.typ }
func (s *shaderImpl) Source() string     { return s.source }
func (s *shaderImpl) EntryPoint() string { return s.entryPoint }

// Blit returns the vertex and fragment shaders of the presentation blit
// pipeline. The vertex stage emits a fullscreen triangle from the vertex
// index alone; the fragment stage samples the published frame texture.
func Blit() (vertex, fragment Shader) {
	return New("blit_vert", TypeVertex, blitSource, "vs_main"),
		New("blit_frag", TypeFragment, blitSource, "fs_main")
}

// Overlay returns the vertex and fragment shaders of the scope overlay line
// pipeline. Vertices carry a normalized-device-coordinate position and an
// RGBA color; the fragment stage passes the color through.
func Overlay() (vertex, fragment Shader) {
	return New("overlay_vert", TypeVertex, overlaySource, "vs_main"),
		New("overlay_frag", TypeFragment, overlaySource, "fs_main")
}

const blitSource = `
struct VSOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> VSOut {
    let uv = vec2<f32>(f32((vi << 1u) & 2u), f32(vi & 2u));
    var out: VSOut;
    out.pos = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(uv.x, 1.0 - uv.y);
    return out;
}

@group(0) @binding(0) var frame_tex: texture_2d<f32>;
@group(0) @binding(1) var frame_samp: sampler;

@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    return textureSample(frame_tex, frame_samp, in.uv);
}
`

const overlaySource = `
struct VSIn {
    @location(0) pos: vec2<f32>,
    @location(1) color: vec4<f32>,
};

struct VSOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) color: vec4<f32>,
};

@vertex
fn vs_main(in: VSIn) -> VSOut {
    var out: VSOut;
    out.pos = vec4<f32>(in.pos, 0.0, 1.0);
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    return in.color;
}
`
