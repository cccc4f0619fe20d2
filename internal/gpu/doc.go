// Package gpu draws glyph quads through the wgpu HAL.
//
// It owns every GPU object the text brush needs: the shader module, the
// bind group layout (projection uniform, atlas texture, sampler), the
// render pipeline, and growable vertex and index buffers. The glyph
// atlas texture is an AtlasTexture, which implements atlas.Uploader so
// the atlas package can allocate and fill it without knowing about HAL.
//
// # Pipeline states
//
// A Pipeline moves through four states:
//
//	Unbound --ResizeViewport--> Bound --UploadVertices--> Ready --Draw--> Drawn
//	                                                        ^               |
//	                                                        +----Reuse------+
//
// Draw is only valid in Ready. Calling it in any other state returns a
// *StateError wrapping ErrPipelineNotReady and records nothing.
//
// # Vertex layout
//
//	location 0: position  (vec3<f32>) = 12 bytes, screen pixels and depth
//	location 1: tex_coord (vec2<f32>) =  8 bytes, atlas UV
//	location 2: color     (vec4<f32>) = 16 bytes, straight RGBA
//
// Total = 36 bytes per vertex, four vertices and six uint32 indices per
// glyph.
package gpu
