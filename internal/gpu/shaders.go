package gpu

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// Embedded WGSL source of the glyph shader.
//
//go:embed shaders/text.wgsl
var textShaderSource string

// Shader entry points.
const (
	vertexEntryPoint   = "vs_main"
	fragmentEntryPoint = "fs_main"
)

// TextShaderSource returns the WGSL source for the glyph shader.
func TextShaderSource() string {
	return textShaderSource
}

// ValidateShader compiles the glyph shader to SPIR-V with naga and
// returns the size of the generated module. Useful as a startup check on
// platforms where pipeline creation reports shader errors late.
func ValidateShader() (int, error) {
	if textShaderSource == "" {
		return 0, errors.New("gpu: text shader source is empty")
	}
	spirv, err := naga.Compile(textShaderSource)
	if err != nil {
		return 0, fmt.Errorf("gpu: compile text shader: %w", err)
	}
	return len(spirv), nil
}
