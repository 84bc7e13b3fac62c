// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// MeshVertexShader transforms skinned and morphed geometry. The lit pass and
// the shadow depth pass both use it.
//
//go:embed mesh.vert
var MeshVertexShader string

// MeshFragmentShader shades meshes with ambient plus one directional light
// and filtered shadow lookups. It also draws shadow-only materials.
//
//go:embed mesh.frag
var MeshFragmentShader string

// DepthFragmentShader is the fragment stage of the shadow depth pass.
//
//go:embed depth.frag
var DepthFragmentShader string

// LineVertexShader is the vertex shader for bounding box lines.
//
//go:embed line.vert
var LineVertexShader string

// LineFragmentShader is the fragment shader for bounding box lines.
//
//go:embed line.frag
var LineFragmentShader string
