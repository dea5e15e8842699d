// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asm

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

type keyword[T comparable] struct {
	name  string
	value T
}

func lookup[T comparable](table []keyword[T], name string) (T, bool) {
	for _, k := range table {
		if k.name == name {
			return k.value, true
		}
	}
	var zero T
	return zero, false
}

func nameOf[T comparable](table []keyword[T], v T) (string, bool) {
	for _, k := range table {
		if k.value == v {
			return k.name, true
		}
	}
	return "", false
}

// stages maps the shader model prefix of a stage directive such as
// "ps_5_0" to its stage.
var stages = []keyword[gputypes.ShaderStage]{
	{"vs", gputypes.ShaderStageVertex},
	{"ps", gputypes.ShaderStageFragment},
	{"cs", gputypes.ShaderStageCompute},
}

// stageNames accepts the long stage names alongside the directive prefixes.
var stageNames = []keyword[gputypes.ShaderStage]{
	{"vertex", gputypes.ShaderStageVertex},
	{"fragment", gputypes.ShaderStageFragment},
	{"pixel", gputypes.ShaderStageFragment},
	{"compute", gputypes.ShaderStageCompute},
}

// ParseStage parses a stage name such as "ps", "ps_5_0" or "fragment".
func ParseStage(s string) (gputypes.ShaderStage, error) {
	name := strings.ToLower(s)
	if stage, ok := stageOf(name); ok {
		return stage, nil
	}
	if stage, ok := lookup(stageNames, name); ok {
		return stage, nil
	}
	return 0, fmt.Errorf("unknown shader stage %q", s)
}

// shaderModel is appended to the stage prefix when writing.
const shaderModel = "_5_0"

// resourceDimensions maps the suffix of dcl_resource_<dim>.
var resourceDimensions = []keyword[gputypes.TextureViewDimension]{
	{"texture1d", gputypes.TextureViewDimension1D},
	{"texture2d", gputypes.TextureViewDimension2D},
	{"texture2darray", gputypes.TextureViewDimension2DArray},
	{"texture3d", gputypes.TextureViewDimension3D},
	{"texturecube", gputypes.TextureViewDimensionCube},
	{"texturecubearray", gputypes.TextureViewDimensionCubeArray},
	{"texture", gputypes.TextureViewDimensionUndefined},
}

var sampleTypes = []keyword[gputypes.TextureSampleType]{
	{"float", gputypes.TextureSampleTypeFloat},
	{"unfilterable_float", gputypes.TextureSampleTypeUnfilterableFloat},
	{"depth", gputypes.TextureSampleTypeDepth},
	{"sint", gputypes.TextureSampleTypeSint},
	{"uint", gputypes.TextureSampleTypeUint},
}

var samplerModes = []keyword[gputypes.SamplerBindingType]{
	{"mode_default", gputypes.SamplerBindingTypeFiltering},
	{"mode_nonfiltering", gputypes.SamplerBindingTypeNonFiltering},
	{"mode_comparison", gputypes.SamplerBindingTypeComparison},
}
