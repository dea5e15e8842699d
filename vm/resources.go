// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadervm/bytecode"
)

// Resource is an opaque texture bound to a t# register. The machine only
// checks it against the program's declaration; sampling is up to the host.
type Resource interface {
	ViewDimension() gputypes.TextureViewDimension
	SampleType() gputypes.TextureSampleType
}

// Sampler is an opaque sampler state bound to an s# register.
type Sampler interface {
	BindingType() gputypes.SamplerBindingType
}

// Texture is a Resource identified by a host handle.
type Texture struct {
	Handle uint64
	Layout gputypes.TextureBindingLayout
}

// ViewDimension implements Resource.
func (t Texture) ViewDimension() gputypes.TextureViewDimension { return t.Layout.ViewDimension }

// SampleType implements Resource.
func (t Texture) SampleType() gputypes.TextureSampleType { return t.Layout.SampleType }

// SamplerState is a Sampler identified by a host handle.
type SamplerState struct {
	Handle     uint64
	Type       gputypes.SamplerBindingType
	Descriptor gputypes.SamplerDescriptor
}

// NewSamplerState returns a sampler with the default descriptor. Comparison
// samplers get a less-equal compare function.
func NewSamplerState(handle uint64, typ gputypes.SamplerBindingType) SamplerState {
	desc := gputypes.DefaultSamplerDescriptor()
	if typ == gputypes.SamplerBindingTypeComparison {
		desc.Compare = gputypes.CompareFunctionLessEqual
	}
	return SamplerState{Handle: handle, Type: typ, Descriptor: desc}
}

// BindingType implements Sampler.
func (s SamplerState) BindingType() gputypes.SamplerBindingType { return s.Type }

// BindResource binds r to t<reg>. The register must be declared and r must
// match the declared view dimension and sample type when those are set.
func (f *RegisterFile) BindResource(reg uint32, r Resource) error {
	if r == nil {
		return bytecode.NewError(bytecode.ErrInvalidConfiguration, "nil resource for t%d", reg)
	}
	decl, ok := f.decls.Resource(reg)
	if !ok {
		return bytecode.NewError(bytecode.ErrOutOfBounds, "resource t%d is not declared", reg)
	}
	if decl.Dimension != gputypes.TextureViewDimensionUndefined && r.ViewDimension() != decl.Dimension {
		return bytecode.NewError(bytecode.ErrInvalidConfiguration,
			"t%d is declared %s, bound view is %s", reg, decl.Dimension, r.ViewDimension())
	}
	if decl.SampleType != gputypes.TextureSampleTypeUndefined && r.SampleType() != decl.SampleType {
		return bytecode.NewError(bytecode.ErrInvalidConfiguration,
			"t%d is declared with %s samples, bound texture has %s", reg, decl.SampleType, r.SampleType())
	}
	f.resources[reg] = r
	return nil
}

// BindSampler binds s to s<reg>, checking it against the declaration.
func (f *RegisterFile) BindSampler(reg uint32, s Sampler) error {
	if s == nil {
		return bytecode.NewError(bytecode.ErrInvalidConfiguration, "nil sampler for s%d", reg)
	}
	decl, ok := f.decls.Sampler(reg)
	if !ok {
		return bytecode.NewError(bytecode.ErrOutOfBounds, "sampler s%d is not declared", reg)
	}
	if decl.Type != gputypes.SamplerBindingTypeUndefined && s.BindingType() != decl.Type {
		return bytecode.NewError(bytecode.ErrInvalidConfiguration,
			"s%d is declared %s, bound sampler is %s", reg, decl.Type, s.BindingType())
	}
	if st, ok := s.(SamplerState); ok && st.Type == gputypes.SamplerBindingTypeComparison &&
		st.Descriptor.Compare == gputypes.CompareFunctionUndefined {
		return bytecode.NewError(bytecode.ErrInvalidConfiguration, "comparison sampler for s%d has no compare function", reg)
	}
	f.samplers[reg] = s
	return nil
}

// Resource returns the texture bound to t<reg>.
func (f *RegisterFile) Resource(reg uint32) (Resource, bool) {
	r, ok := f.resources[reg]
	return r, ok
}

// Sampler returns the sampler bound to s<reg>.
func (f *RegisterFile) Sampler(reg uint32) (Sampler, bool) {
	s, ok := f.samplers[reg]
	return s, ok
}
