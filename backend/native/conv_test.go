package native

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
)

func TestToFormatRoundTrip(t *testing.T) {
	for _, f := range rhi.Formats() {
		native := toFormat(f)
		if native == gputypes.TextureFormatUndefined {
			continue
		}
		if back := fromFormat(native); back != f {
			t.Errorf("fromFormat(toFormat(%v)) = %v", f, back)
		}
	}
}

func TestToFormat(t *testing.T) {
	tests := []struct {
		in   rhi.Format
		want gputypes.TextureFormat
	}{
		{rhi.FormatUndefined, gputypes.TextureFormatUndefined},
		{rhi.FormatR8G8B8A8Unorm, gputypes.TextureFormatRGBA8Unorm},
		{rhi.FormatB8G8R8A8Unorm, gputypes.TextureFormatBGRA8Unorm},
		{rhi.FormatR32G32B32Float, gputypes.TextureFormatUndefined},
		{rhi.FormatD24UnormS8Uint, gputypes.TextureFormatDepth24PlusStencil8},
		{rhi.FormatD32Float, gputypes.TextureFormatDepth32Float},
		{rhi.Format(1000), gputypes.TextureFormatUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := toFormat(tt.in); got != tt.want {
				t.Errorf("toFormat(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToVertexFormat(t *testing.T) {
	tests := []struct {
		in   rhi.Format
		want gputypes.VertexFormat
	}{
		{rhi.FormatR32Float, gputypes.VertexFormatFloat32},
		{rhi.FormatR32G32Float, gputypes.VertexFormatFloat32x2},
		{rhi.FormatR32G32B32Float, gputypes.VertexFormatFloat32x3},
		{rhi.FormatR32G32B32A32Float, gputypes.VertexFormatFloat32x4},
		{rhi.FormatD32Float, gputypes.VertexFormatUndefined},
		{rhi.FormatUndefined, gputypes.VertexFormatUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := toVertexFormat(tt.in); got != tt.want {
				t.Errorf("toVertexFormat(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToSampleCount(t *testing.T) {
	tests := []struct {
		in   rhi.SampleCount
		want uint32
	}{
		{rhi.SampleCount1X, 1},
		{rhi.SampleCount2X, 2},
		{rhi.SampleCount4X, 4},
		{rhi.SampleCount8X, 8},
		{rhi.SampleCount16X, 16},
	}
	for _, tt := range tests {
		if got := toSampleCount(tt.in); got != tt.want {
			t.Errorf("toSampleCount(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestToTextureUsage(t *testing.T) {
	tests := []struct {
		name string
		in   rhi.TextureUsage
		want gputypes.TextureUsage
	}{
		{"none", rhi.TextureUsageNone, 0},
		{"sampled", rhi.TextureUsageSampledImage, gputypes.TextureUsageTextureBinding},
		{"transfer", rhi.TextureUsageTransferSrc | rhi.TextureUsageTransferDst,
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst},
		{"color", rhi.TextureUsageColorAttachment, gputypes.TextureUsageRenderAttachment},
		{"depth", rhi.TextureUsageDepthStencilAttachment, gputypes.TextureUsageRenderAttachment},
		{"resolve", rhi.TextureUsageResolveDst, gputypes.TextureUsageRenderAttachment},
		{"storage", rhi.TextureUsageStorage, gputypes.TextureUsageStorageBinding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toTextureUsage(tt.in); got != tt.want {
				t.Errorf("toTextureUsage(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToColorTarget(t *testing.T) {
	opaque := toColorTarget(gputypes.TextureFormatRGBA8Unorm, rhi.ColorBlendState{})
	if opaque.Blend != nil {
		t.Error("blend state set with blending disabled")
	}
	if opaque.WriteMask != gputypes.ColorWriteMaskAll {
		t.Errorf("zero write mask = %v, want All", opaque.WriteMask)
	}

	alpha := toColorTarget(gputypes.TextureFormatBGRA8Unorm, rhi.ColorBlendState{
		BlendEnabled:        true,
		SrcColorBlendFactor: rhi.BlendFactorSrcAlpha,
		DstColorBlendFactor: rhi.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        rhi.BlendOpAdd,
		SrcAlphaBlendFactor: rhi.BlendFactorOne,
		DstAlphaBlendFactor: rhi.BlendFactorZero,
		AlphaBlendOp:        rhi.BlendOpMax,
		WriteMask:           rhi.ColorWriteR | rhi.ColorWriteA,
	})
	if alpha.Blend == nil {
		t.Fatal("blend state missing")
	}
	if alpha.Blend.Color.SrcFactor != gputypes.BlendFactorSrcAlpha ||
		alpha.Blend.Color.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("color factors = %v/%v", alpha.Blend.Color.SrcFactor, alpha.Blend.Color.DstFactor)
	}
	if alpha.Blend.Alpha.Operation != gputypes.BlendOperationMax {
		t.Errorf("alpha op = %v, want Max", alpha.Blend.Alpha.Operation)
	}
	if alpha.WriteMask != gputypes.ColorWriteMaskRed|gputypes.ColorWriteMaskAlpha {
		t.Errorf("write mask = %v", alpha.WriteMask)
	}
}

func TestToAddressMode(t *testing.T) {
	tests := []struct {
		in    rhi.AddressMode
		want  gputypes.AddressMode
		exact bool
	}{
		{rhi.AddressModeWrap, gputypes.AddressModeRepeat, true},
		{rhi.AddressModeMirror, gputypes.AddressModeMirrorRepeat, true},
		{rhi.AddressModeClampEdge, gputypes.AddressModeClampToEdge, true},
		{rhi.AddressModeMirrorOnce, gputypes.AddressModeMirrorRepeat, false},
		{rhi.AddressModeClampBorder, gputypes.AddressModeClampToEdge, false},
	}
	for _, tt := range tests {
		got, exact := toAddressMode(tt.in)
		if got != tt.want || exact != tt.exact {
			t.Errorf("toAddressMode(%v) = %v, %v; want %v, %v", tt.in, got, exact, tt.want, tt.exact)
		}
	}
}

func TestToCompare(t *testing.T) {
	tests := []struct {
		in   rhi.CompareFunc
		want gputypes.CompareFunction
	}{
		{rhi.CompareFuncNever, gputypes.CompareFunctionNever},
		{rhi.CompareFuncLess, gputypes.CompareFunctionLess},
		{rhi.CompareFuncLessOrEqual, gputypes.CompareFunctionLessEqual},
		{rhi.CompareFuncGreaterOrEqual, gputypes.CompareFunctionGreaterEqual},
		{rhi.CompareFuncAlways, gputypes.CompareFunctionAlways},
	}
	for _, tt := range tests {
		if got := toCompare(tt.in); got != tt.want {
			t.Errorf("toCompare(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
