package rhi

import "testing"

func TestComputeMipLevels(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		want          uint32
	}{
		{"1024x512", 1024, 512, 11},
		{"1x1", 1, 1, 1},
		{"non power of two", 1000, 3, 10},
		{"tall", 4, 4096, 13},
		{"empty", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeMipLevels(tt.width, tt.height); got != tt.want {
				t.Errorf("ComputeMipLevels(%d, %d) = %d, want %d", tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	all := Formats()
	if len(all) != int(formatCount)-1 {
		t.Fatalf("len(Formats()) = %d, want %d", len(all), formatCount-1)
	}
	seen := make(map[Format]bool)
	for _, f := range all {
		if f == FormatUndefined {
			t.Error("Formats() contains FormatUndefined")
		}
		if !f.Valid() {
			t.Errorf("%v.Valid() = false", f)
		}
		if seen[f] {
			t.Errorf("duplicate format %v", f)
		}
		seen[f] = true
		if f.BytesPerPixel() == 0 {
			t.Errorf("%v.BytesPerPixel() = 0", f)
		}
	}
}

func TestFormatDepthStencil(t *testing.T) {
	tests := []struct {
		f            Format
		depthStencil bool
		stencil      bool
	}{
		{FormatR8G8B8A8Unorm, false, false},
		{FormatB8G8R8A8Unorm, false, false},
		{FormatD16Unorm, true, false},
		{FormatX8D24UnormPack32, true, false},
		{FormatD32Float, true, false},
		{FormatD24UnormS8Uint, true, true},
		{FormatD32FloatS8Uint, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			if got := tt.f.IsDepthStencil(); got != tt.depthStencil {
				t.Errorf("IsDepthStencil() = %v, want %v", got, tt.depthStencil)
			}
			if got := tt.f.HasStencil(); got != tt.stencil {
				t.Errorf("HasStencil() = %v, want %v", got, tt.stencil)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	if got := FormatR32G32B32A32Float.String(); got != "R32G32B32A32Float" {
		t.Errorf("String() = %q", got)
	}
	if got := Format(200).String(); got != "Format(200)" {
		t.Errorf("String() = %q", got)
	}
	if Format(200).Valid() || FormatUndefined.Valid() {
		t.Error("out-of-range and undefined formats must be invalid")
	}
}

func TestSampleCount(t *testing.T) {
	if !SampleCount16X.Valid() {
		t.Error("SampleCount16X.Valid() = false")
	}
	if SampleCount(5).Valid() {
		t.Error("SampleCount(5).Valid() = true")
	}
	if got := SampleCount4X.String(); got != "4x" {
		t.Errorf("String() = %q, want 4x", got)
	}
}
