package cmdlist

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/gogpu/rhi"
)

type fakeTexture struct {
	name  string
	usage rhi.TextureUsage
}

func (t *fakeTexture) Type() rhi.TextureType        { return rhi.TextureType2D }
func (t *fakeTexture) Width() uint32                { return 4 }
func (t *fakeTexture) Height() uint32               { return 4 }
func (t *fakeTexture) Depth() uint32                { return 1 }
func (t *fakeTexture) MipLevels() uint32            { return 1 }
func (t *fakeTexture) Format() rhi.Format           { return rhi.FormatR8G8B8A8Unorm }
func (t *fakeTexture) Usage() rhi.TextureUsage      { return t.usage }
func (t *fakeTexture) SampleCount() rhi.SampleCount { return rhi.SampleCount1X }
func (t *fakeTexture) ClearValue() rhi.ClearValue   { return rhi.ClearValue{} }
func (t *fakeTexture) HostVisible() bool            { return false }
func (t *fakeTexture) Owned() bool                  { return true }

type fakePass struct {
	color []rhi.Texture
	depth rhi.Texture
}

func (p *fakePass) Width() uint32                              { return 4 }
func (p *fakePass) Height() uint32                             { return 4 }
func (p *fakePass) ColorAttachmentCount() int                  { return len(p.color) }
func (p *fakePass) ColorFormat() rhi.Format                    { return rhi.FormatR8G8B8A8Unorm }
func (p *fakePass) DepthStencilFormat() rhi.Format             { return rhi.FormatD32Float }
func (p *fakePass) SampleCount() rhi.SampleCount               { return rhi.SampleCount1X }
func (p *fakePass) ColorAttachments() []rhi.Texture            { return p.color }
func (p *fakePass) ColorMultisampleAttachments() []rhi.Texture { return nil }
func (p *fakePass) DepthStencilAttachment() rhi.Texture        { return p.depth }

type fakeBuffer struct {
	name  string
	usage rhi.BufferUsage
}

func (b *fakeBuffer) Usage() rhi.BufferUsage { return b.usage }
func (b *fakeBuffer) Size() uint64           { return 64 }
func (b *fakeBuffer) Stride() uint64         { return 4 }
func (b *fakeBuffer) HostVisible() bool      { return false }
func (b *fakeBuffer) Mapped() []byte         { return nil }

type fakePipeline struct{ name string }

func (p *fakePipeline) RenderPass() rhi.RenderPass       { return nil }
func (p *fakePipeline) DescriptorSet() rhi.DescriptorSet { return nil }

type fakeSet struct{ descs []rhi.Descriptor }

func (s *fakeSet) Descriptors() []rhi.Descriptor { return s.descs }

// traceSink records replayed calls as strings.
type traceSink struct {
	calls  []string
	failAt int
}

func (s *traceSink) add(format string, args ...any) error {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return errors.New("sink failure")
	}
	return nil
}

func (s *traceSink) BeginRender(rhi.RenderPass) error { return s.add("begin") }
func (s *traceSink) EndRender() error                 { return s.add("end") }
func (s *traceSink) SetViewport(v Viewport) error     { return s.add("viewport %v", v.Width) }
func (s *traceSink) SetScissor(sc Scissor) error      { return s.add("scissor %v", sc.Width) }
func (s *traceSink) ClearColorAttachment(i uint32, c rhi.ClearValue) error {
	return s.add("clear %d %v", i, c.Color[0])
}
func (s *traceSink) BindPipeline(p rhi.RenderPipeline) error {
	return s.add("pipeline %s", p.(*fakePipeline).name)
}
func (s *traceSink) BindDescriptorSet(rhi.RenderPipeline, rhi.DescriptorSet) error {
	return s.add("set")
}
func (s *traceSink) BindVertexBuffers(bs []rhi.Buffer) error {
	return s.add("vertex %s", bs[0].(*fakeBuffer).name)
}
func (s *traceSink) BindIndexBuffer(b rhi.Buffer) error {
	return s.add("index %s", b.(*fakeBuffer).name)
}
func (s *traceSink) Draw(n, first uint32) error        { return s.add("draw %d %d", n, first) }
func (s *traceSink) DrawIndexed(n, first uint32) error { return s.add("drawIndexed %d %d", n, first) }
func (s *traceSink) Transition(t rhi.Texture, before, after rhi.TextureUsage) error {
	return s.add("transition %s %v->%v", t.(*fakeTexture).name, before, after)
}

func newColorPass() (*fakePass, *fakeTexture) {
	color := &fakeTexture{name: "color", usage: rhi.TextureUsageColorAttachment | rhi.TextureUsageTransferSrc}
	return &fakePass{color: []rhi.Texture{color}}, color
}

func mustRecord(t *testing.T, steps ...error) {
	t.Helper()
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestReplayOrderPreserved(t *testing.T) {
	pass, color := newColorPass()
	a := &fakeBuffer{name: "A", usage: rhi.BufferUsageVertex}
	b := &fakeBuffer{name: "B", usage: rhi.BufferUsageVertex}
	p := &fakePipeline{name: "P"}

	l := New()
	mustRecord(t,
		l.Begin(),
		l.Transition(color, rhi.TextureUsageNone, rhi.TextureUsageColorAttachment),
		l.BeginRender(pass),
		l.ClearColorAttachment(0, rhi.ClearColor(1, 0, 0, 1)),
		l.BindPipeline(p),
		l.BindVertexBuffers([]rhi.Buffer{a}),
		l.Draw(3, 0),
		l.BindVertexBuffers([]rhi.Buffer{b}),
		l.Draw(6, 3),
		l.EndRender(),
		l.Transition(color, rhi.TextureUsageColorAttachment, rhi.TextureUsageTransferSrc),
		l.End(),
	)

	sink := &traceSink{}
	if err := l.Replay(sink); err != nil {
		t.Fatalf("Replay() = %v", err)
	}
	want := []string{
		"transition color None->ColorAttachment",
		"begin",
		"clear 0 1",
		"pipeline P",
		"vertex A",
		"draw 3 0",
		"vertex B",
		"draw 6 3",
		"end",
		"transition color ColorAttachment->TransferSrc",
	}
	if !reflect.DeepEqual(sink.calls, want) {
		t.Errorf("replay order:\n got %v\nwant %v", sink.calls, want)
	}
	if l.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", l.Len(), len(want))
	}
	cmds := l.Commands()
	if len(cmds) != l.Len() || cmds[0].Op != OpTransition || cmds[len(cmds)-1].After != rhi.TextureUsageTransferSrc {
		t.Errorf("Commands() = %v", cmds)
	}
}

func TestStateMachine(t *testing.T) {
	pass, _ := newColorPass()
	tests := []struct {
		name    string
		record  func(l *List) error
		wantErr error
	}{
		{"draw before begin", func(l *List) error { return l.Draw(3, 0) }, rhi.ErrNotRecording},
		{"end before begin", func(l *List) error { return l.End() }, rhi.ErrNotRecording},
		{"draw outside render", func(l *List) error {
			_ = l.Begin()
			return l.Draw(3, 0)
		}, rhi.ErrNoRenderPass},
		{"end render without begin", func(l *List) error {
			_ = l.Begin()
			return l.EndRender()
		}, rhi.ErrNoRenderPass},
		{"end inside render", func(l *List) error {
			_ = l.Begin()
			_ = l.BeginRender(pass)
			return l.End()
		}, rhi.ErrRenderPassActive},
		{"transition inside render", func(l *List) error {
			_ = l.Begin()
			_ = l.BeginRender(pass)
			return l.Transition(pass.color[0], rhi.TextureUsageNone, rhi.TextureUsageTransferSrc)
		}, rhi.ErrRenderPassActive},
		{"begin inside render", func(l *List) error {
			_ = l.Begin()
			_ = l.BeginRender(pass)
			return l.Begin()
		}, rhi.ErrRenderPassActive},
		{"record after end", func(l *List) error {
			_ = l.Begin()
			_ = l.End()
			return l.BeginRender(pass)
		}, rhi.ErrNotRecording},
		{"clear out of range", func(l *List) error {
			_ = l.Begin()
			_ = l.BeginRender(pass)
			return l.ClearColorAttachment(1, rhi.ClearValue{})
		}, rhi.ErrInvalidArgument},
		{"index buffer as vertex", func(l *List) error {
			_ = l.Begin()
			_ = l.BeginRender(pass)
			return l.BindVertexBuffers([]rhi.Buffer{&fakeBuffer{usage: rhi.BufferUsageIndex}})
		}, rhi.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record(New())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, rhi.ErrPrecondition) {
				t.Errorf("err = %v, want precondition class", err)
			}
		})
	}
}

func TestBeginResetsExecutable(t *testing.T) {
	pass, _ := newColorPass()
	l := New()
	mustRecord(t, l.Begin(), l.BeginRender(pass), l.Draw(3, 0), l.EndRender(), l.End())
	if !l.Executable() {
		t.Fatal("list not executable after End")
	}
	if !l.References(pass) {
		t.Error("list does not reference its render pass")
	}
	mustRecord(t, l.Begin())
	if l.Len() != 0 || l.State() != StateRecording {
		t.Errorf("after Begin: len %d, state %v", l.Len(), l.State())
	}
	if l.References(pass) {
		t.Error("Begin must drop previous references")
	}
}

func TestTransitionChain(t *testing.T) {
	tex := &fakeTexture{name: "t", usage: rhi.TextureUsageTransferDst | rhi.TextureUsageSampledImage}

	l := New()
	mustRecord(t,
		l.Begin(),
		l.Transition(tex, rhi.TextureUsageNone, rhi.TextureUsageTransferDst),
		l.Transition(tex, rhi.TextureUsageTransferDst, rhi.TextureUsageSampledImage),
	)
	err := l.Transition(tex, rhi.TextureUsageTransferDst, rhi.TextureUsageSampledImage)
	if !errors.Is(err, rhi.ErrStateMismatch) {
		t.Fatalf("mismatched before = %v, want ErrStateMismatch", err)
	}
	// None discards and is valid from any state.
	mustRecord(t, l.Transition(tex, rhi.TextureUsageNone, rhi.TextureUsageTransferDst))

	var got []Transition
	l.Transitions(func(_ rhi.Texture, tr Transition) { got = append(got, tr) })
	want := []Transition{{First: rhi.TextureUsageNone, Last: rhi.TextureUsageTransferDst, Moved: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Transitions = %v, want %v", got, want)
	}
}

func TestTransitionBeyondCreationUsage(t *testing.T) {
	tex := &fakeTexture{name: "t", usage: rhi.TextureUsageSampledImage}
	l := New()
	mustRecord(t, l.Begin())
	err := l.Transition(tex, rhi.TextureUsageNone, rhi.TextureUsageColorAttachment)
	if !errors.Is(err, rhi.ErrStateMismatch) {
		t.Errorf("err = %v, want ErrStateMismatch", err)
	}
}

func TestBeginRenderRequiresAttachmentState(t *testing.T) {
	pass, color := newColorPass()
	l := New()
	mustRecord(t,
		l.Begin(),
		l.Transition(color, rhi.TextureUsageNone, rhi.TextureUsageTransferSrc),
	)
	if err := l.BeginRender(pass); !errors.Is(err, rhi.ErrStateMismatch) {
		t.Errorf("BeginRender on TransferSrc attachment = %v, want ErrStateMismatch", err)
	}
}

func TestBindDescriptorSetSampledState(t *testing.T) {
	pass, _ := newColorPass()
	tex := &fakeTexture{name: "s", usage: rhi.TextureUsageSampledImage | rhi.TextureUsageTransferDst}
	set := &fakeSet{descs: []rhi.Descriptor{{Type: rhi.DescriptorTypeTexture, Texture: tex}}}
	p := &fakePipeline{name: "P"}

	l := New()
	mustRecord(t,
		l.Begin(),
		l.Transition(tex, rhi.TextureUsageNone, rhi.TextureUsageTransferDst),
		l.BeginRender(pass),
	)
	if err := l.BindDescriptorSet(p, set); !errors.Is(err, rhi.ErrStateMismatch) {
		t.Fatalf("bind with TransferDst texture = %v, want ErrStateMismatch", err)
	}

	l = New()
	mustRecord(t,
		l.Begin(),
		l.Transition(tex, rhi.TextureUsageNone, rhi.TextureUsageSampledImage),
		l.BeginRender(pass),
		l.BindDescriptorSet(p, set),
	)
	if !l.References(tex) || !l.References(set) {
		t.Error("descriptor set resources not referenced")
	}
}

func TestAccessBeforeTransitionNeedsUsage(t *testing.T) {
	pass, color := newColorPass()
	tex := &fakeTexture{name: "s", usage: rhi.TextureUsageSampledImage | rhi.TextureUsageTransferDst}
	set := &fakeSet{descs: []rhi.Descriptor{{Type: rhi.DescriptorTypeTexture, Texture: tex}}}
	p := &fakePipeline{name: "P"}

	l := New()
	mustRecord(t,
		l.Begin(),
		l.BeginRender(pass),
		l.BindDescriptorSet(p, set),
		l.EndRender(),
		l.Transition(tex, rhi.TextureUsageSampledImage, rhi.TextureUsageTransferDst),
	)
	got := make(map[rhi.Texture]Transition)
	l.Transitions(func(t rhi.Texture, tr Transition) { got[t] = tr })
	want := map[rhi.Texture]Transition{
		color: {Needs: rhi.TextureUsageColorAttachment},
		tex: {
			First: rhi.TextureUsageSampledImage, Last: rhi.TextureUsageTransferDst,
			Needs: rhi.TextureUsageSampledImage, Moved: true,
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Transitions = %v, want %v", got, want)
	}

	l = New()
	mustRecord(t, l.Begin(), l.BeginRender(pass), l.BindDescriptorSet(p, set), l.EndRender())
	err := l.Transition(tex, rhi.TextureUsageTransferDst, rhi.TextureUsageSampledImage)
	if !errors.Is(err, rhi.ErrStateMismatch) {
		t.Errorf("transition from a usage the list already violated = %v, want ErrStateMismatch", err)
	}
}

func TestReplayStopsAtError(t *testing.T) {
	pass, _ := newColorPass()
	l := New()
	mustRecord(t, l.Begin(), l.BeginRender(pass), l.Draw(1, 0), l.Draw(2, 0), l.EndRender(), l.End())

	sink := &traceSink{failAt: 2}
	err := l.Replay(sink)
	if err == nil {
		t.Fatal("Replay() = nil, want sink error")
	}
	if len(sink.calls) != 2 {
		t.Errorf("replayed %d commands after failure, want 2", len(sink.calls))
	}
}
