// Package cmdlist records backend-neutral commands and replays them, in
// recording order, into a backend Sink.
//
// A List enforces the recording state machine:
//
//	Initial    -> Begin       -> Recording
//	Recording  -> BeginRender -> InRender
//	InRender   -> EndRender   -> Recording
//	Recording  -> End         -> Executable
//	Executable -> Begin       -> Recording (contents discarded)
//
// It also tracks, per texture, the first and last usage the recorded
// transitions name and the usages required before the first transition,
// so a backend can validate them against device state at submit.
//
// A List is not safe for concurrent use; it has a single writer.
package cmdlist

import (
	"fmt"

	"github.com/gogpu/rhi"
)

// State is the recording state of a List.
type State uint8

// Recording states.
const (
	StateInitial State = iota
	StateRecording
	StateInRender
	StateExecutable
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateRecording:
		return "recording"
	case StateInRender:
		return "in-render"
	case StateExecutable:
		return "executable"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Op identifies a recorded command.
type Op uint8

// Recorded operations.
const (
	OpBeginRender Op = iota
	OpEndRender
	OpSetViewport
	OpSetScissor
	OpClearColorAttachment
	OpBindPipeline
	OpBindDescriptorSet
	OpBindVertexBuffers
	OpBindIndexBuffer
	OpDraw
	OpDrawIndexed
	OpTransition
)

var opNames = [...]string{
	"BeginRender", "EndRender", "SetViewport", "SetScissor",
	"ClearColorAttachment", "BindPipeline", "BindDescriptorSet",
	"BindVertexBuffers", "BindIndexBuffer", "Draw", "DrawIndexed", "Transition",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Viewport is a recorded viewport rectangle and depth range.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Scissor is a recorded scissor rectangle.
type Scissor struct {
	X, Y, Width, Height uint32
}

// Command is one recorded operation. Only the fields Op uses are set.
type Command struct {
	Op Op

	Pass     rhi.RenderPass
	Pipeline rhi.RenderPipeline
	Set      rhi.DescriptorSet
	Buffers  []rhi.Buffer
	Texture  rhi.Texture

	Before, After rhi.TextureUsage

	Viewport   Viewport
	Scissor    Scissor
	Attachment uint32
	Clear      rhi.ClearValue

	Count, First uint32
}

// Sink receives replayed commands.
type Sink interface {
	BeginRender(pass rhi.RenderPass) error
	EndRender() error
	SetViewport(v Viewport) error
	SetScissor(s Scissor) error
	ClearColorAttachment(index uint32, clear rhi.ClearValue) error
	BindPipeline(p rhi.RenderPipeline) error
	BindDescriptorSet(p rhi.RenderPipeline, set rhi.DescriptorSet) error
	BindVertexBuffers(buffers []rhi.Buffer) error
	BindIndexBuffer(b rhi.Buffer) error
	Draw(count, first uint32) error
	DrawIndexed(count, first uint32) error
	Transition(t rhi.Texture, before, after rhi.TextureUsage) error
}

// Transition is the span of usages a list moves a texture through. Needs
// holds the usages accessed before the first transition, which the state
// at submit must already include. Moved is false for a texture the list
// accesses but never transitions; First and Last are then unset.
type Transition struct {
	First rhi.TextureUsage
	Last  rhi.TextureUsage
	Needs rhi.TextureUsage
	Moved bool
}

// List is an ordered command list.
type List struct {
	state State
	cmds  []Command
	pass  rhi.RenderPass

	textures map[rhi.Texture]*Transition
	order    []rhi.Texture
	refs     map[any]struct{}
}

// New returns an empty list in the initial state.
func New() *List {
	return &List{
		textures: make(map[rhi.Texture]*Transition),
		refs:     make(map[any]struct{}),
	}
}

// State returns the recording state.
func (l *List) State() State { return l.state }

// Len returns the number of recorded commands.
func (l *List) Len() int { return len(l.cmds) }

// Commands returns the recorded commands. The slice must not be modified.
func (l *List) Commands() []Command { return l.cmds }

// Begin discards any previous contents and starts recording.
func (l *List) Begin() error {
	if l.state == StateInRender {
		return fmt.Errorf("%w: %w: begin inside render scope", rhi.ErrPrecondition, rhi.ErrRenderPassActive)
	}
	l.reset()
	l.state = StateRecording
	return nil
}

// Reset returns the list to the initial state.
func (l *List) Reset() {
	l.reset()
	l.state = StateInitial
}

func (l *List) reset() {
	l.cmds = l.cmds[:0]
	l.pass = nil
	clear(l.textures)
	l.order = l.order[:0]
	clear(l.refs)
}

// End finishes recording.
func (l *List) End() error {
	switch l.state {
	case StateRecording:
		l.state = StateExecutable
		return nil
	case StateInRender:
		return fmt.Errorf("%w: %w: end inside render scope", rhi.ErrPrecondition, rhi.ErrRenderPassActive)
	}
	return l.notRecording("End")
}

// Executable reports whether the list can be submitted.
func (l *List) Executable() bool { return l.state == StateExecutable }

// BeginRender opens a render scope on pass. Every render target of the
// pass whose in-list usage is known must be usable as an attachment.
func (l *List) BeginRender(pass rhi.RenderPass) error {
	if err := l.requireRecording("BeginRender"); err != nil {
		return err
	}
	if pass == nil {
		return fmt.Errorf("%w: %w: nil render pass", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	targets := pass.ColorMultisampleAttachments()
	if len(targets) == 0 {
		targets = pass.ColorAttachments()
	}
	for _, t := range targets {
		if err := l.requireUsage(t, rhi.TextureUsageColorAttachment); err != nil {
			return err
		}
	}
	if ds := pass.DepthStencilAttachment(); ds != nil {
		if err := l.requireUsage(ds, rhi.TextureUsageDepthStencilAttachment); err != nil {
			return err
		}
	}

	for _, t := range targets {
		l.need(t, rhi.TextureUsageColorAttachment)
	}
	if ds := pass.DepthStencilAttachment(); ds != nil {
		l.need(ds, rhi.TextureUsageDepthStencilAttachment)
	}
	l.ref(pass)
	for _, t := range pass.ColorAttachments() {
		l.ref(t)
	}
	for _, t := range pass.ColorMultisampleAttachments() {
		l.ref(t)
	}
	if ds := pass.DepthStencilAttachment(); ds != nil {
		l.ref(ds)
	}
	l.pass = pass
	l.state = StateInRender
	l.cmds = append(l.cmds, Command{Op: OpBeginRender, Pass: pass})
	return nil
}

// EndRender closes the render scope.
func (l *List) EndRender() error {
	if err := l.requireRender("EndRender"); err != nil {
		return err
	}
	l.pass = nil
	l.state = StateRecording
	l.cmds = append(l.cmds, Command{Op: OpEndRender})
	return nil
}

// Pass returns the pass of the open render scope, or nil.
func (l *List) Pass() rhi.RenderPass { return l.pass }

// SetViewport records a viewport.
func (l *List) SetViewport(v Viewport) error {
	if err := l.requireRender("SetViewport"); err != nil {
		return err
	}
	l.cmds = append(l.cmds, Command{Op: OpSetViewport, Viewport: v})
	return nil
}

// SetScissor records a scissor rectangle.
func (l *List) SetScissor(s Scissor) error {
	if err := l.requireRender("SetScissor"); err != nil {
		return err
	}
	l.cmds = append(l.cmds, Command{Op: OpSetScissor, Scissor: s})
	return nil
}

// ClearColorAttachment records a clear of color attachment index.
func (l *List) ClearColorAttachment(index uint32, clear rhi.ClearValue) error {
	if err := l.requireRender("ClearColorAttachment"); err != nil {
		return err
	}
	if int(index) >= l.pass.ColorAttachmentCount() {
		return fmt.Errorf("%w: %w: color attachment %d of %d",
			rhi.ErrPrecondition, rhi.ErrInvalidArgument, index, l.pass.ColorAttachmentCount())
	}
	l.cmds = append(l.cmds, Command{Op: OpClearColorAttachment, Attachment: index, Clear: clear})
	return nil
}

// BindPipeline records a pipeline bind.
func (l *List) BindPipeline(p rhi.RenderPipeline) error {
	if err := l.requireRender("BindPipeline"); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %w: nil pipeline", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	l.ref(p)
	l.cmds = append(l.cmds, Command{Op: OpBindPipeline, Pipeline: p})
	return nil
}

// BindDescriptorSet records a descriptor set bind. Sampled textures of the
// set must not be in a non-sampled usage within this list.
func (l *List) BindDescriptorSet(p rhi.RenderPipeline, set rhi.DescriptorSet) error {
	if err := l.requireRender("BindDescriptorSet"); err != nil {
		return err
	}
	if p == nil || set == nil {
		return fmt.Errorf("%w: %w: nil pipeline or descriptor set", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	for _, d := range set.Descriptors() {
		if d.Type == rhi.DescriptorTypeTexture {
			if err := l.requireUsage(d.Texture, rhi.TextureUsageSampledImage); err != nil {
				return err
			}
		}
	}
	for _, d := range set.Descriptors() {
		switch d.Type {
		case rhi.DescriptorTypeTexture:
			l.need(d.Texture, rhi.TextureUsageSampledImage)
			l.ref(d.Texture)
		case rhi.DescriptorTypeUniform, rhi.DescriptorTypeStorage:
			l.ref(d.Buffer)
		case rhi.DescriptorTypeSampler:
			l.ref(d.Sampler)
		}
	}
	l.ref(p)
	l.ref(set)
	l.cmds = append(l.cmds, Command{Op: OpBindDescriptorSet, Pipeline: p, Set: set})
	return nil
}

// BindVertexBuffers records vertex buffers bound to slots 0..n-1.
func (l *List) BindVertexBuffers(buffers []rhi.Buffer) error {
	if err := l.requireRender("BindVertexBuffers"); err != nil {
		return err
	}
	if len(buffers) == 0 {
		return fmt.Errorf("%w: %w: no vertex buffers", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	for i, b := range buffers {
		if b == nil {
			return fmt.Errorf("%w: %w: nil vertex buffer %d", rhi.ErrPrecondition, rhi.ErrInvalidArgument, i)
		}
		if b.Usage() != rhi.BufferUsageVertex {
			return fmt.Errorf("%w: %w: vertex slot %d bound to %v buffer",
				rhi.ErrPrecondition, rhi.ErrInvalidArgument, i, b.Usage())
		}
		l.ref(b)
	}
	l.cmds = append(l.cmds, Command{Op: OpBindVertexBuffers, Buffers: append([]rhi.Buffer(nil), buffers...)})
	return nil
}

// BindIndexBuffer records an index buffer bind.
func (l *List) BindIndexBuffer(b rhi.Buffer) error {
	if err := l.requireRender("BindIndexBuffer"); err != nil {
		return err
	}
	if b == nil || b.Usage() != rhi.BufferUsageIndex {
		return fmt.Errorf("%w: %w: not an index buffer", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	l.ref(b)
	l.cmds = append(l.cmds, Command{Op: OpBindIndexBuffer, Buffers: []rhi.Buffer{b}})
	return nil
}

// Draw records a non-indexed draw.
func (l *List) Draw(count, first uint32) error {
	if err := l.requireRender("Draw"); err != nil {
		return err
	}
	l.cmds = append(l.cmds, Command{Op: OpDraw, Count: count, First: first})
	return nil
}

// DrawIndexed records an indexed draw.
func (l *List) DrawIndexed(count, first uint32) error {
	if err := l.requireRender("DrawIndexed"); err != nil {
		return err
	}
	l.cmds = append(l.cmds, Command{Op: OpDrawIndexed, Count: count, First: first})
	return nil
}

// Transition records a usage transition of t. before must equal the last
// usage this list moved t to, unless it is TextureUsageNone.
func (l *List) Transition(t rhi.Texture, before, after rhi.TextureUsage) error {
	if l.state == StateInRender {
		return fmt.Errorf("%w: %w: transition inside render scope", rhi.ErrPrecondition, rhi.ErrRenderPassActive)
	}
	if err := l.requireRecording("Transition"); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: %w: nil texture", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	if after&^t.Usage() != 0 {
		return fmt.Errorf("%w: %w: texture created for %v cannot move to %v",
			rhi.ErrPrecondition, rhi.ErrStateMismatch, t.Usage(), after)
	}
	tr := l.track(t)
	switch {
	case tr.Moved:
		if before != rhi.TextureUsageNone && before != tr.Last {
			return fmt.Errorf("%w: %w: transition from %v, texture is in %v",
				rhi.ErrPrecondition, rhi.ErrStateMismatch, before, tr.Last)
		}
	case before != rhi.TextureUsageNone && !before.Has(tr.Needs):
		return fmt.Errorf("%w: %w: transition from %v, texture was used as %v",
			rhi.ErrPrecondition, rhi.ErrStateMismatch, before, tr.Needs)
	default:
		tr.First = before
		tr.Moved = true
	}
	tr.Last = after
	l.ref(t)
	l.cmds = append(l.cmds, Command{Op: OpTransition, Texture: t, Before: before, After: after})
	return nil
}

// Transitions calls fn for each texture the list transitions or accesses
// as an attachment or sampled image, in first-use order.
func (l *List) Transitions(fn func(t rhi.Texture, tr Transition)) {
	for _, t := range l.order {
		fn(t, *l.textures[t])
	}
}

// References reports whether the list references r.
func (l *List) References(r any) bool {
	_, ok := l.refs[r]
	return ok
}

// Refs calls fn for every resource the list references.
func (l *List) Refs(fn func(r any)) {
	for r := range l.refs {
		fn(r)
	}
}

// Replay feeds every command to s in recording order, stopping at the
// first error.
func (l *List) Replay(s Sink) error {
	for i := range l.cmds {
		if err := replayOne(s, &l.cmds[i]); err != nil {
			return fmt.Errorf("cmdlist: command %d (%v): %w", i, l.cmds[i].Op, err)
		}
	}
	return nil
}

func replayOne(s Sink, c *Command) error {
	switch c.Op {
	case OpBeginRender:
		return s.BeginRender(c.Pass)
	case OpEndRender:
		return s.EndRender()
	case OpSetViewport:
		return s.SetViewport(c.Viewport)
	case OpSetScissor:
		return s.SetScissor(c.Scissor)
	case OpClearColorAttachment:
		return s.ClearColorAttachment(c.Attachment, c.Clear)
	case OpBindPipeline:
		return s.BindPipeline(c.Pipeline)
	case OpBindDescriptorSet:
		return s.BindDescriptorSet(c.Pipeline, c.Set)
	case OpBindVertexBuffers:
		return s.BindVertexBuffers(c.Buffers)
	case OpBindIndexBuffer:
		return s.BindIndexBuffer(c.Buffers[0])
	case OpDraw:
		return s.Draw(c.Count, c.First)
	case OpDrawIndexed:
		return s.DrawIndexed(c.Count, c.First)
	case OpTransition:
		return s.Transition(c.Texture, c.Before, c.After)
	}
	return fmt.Errorf("unknown op %v", c.Op)
}

func (l *List) ref(r any) {
	if r != nil {
		l.refs[r] = struct{}{}
	}
}

func (l *List) requireUsage(t rhi.Texture, want rhi.TextureUsage) error {
	if t == nil {
		return fmt.Errorf("%w: %w: nil texture", rhi.ErrPrecondition, rhi.ErrInvalidArgument)
	}
	tr, ok := l.textures[t]
	if !ok || !tr.Moved || tr.Last == rhi.TextureUsageNone {
		return nil
	}
	if !tr.Last.Has(want) {
		return fmt.Errorf("%w: %w: texture in %v, needs %v",
			rhi.ErrPrecondition, rhi.ErrStateMismatch, tr.Last, want)
	}
	return nil
}

// need records that t is accessed as want. Before any transition of t the
// usage accumulates into Needs.
func (l *List) need(t rhi.Texture, want rhi.TextureUsage) {
	if tr := l.track(t); !tr.Moved {
		tr.Needs |= want
	}
}

func (l *List) track(t rhi.Texture) *Transition {
	tr, ok := l.textures[t]
	if !ok {
		tr = &Transition{}
		l.textures[t] = tr
		l.order = append(l.order, t)
	}
	return tr
}

func (l *List) requireRecording(op string) error {
	if l.state != StateRecording && l.state != StateInRender {
		return l.notRecording(op)
	}
	return nil
}

func (l *List) requireRender(op string) error {
	if l.state == StateInRender {
		return nil
	}
	if l.state == StateRecording {
		return fmt.Errorf("%w: %w: %s", rhi.ErrPrecondition, rhi.ErrNoRenderPass, op)
	}
	return l.notRecording(op)
}

func (l *List) notRecording(op string) error {
	return fmt.Errorf("%w: %w: %s in %v state", rhi.ErrPrecondition, rhi.ErrNotRecording, op, l.state)
}
