package ui

import (
	"gioui.org/layout"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/justyntemme/dropzone/internal/debug"
)

// Member is a toggle that can belong to a ToggleGroup. The group calls
// SetChecked and SetGroup; members route user changes through
// ToggleGroup.Request.
type Member interface {
	Checked() bool
	SetChecked(on bool)
	SetGroup(g *ToggleGroup)
}

// ToggleGroup keeps at most one of its members checked. Unless all-off
// is allowed, exactly one member is checked whenever the group has any.
// A ToggleGroup is used from the UI goroutine only.
type ToggleGroup struct {
	members     []Member
	allowAllOff bool
}

// NewToggleGroup returns an empty group.
func NewToggleGroup(allowAllOff bool) *ToggleGroup {
	return &ToggleGroup{allowAllOff: allowAllOff}
}

// Add registers m. When the group already has a checked member, m is
// unchecked; when all-off is not allowed the first member starts checked.
func (g *ToggleGroup) Add(m Member) {
	if g.indexOf(m) >= 0 {
		return
	}
	if prev := memberGroup(m); prev != nil && prev != g {
		prev.Remove(m)
	}
	m.SetGroup(g)
	if _, sel := g.Selected(); sel >= 0 {
		m.SetChecked(false)
	} else if !g.allowAllOff && len(g.members) == 0 {
		m.SetChecked(true)
	}
	g.members = append(g.members, m)
}

// Remove unregisters m. If m was the checked member and all-off is not
// allowed, the first remaining member becomes checked.
func (g *ToggleGroup) Remove(m Member) {
	i := g.indexOf(m)
	if i < 0 {
		return
	}
	g.members = append(g.members[:i], g.members[i+1:]...)
	m.SetGroup(nil)
	if m.Checked() && !g.allowAllOff && len(g.members) > 0 {
		g.members[0].SetChecked(true)
	}
}

// Request applies a user change of m to on, keeping the group rules:
// checking a member unchecks the others, and the last checked member
// cannot be unchecked unless all-off is allowed. It returns the state m
// ends up in.
func (g *ToggleGroup) Request(m Member, on bool) bool {
	if g.indexOf(m) < 0 {
		m.SetChecked(on)
		return on
	}
	if on {
		for _, o := range g.members {
			if o != m && o.Checked() {
				o.SetChecked(false)
			}
		}
		m.SetChecked(true)
		return true
	}
	if !g.allowAllOff {
		m.SetChecked(true)
		return true
	}
	m.SetChecked(false)
	return false
}

// Selected returns the checked member and its index, or nil and -1.
func (g *ToggleGroup) Selected() (Member, int) {
	for i, m := range g.members {
		if m.Checked() {
			return m, i
		}
	}
	return nil, -1
}

// Len returns the number of members.
func (g *ToggleGroup) Len() int { return len(g.members) }

// Close detaches every member, leaving their states unchanged.
func (g *ToggleGroup) Close() {
	for _, m := range g.members {
		m.SetGroup(nil)
	}
	g.members = nil
}

func (g *ToggleGroup) indexOf(m Member) int {
	for i, o := range g.members {
		if o == m {
			return i
		}
	}
	return -1
}

// groupOf is implemented by members that know their group.
type groupOf interface {
	Group() *ToggleGroup
}

// memberGroup returns the group m currently belongs to, if it reports one.
func memberGroup(m Member) *ToggleGroup {
	if gm, ok := m.(groupOf); ok {
		return gm.Group()
	}
	return nil
}

// Toggle is a labelled check box that can join a ToggleGroup.
type Toggle struct {
	Label string
	Value string // Caller data, e.g. the zone name
	box   widget.Bool
	grp   *ToggleGroup
}

// NewToggle returns an unchecked toggle.
func NewToggle(label, value string) *Toggle {
	return &Toggle{Label: label, Value: value}
}

func (t *Toggle) Checked() bool           { return t.box.Value }
func (t *Toggle) SetChecked(on bool)      { t.box.Value = on }
func (t *Toggle) SetGroup(g *ToggleGroup) { t.grp = g }
func (t *Toggle) Group() *ToggleGroup     { return t.grp }

// Set changes the toggle as a click would, honouring its group.
func (t *Toggle) Set(on bool) bool {
	if t.grp == nil {
		t.box.Value = on
		return on
	}
	return t.grp.Request(t, on)
}

// Update processes clicks and reports whether the checked state changed.
func (t *Toggle) Update(gtx layout.Context) bool {
	if !t.box.Update(gtx) {
		return false
	}
	// widget.Bool has already flipped Value
	want := t.box.Value
	t.box.Value = !want
	before := t.box.Value
	got := t.Set(want)
	debug.Log(debug.UI, "toggle %q: requested %v, now %v", t.Label, want, got)
	return got != before
}

// Layout draws the toggle as a check box.
func (t *Toggle) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	return material.CheckBox(th, &t.box, t.Label).Layout(gtx)
}
