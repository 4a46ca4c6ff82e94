// Package ui draws the dropzone inspector: the configured zones, the
// recent drops from the journal and a zone filter.
package ui

import (
	"fmt"
	"image"
	"path/filepath"

	"gioui.org/font"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/justyntemme/dropzone/internal/config"
	"github.com/justyntemme/dropzone/internal/debug"
	"github.com/justyntemme/dropzone/internal/search"
)

// maxFilesShown bounds the file rows drawn under a single drop.
const maxFilesShown = 8

type Panel struct {
	Theme      *material.Theme
	DarkMode   bool
	Thumbnails bool

	filter  *ToggleGroup
	toggles []*Toggle
	query   *search.Query

	searchEditor widget.Editor
	keys         *config.HotkeyMatcher
	fileClicks   map[string]*widget.Clickable
	openPath     string // Clicked this frame
	keyFilters   []event.Filter

	darkCheck  widget.Bool
	thumbCheck widget.Bool
	pruneBtn   widget.Clickable
	dropList   widget.List
	zoneList   widget.List

	thumbs    *ThumbnailCache
	thumbSize unit.Dp

	toast Toast
}

// NewPanel returns a panel drawing thumbnails from thumbs, which may be nil.
func NewPanel(thumbs *ThumbnailCache, thumbSize int) *Panel {
	p := &Panel{
		Theme:     material.NewTheme(),
		filter:    NewToggleGroup(true),
		query:     search.Parse(""),
		thumbs:    thumbs,
		thumbSize: unit.Dp(thumbSize),
	}
	p.dropList.Axis = layout.Vertical
	p.zoneList.Axis = layout.Vertical
	p.searchEditor.SingleLine = true
	p.Thumbnails = thumbs != nil
	p.thumbCheck.Value = p.Thumbnails
	applyPalette(p.Theme, false)
	return p
}

func (p *Panel) SetDarkMode(dark bool) {
	p.DarkMode = dark
	p.darkCheck.Value = dark
	applyPalette(p.Theme, dark)
}

func (p *Panel) SetThumbnails(on bool) {
	p.Thumbnails = on && p.thumbs != nil
	p.thumbCheck.Value = p.Thumbnails
}

// SyncZones makes the filter offer exactly names, in order. Toggles for
// zones that still exist keep their state.
func (p *Panel) SyncZones(names []string) {
	keep := make(map[string]*Toggle, len(p.toggles))
	for _, t := range p.toggles {
		keep[t.Value] = t
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for _, t := range p.toggles {
		if !wanted[t.Value] {
			p.filter.Remove(t)
		}
	}
	toggles := make([]*Toggle, 0, len(names))
	for _, n := range names {
		t, ok := keep[n]
		if !ok {
			t = NewToggle(n, n)
			p.filter.Add(t)
		}
		toggles = append(toggles, t)
	}
	p.toggles = toggles
	debug.Log(debug.UI, "panel zones synced: %v (filter %q)", names, p.Filter())
}

// Filter returns the selected zone, or "" when all zones are shown.
func (p *Panel) Filter() string {
	if m, _ := p.filter.Selected(); m != nil {
		return m.(*Toggle).Value
	}
	return ""
}

// SetFilter selects zone, or clears the filter for "" or an unknown zone.
func (p *Panel) SetFilter(zone string) {
	for _, t := range p.toggles {
		if t.Value == zone {
			t.Set(true)
			return
		}
	}
	if m, _ := p.filter.Selected(); m != nil {
		p.filter.Request(m, false)
	}
}

// SetHotkeys installs the keyboard shortcuts; nil disables them.
func (p *Panel) SetHotkeys(m *config.HotkeyMatcher) {
	p.keys, p.keyFilters = m, nil
	if m != nil {
		p.keyFilters = m.Filters(nil)
	}
}

// handleKey runs the shortcut k and reports whether the search box
// should take focus.
func (p *Panel) handleKey(k key.Event) (PanelEvent, bool) {
	keys := p.keys
	switch {
	case keys.FocusSearch.Matches(k):
		return PanelEvent{}, true
	case keys.Escape.Matches(k):
		if p.searchEditor.Text() != "" {
			p.searchEditor.SetText("")
			p.SetSearch("")
		} else if p.Filter() != "" {
			p.SetFilter("")
			return PanelEvent{Action: ActionFilterZone}, false
		}
	case keys.Prune.Matches(k):
		return PanelEvent{Action: ActionPruneJournal}, false
	case keys.ToggleTheme.Matches(k):
		p.SetDarkMode(!p.DarkMode)
		return PanelEvent{Action: ActionChangeTheme, DarkMode: p.DarkMode}, false
	case keys.ToggleThumbnails.Matches(k):
		if p.thumbs != nil {
			p.SetThumbnails(!p.Thumbnails)
			return PanelEvent{Action: ActionToggleThumbnails, Thumbnails: p.Thumbnails}, false
		}
	case keys.NextZone.Matches(k):
		return p.stepFilter(1), false
	case keys.PrevZone.Matches(k):
		return p.stepFilter(-1), false
	}
	return PanelEvent{}, false
}

// stepFilter moves the zone filter by d through the zones and "all".
func (p *Panel) stepFilter(d int) PanelEvent {
	n := len(p.toggles)
	if n == 0 {
		return PanelEvent{}
	}
	// Positions 0..n-1 are zones, n is "all"
	cur, zone := n, p.Filter()
	for i, t := range p.toggles {
		if t.Value == zone {
			cur = i
		}
	}
	next := ((cur+d)%(n+1) + n + 1) % (n + 1)
	if next == n {
		p.SetFilter("")
	} else {
		p.SetFilter(p.toggles[next].Value)
	}
	return PanelEvent{Action: ActionFilterZone, Zone: p.Filter()}
}

// Close detaches the filter toggles and stops the thumbnail loader.
func (p *Panel) Close() {
	p.filter.Close()
	if p.thumbs != nil {
		p.thumbs.Stop()
	}
}

// SetSearch filters the listed files by a search query.
func (p *Panel) SetSearch(text string) {
	p.query = search.Parse(text)
	debug.Log(debug.UI, "search %q: %d directives", text, len(p.query.Directives))
}

// visibleDrops applies the zone filter and the search query. Drops left
// with no matching file are hidden.
func (p *Panel) visibleDrops(drops []DropView) []DropView {
	zone := p.Filter()
	if zone == "" && p.query.IsEmpty() {
		return drops
	}
	out := make([]DropView, 0, len(drops))
	for _, d := range drops {
		if zone != "" && d.Zone != zone {
			continue
		}
		if p.query.IsEmpty() {
			out = append(out, d)
			continue
		}
		var files []FileView
		for _, f := range d.Files {
			if p.query.Match(search.Item{Path: f.Path, Zone: d.Zone, Size: f.Size, IsDir: f.IsDir, Missing: f.Missing, At: d.At}) {
				files = append(files, f)
			}
		}
		if len(files) > 0 {
			d.Files = files
			out = append(out, d)
		}
	}
	return out
}

// Layout draws one frame and reports what the user asked for.
func (p *Panel) Layout(gtx layout.Context, state *PanelState) PanelEvent {
	var eventOut PanelEvent

	for _, t := range p.toggles {
		if t.Update(gtx) {
			eventOut = PanelEvent{Action: ActionFilterZone, Zone: p.Filter()}
		}
	}
	if p.darkCheck.Update(gtx) {
		p.SetDarkMode(p.darkCheck.Value)
		eventOut = PanelEvent{Action: ActionChangeTheme, DarkMode: p.DarkMode}
	}
	if p.thumbCheck.Update(gtx) {
		p.SetThumbnails(p.thumbCheck.Value)
		eventOut = PanelEvent{Action: ActionToggleThumbnails, Thumbnails: p.Thumbnails}
	}
	if p.pruneBtn.Clicked(gtx) {
		eventOut = PanelEvent{Action: ActionPruneJournal}
	}
	for len(p.keyFilters) > 0 {
		e, ok := gtx.Event(p.keyFilters...)
		if !ok {
			break
		}
		k, ok := e.(key.Event)
		if !ok || k.State != key.Press {
			continue
		}
		debug.Log(debug.UI, "hotkey %s", config.Hotkey{Key: k.Name, Modifiers: k.Modifiers})
		evt, focus := p.handleKey(k)
		if focus {
			gtx.Execute(key.FocusCmd{Tag: &p.searchEditor})
		}
		if evt.Action != ActionNone {
			eventOut = evt
		}
	}
	for {
		ev, ok := p.searchEditor.Update(gtx)
		if !ok {
			break
		}
		if _, ok := ev.(widget.ChangeEvent); ok {
			p.SetSearch(p.searchEditor.Text())
		}
	}

	paint.FillShape(gtx.Ops, colWhite, clip.Rect{Max: gtx.Constraints.Max}.Op())

	layout.Stack{}.Layout(gtx,
		layout.Stacked(func(gtx layout.Context) layout.Dimensions {
			return p.layoutBody(gtx, state)
		}),
		layout.Expanded(p.layoutToast),
	)
	if p.openPath != "" {
		eventOut = PanelEvent{Action: ActionOpenFile, Path: p.openPath}
		p.openPath = ""
	}
	p.pruneFileClicks(state.Drops)
	return eventOut
}

// fileClick returns the clickable of the file row for path.
func (p *Panel) fileClick(path string) *widget.Clickable {
	if p.fileClicks == nil {
		p.fileClicks = make(map[string]*widget.Clickable)
	}
	c, ok := p.fileClicks[path]
	if !ok {
		c = new(widget.Clickable)
		p.fileClicks[path] = c
	}
	return c
}

// pruneFileClicks forgets rows of files no longer listed.
func (p *Panel) pruneFileClicks(drops []DropView) {
	if len(p.fileClicks) == 0 {
		return
	}
	listed := make(map[string]bool)
	for _, d := range drops {
		for _, f := range d.Files {
			listed[f.Path] = true
		}
	}
	for path := range p.fileClicks {
		if !listed[path] {
			delete(p.fileClicks, path)
		}
	}
}

func (p *Panel) layoutBody(gtx layout.Context, state *PanelState) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return p.layoutConfigErrorBanner(gtx, state.ConfigError)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return p.layoutStatus(gtx, state)
		}),
		layout.Rigid(p.layoutSeparator),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					gtx.Constraints.Min.X, gtx.Constraints.Max.X = gtx.Dp(200), gtx.Dp(200)
					paint.FillShape(gtx.Ops, colSidebar, clip.Rect{Max: gtx.Constraints.Max}.Op())
					return p.layoutZones(gtx, state)
				}),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					paint.FillShape(gtx.Ops, colDivider, clip.Rect{Max: image.Pt(gtx.Dp(1), gtx.Constraints.Max.Y)}.Op())
					return layout.Dimensions{Size: image.Pt(gtx.Dp(1), gtx.Constraints.Max.Y)}
				}),
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						layout.Rigid(p.layoutSearch),
						layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
							return p.layoutDrops(gtx, p.visibleDrops(state.Drops))
						}),
					)
				}),
			)
		}),
	)
}

func (p *Panel) layoutSeparator(gtx layout.Context) layout.Dimensions {
	height := gtx.Dp(unit.Dp(1))
	paint.FillShape(gtx.Ops, colLightGray, clip.Rect{Max: image.Pt(gtx.Constraints.Max.X, height)}.Op())
	return layout.Dimensions{Size: image.Pt(gtx.Constraints.Max.X, height)}
}

// layoutConfigErrorBanner renders a red error banner when the config failed to load
func (p *Panel) layoutConfigErrorBanner(gtx layout.Context, msg string) layout.Dimensions {
	if msg == "" {
		return layout.Dimensions{}
	}
	return layout.Inset{Left: unit.Dp(8), Right: unit.Dp(8), Top: unit.Dp(4), Bottom: unit.Dp(4)}.Layout(gtx,
		func(gtx layout.Context) layout.Dimensions {
			height := gtx.Dp(28)
			paint.FillShape(gtx.Ops, colErrorBannerBg, clip.Rect{Max: image.Pt(gtx.Constraints.Max.X, height)}.Op())

			return layout.Inset{Top: unit.Dp(4), Bottom: unit.Dp(4), Left: unit.Dp(12), Right: unit.Dp(12)}.Layout(gtx,
				func(gtx layout.Context) layout.Dimensions {
					lbl := material.Body2(p.Theme, "Config error: "+msg+" (using defaults)")
					lbl.Color = colErrorBannerText
					lbl.Font.Weight = font.Bold
					lbl.MaxLines = 1
					return lbl.Layout(gtx)
				})
		})
}

func (p *Panel) layoutStatus(gtx layout.Context, state *PanelState) layout.Dimensions {
	return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				text := fmt.Sprintf("Session: %s   Targets: %d   Queued: %d", state.Protocol, state.Targets, state.Queued)
				if state.Progress != "" {
					text += "   " + state.Progress
				}
				lbl := material.Body2(p.Theme, text)
				lbl.Color = colGray
				lbl.MaxLines = 1
				return lbl.Layout(gtx)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				if p.thumbs == nil {
					return layout.Dimensions{}
				}
				return material.CheckBox(p.Theme, &p.thumbCheck, "Thumbnails").Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return material.CheckBox(p.Theme, &p.darkCheck, "Dark").Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				btn := material.Button(p.Theme, &p.pruneBtn, "Prune")
				btn.Inset = layout.Inset{Top: unit.Dp(4), Bottom: unit.Dp(4), Left: unit.Dp(10), Right: unit.Dp(10)}
				return btn.Layout(gtx)
			}),
		)
	})
}

func (p *Panel) layoutSearch(gtx layout.Context) layout.Dimensions {
	return layout.Inset{Left: unit.Dp(8), Right: unit.Dp(8), Top: unit.Dp(6), Bottom: unit.Dp(2)}.Layout(gtx,
		func(gtx layout.Context) layout.Dimensions {
			ed := material.Editor(p.Theme, &p.searchEditor, "Search: name, ext:jpg, size:>1MB, dropped:today, is:missing")
			ed.HintColor = colGray
			return ed.Layout(gtx)
		})
}

func (p *Panel) layoutZones(gtx layout.Context, state *PanelState) layout.Dimensions {
	byName := make(map[string]ZoneView, len(state.Zones))
	for _, z := range state.Zones {
		byName[z.Name] = z
	}
	return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				lbl := material.Body1(p.Theme, "Zones")
				lbl.Font.Weight = font.Bold
				return lbl.Layout(gtx)
			}),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return material.List(p.Theme, &p.zoneList).Layout(gtx, len(p.toggles), func(gtx layout.Context, i int) layout.Dimensions {
					t := p.toggles[i]
					return p.layoutZoneRow(gtx, t, byName[t.Value])
				})
			}),
		)
	})
}

func (p *Panel) layoutZoneRow(gtx layout.Context, t *Toggle, z ZoneView) layout.Dimensions {
	return layout.Stack{}.Layout(gtx,
		layout.Expanded(func(gtx layout.Context) layout.Dimensions {
			if z.Hovered {
				paint.FillShape(gtx.Ops, colSelected, clip.Rect{Max: gtx.Constraints.Min}.Op())
			}
			return layout.Dimensions{Size: gtx.Constraints.Min}
		}),
		layout.Stacked(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return t.Layout(gtx, p.Theme)
				}),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					r := z.Rect
					text := fmt.Sprintf("%dx%d at %d,%d  drops: %d", r.Dx(), r.Dy(), r.Min.X, r.Min.Y, z.Drops)
					switch {
					case z.Trash:
						text += "  (moves to trash)"
					case z.ExpandDirs:
						text += "  (expands dirs)"
					}
					lbl := material.Caption(p.Theme, text)
					lbl.Color = colGray
					return layout.Inset{Left: unit.Dp(32), Bottom: unit.Dp(4)}.Layout(gtx, lbl.Layout)
				}),
			)
		}),
	)
}

func (p *Panel) layoutDrops(gtx layout.Context, drops []DropView) layout.Dimensions {
	if len(drops) == 0 {
		return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			lbl := material.Body1(p.Theme, "Nothing dropped yet")
			lbl.Color = colGray
			return lbl.Layout(gtx)
		})
	}
	return material.List(p.Theme, &p.dropList).Layout(gtx, len(drops), func(gtx layout.Context, i int) layout.Dimensions {
		return layout.Inset{Left: unit.Dp(8), Right: unit.Dp(8), Top: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			return p.layoutDrop(gtx, &drops[i])
		})
	})
}

func (p *Panel) layoutDrop(gtx layout.Context, d *DropView) layout.Dimensions {
	children := []layout.FlexChild{
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			text := fmt.Sprintf("#%d  %s  at %d,%d  %s", d.ID, d.Zone, d.Pos.X, d.Pos.Y, d.At.Format("15:04:05"))
			if d.Pending {
				text += "  (expanding)"
			}
			lbl := material.Body2(p.Theme, text)
			lbl.Font.Weight = font.Bold
			return lbl.Layout(gtx)
		}),
	}
	shown := d.Files
	if len(shown) > maxFilesShown {
		shown = shown[:maxFilesShown]
	}
	for i := range shown {
		f := &shown[i]
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return p.layoutFile(gtx, f)
		}))
	}
	if extra := len(d.Files) - len(shown); extra > 0 {
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			lbl := material.Caption(p.Theme, fmt.Sprintf("and %d more", extra))
			lbl.Color = colGray
			return layout.Inset{Left: unit.Dp(16)}.Layout(gtx, lbl.Layout)
		}))
	}
	children = append(children, layout.Rigid(p.layoutSeparator))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
}

func (p *Panel) layoutFile(gtx layout.Context, f *FileView) layout.Dimensions {
	if f.Missing {
		return p.layoutFileRow(gtx, f)
	}
	click := p.fileClick(f.Path)
	if click.Clicked(gtx) {
		p.openPath = f.Path
	}
	return click.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return p.layoutFileRow(gtx, f)
	})
}

func (p *Panel) layoutFileRow(gtx layout.Context, f *FileView) layout.Dimensions {
	return layout.Inset{Left: unit.Dp(16), Top: unit.Dp(2)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return p.layoutThumbnail(gtx, f)
			}),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				lbl := material.Body2(p.Theme, filepath.Base(f.Path))
				lbl.MaxLines = 1
				switch {
				case f.Missing:
					lbl.Color = colDanger
				case f.IsDir:
					lbl.Color = colAccent
				default:
					lbl.Color = colBlack
				}
				return lbl.Layout(gtx)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				var text string
				switch {
				case f.Missing:
					text = "missing"
				case f.IsDir:
					text = "dir"
				default:
					text = formatSize(f.Size)
				}
				lbl := material.Caption(p.Theme, text)
				lbl.Color = colGray
				return lbl.Layout(gtx)
			}),
		)
	})
}

func (p *Panel) layoutThumbnail(gtx layout.Context, f *FileView) layout.Dimensions {
	if !p.Thumbnails || f.Missing || f.IsDir || !IsImagePath(f.Path) {
		return layout.Dimensions{}
	}
	size := gtx.Dp(p.thumbSize)
	thumb, _, ok := p.thumbs.Get(f.Path)
	if !ok {
		p.thumbs.RequestLoad(f.Path)
		paint.FillShape(gtx.Ops, colLightGray, clip.Rect{Max: image.Pt(size, size)}.Op())
		return layout.Dimensions{Size: image.Pt(size+gtx.Dp(6), size)}
	}
	gtx.Constraints.Min = image.Pt(size, size)
	gtx.Constraints.Max = image.Pt(size, size)
	widget.Image{
		Src:      thumb,
		Fit:      widget.Contain,
		Position: layout.Center,
	}.Layout(gtx)
	return layout.Dimensions{Size: image.Pt(size+gtx.Dp(6), size)}
}
