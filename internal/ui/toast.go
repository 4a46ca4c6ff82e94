package ui

import (
	"image"
	"image/color"
	"sync"
	"time"

	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"
)

// ToastType indicates the severity/type of toast message
type ToastType int

const (
	ToastInfo ToastType = iota
	ToastSuccess
	ToastWarning
	ToastError
)

// Toast is a temporary notification drawn over the panel. It may be
// shown from any goroutine.
type Toast struct {
	mu        sync.Mutex
	message   string
	typ       ToastType
	expiresAt time.Time
}

// toastDuration is how long toasts are displayed
const toastDuration = 3 * time.Second

func (t *Toast) show(message string, typ ToastType, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = message
	t.typ = typ
	t.expiresAt = now.Add(toastDuration)
}

// current returns the toast to draw at now, if one has not expired.
func (t *Toast) current(now time.Time) (message string, typ ToastType, expiresAt time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.message == "" || !now.Before(t.expiresAt) {
		return "", ToastInfo, time.Time{}, false
	}
	return t.message, t.typ, t.expiresAt, true
}

// ShowToast displays a notification that dismisses itself. Safe to call
// from any goroutine; the caller invalidates the window.
func (p *Panel) ShowToast(message string, typ ToastType) {
	p.toast.show(message, typ, time.Now())
}

var toastText = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

func toastColors(typ ToastType) (bg, fg color.NRGBA) {
	switch typ {
	case ToastError:
		return color.NRGBA{R: 200, G: 50, B: 50, A: 240}, toastText
	case ToastWarning:
		return color.NRGBA{R: 220, G: 160, B: 40, A: 240}, color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	case ToastSuccess:
		return color.NRGBA{R: 50, G: 160, B: 80, A: 240}, toastText
	default:
		return color.NRGBA{R: 60, G: 60, B: 60, A: 240}, toastText
	}
}

// layoutToast renders the toast at the bottom of the panel
func (p *Panel) layoutToast(gtx layout.Context) layout.Dimensions {
	message, typ, expiresAt, ok := p.toast.current(gtx.Now)
	if !ok {
		return layout.Dimensions{}
	}
	// Redraw once it should be gone
	gtx.Execute(op.InvalidateCmd{At: expiresAt})
	bgColor, textColor := toastColors(typ)

	return layout.S.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Bottom: unit.Dp(20), Left: unit.Dp(20), Right: unit.Dp(20)}.Layout(gtx,
			func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min.X = 0
				gtx.Constraints.Max.X = min(gtx.Constraints.Max.X, gtx.Dp(unit.Dp(420)))

				// Measure text first
				macro := op.Record(gtx.Ops)
				textDims := layout.Inset{
					Top:    unit.Dp(10),
					Bottom: unit.Dp(10),
					Left:   unit.Dp(16),
					Right:  unit.Dp(16),
				}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					label := material.Body1(p.Theme, message)
					label.Color = textColor
					label.MaxLines = 2
					return label.Layout(gtx)
				})
				call := macro.Stop()

				rr := gtx.Dp(unit.Dp(8))
				paint.FillShape(gtx.Ops, bgColor, clip.RRect{
					Rect: image.Rectangle{Max: textDims.Size},
					NE:   rr, NW: rr, SE: rr, SW: rr,
				}.Op(gtx.Ops))
				call.Add(gtx.Ops)
				return textDims
			})
	})
}
