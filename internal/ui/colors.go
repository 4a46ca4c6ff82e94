package ui

import (
	"image/color"

	"gioui.org/widget/material"
)

// Theme colors - these are variables so they can be modified for dark mode
var (
	colWhite     = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	colBlack     = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	colGray      = color.NRGBA{R: 100, G: 100, B: 100, A: 255}
	colLightGray = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	colSelected  = color.NRGBA{R: 200, G: 220, B: 255, A: 255}
	colSidebar   = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	colAccent    = color.NRGBA{R: 66, G: 133, B: 244, A: 255}
	colDanger    = color.NRGBA{R: 220, G: 53, B: 69, A: 255}
	colDivider   = color.NRGBA{A: 50}
	// Config error banner colors
	colErrorBannerBg   = color.NRGBA{R: 220, G: 53, B: 69, A: 255}
	colErrorBannerText = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

type palette struct {
	bg, fg, muted, border, selected, sidebar color.NRGBA
}

var (
	lightPalette = palette{
		bg:       color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		fg:       color.NRGBA{R: 0, G: 0, B: 0, A: 255},
		muted:    color.NRGBA{R: 100, G: 100, B: 100, A: 255},
		border:   color.NRGBA{R: 200, G: 200, B: 200, A: 255},
		selected: color.NRGBA{R: 200, G: 220, B: 255, A: 255},
		sidebar:  color.NRGBA{R: 245, G: 245, B: 245, A: 255},
	}
	darkPalette = palette{
		bg:       color.NRGBA{R: 30, G: 30, B: 30, A: 255},
		fg:       color.NRGBA{R: 230, G: 230, B: 230, A: 255},
		muted:    color.NRGBA{R: 150, G: 150, B: 150, A: 255},
		border:   color.NRGBA{R: 70, G: 70, B: 70, A: 255},
		selected: color.NRGBA{R: 45, G: 70, B: 110, A: 255},
		sidebar:  color.NRGBA{R: 40, G: 40, B: 40, A: 255},
	}
)

// applyPalette switches the package colors and th to the light or dark set.
func applyPalette(th *material.Theme, dark bool) {
	p := lightPalette
	if dark {
		p = darkPalette
	}
	colWhite, colBlack = p.bg, p.fg
	colGray, colLightGray = p.muted, p.border
	colSelected, colSidebar = p.selected, p.sidebar

	th.Palette.Bg = p.bg
	th.Palette.Fg = p.fg
	th.Palette.ContrastBg = colAccent
	th.Palette.ContrastFg = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
}
