package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// theme is a color palette for the terminal UI, applied to tview's global
// styles.
type theme struct {
	primitiveBackground    tcell.Color
	contrastBackground     tcell.Color
	moreContrastBackground tcell.Color
	border                 tcell.Color
	title                  tcell.Color
	graphics               tcell.Color
	primaryText            tcell.Color
	secondaryText          tcell.Color
	tertiaryText           tcell.Color
	inverseText            tcell.Color
	contrastSecondaryText  tcell.Color
}

// applyTheme installs the named palette. It must run before any tview
// primitives are constructed; tview reads the style globals at build time.
func applyTheme(name string) error {
	var t *theme
	switch name {
	case "solarized":
		t = solarizedTheme()
	case "gruvbox":
		t = gruvboxTheme()
	case "cyberpunk":
		t = cyberpunkTheme()
	default:
		return fmt.Errorf("invalid theme name: %s (available: solarized, gruvbox, cyberpunk)", name)
	}
	t.apply()
	return nil
}

func (t *theme) apply() {
	tview.Styles.PrimitiveBackgroundColor = t.primitiveBackground
	tview.Styles.ContrastBackgroundColor = t.contrastBackground
	tview.Styles.MoreContrastBackgroundColor = t.moreContrastBackground
	tview.Styles.BorderColor = t.border
	tview.Styles.TitleColor = t.title
	tview.Styles.GraphicsColor = t.graphics
	tview.Styles.PrimaryTextColor = t.primaryText
	tview.Styles.SecondaryTextColor = t.secondaryText
	tview.Styles.TertiaryTextColor = t.tertiaryText
	tview.Styles.InverseTextColor = t.inverseText
	tview.Styles.ContrastSecondaryTextColor = t.contrastSecondaryText
}

// solarizedTheme returns the Solarized Dark palette, the default.
func solarizedTheme() *theme {
	base03 := tcell.NewRGBColor(0, 43, 54)    // Darkest background
	base02 := tcell.NewRGBColor(7, 54, 66)    // Dark background
	base01 := tcell.NewRGBColor(88, 110, 117) // Dark content
	base0 := tcell.NewRGBColor(131, 148, 150) // Bright content
	base1 := tcell.NewRGBColor(147, 161, 161) // Brighter content
	base2 := tcell.NewRGBColor(238, 232, 213) // Light background
	base3 := tcell.NewRGBColor(253, 246, 227) // Lightest background
	yellow := tcell.NewRGBColor(181, 137, 0)
	cyan := tcell.NewRGBColor(42, 161, 152)

	return &theme{
		primitiveBackground:    base03,
		contrastBackground:     base02,
		moreContrastBackground: base01,
		border:                 base0,
		title:                  base1,
		graphics:               base0,
		primaryText:            base0,
		secondaryText:          yellow,
		tertiaryText:           cyan,
		inverseText:            base3,
		contrastSecondaryText:  base2,
	}
}

// gruvboxTheme returns the Gruvbox Dark palette.
// Based on: https://github.com/morhetz/gruvbox
func gruvboxTheme() *theme {
	bg0 := tcell.NewRGBColor(40, 40, 40)
	bg1 := tcell.NewRGBColor(60, 56, 54)
	bg2 := tcell.NewRGBColor(80, 73, 69)
	fg0 := tcell.NewRGBColor(235, 219, 178)
	fg1 := tcell.NewRGBColor(251, 241, 199)
	yellow := tcell.NewRGBColor(215, 153, 33)
	aqua := tcell.NewRGBColor(104, 157, 106)
	gray := tcell.NewRGBColor(146, 131, 116)

	return &theme{
		primitiveBackground:    bg0,
		contrastBackground:     bg1,
		moreContrastBackground: bg2,
		border:                 gray,
		title:                  fg1,
		graphics:               gray,
		primaryText:            fg0,
		secondaryText:          yellow,
		tertiaryText:           aqua,
		inverseText:            fg1,
		contrastSecondaryText:  fg0,
	}
}

// cyberpunkTheme returns a high-contrast neon palette.
func cyberpunkTheme() *theme {
	bg0 := tcell.NewRGBColor(16, 13, 35) // Dark purple background
	bg1 := tcell.NewRGBColor(30, 29, 69)
	bg2 := tcell.NewRGBColor(12, 10, 25)
	green := tcell.NewRGBColor(0, 255, 156)
	yellow := tcell.NewRGBColor(255, 255, 0)
	magenta := tcell.NewRGBColor(255, 0, 255)
	cyan := tcell.NewRGBColor(0, 255, 255)

	return &theme{
		primitiveBackground:    bg0,
		contrastBackground:     bg1,
		moreContrastBackground: bg2,
		border:                 cyan,
		title:                  cyan,
		graphics:               magenta,
		primaryText:            green,
		secondaryText:          yellow,
		tertiaryText:           cyan,
		inverseText:            cyan,
		contrastSecondaryText:  green,
	}
}
