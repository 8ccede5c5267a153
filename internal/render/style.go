// Package render turns chart states into Chart.js configs, PNG images and
// live pushes to subscribed clients and browser tabs.
package render

import (
	"fmt"

	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

// Style holds the presentation settings shared by every renderer.
type Style struct {
	Title            string   `yaml:"title" json:"title"`
	EmptyTitle       string   `yaml:"empty_title" json:"empty_title"`
	XAxisTitle       string   `yaml:"x_axis_title" json:"x_axis_title"`
	YAxisTitle       string   `yaml:"y_axis_title" json:"y_axis_title"`
	Palette          []string `yaml:"palette" json:"palette,omitempty"`
	DescriptionLimit int      `yaml:"description_limit" json:"description_limit"`
	Width            int      `yaml:"width" json:"width"`
	Height           int      `yaml:"height" json:"height"`
}

// DefaultStyle returns the built-in presentation settings.
func DefaultStyle() Style {
	return Style{
		Title:            "Bond Yield vs Time to Maturity - Multi-Scatter Analysis",
		EmptyTitle:       "Bond Yield vs Time to Maturity",
		XAxisTitle:       "Time to Maturity (Years)",
		YAxisTitle:       "Yield (%)",
		DescriptionLimit: 50,
		Width:            1200,
		Height:           700,
	}
}

// WithDefaults fills zero fields from DefaultStyle.
func (s Style) WithDefaults() Style {
	d := DefaultStyle()
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.EmptyTitle == "" {
		s.EmptyTitle = d.EmptyTitle
	}
	if s.XAxisTitle == "" {
		s.XAxisTitle = d.XAxisTitle
	}
	if s.YAxisTitle == "" {
		s.YAxisTitle = d.YAxisTitle
	}
	if s.DescriptionLimit <= 0 {
		s.DescriptionLimit = d.DescriptionLimit
	}
	if s.Width <= 0 {
		s.Width = d.Width
	}
	if s.Height <= 0 {
		s.Height = d.Height
	}
	return s
}

// ChartPalette parses the configured palette. An empty list selects
// chartsync.DefaultPalette.
func (s Style) ChartPalette() (chartsync.Palette, error) {
	if len(s.Palette) == 0 {
		return chartsync.DefaultPalette, nil
	}
	out := make(chartsync.Palette, 0, len(s.Palette))
	for i, raw := range s.Palette {
		c, err := chartsync.ParseColor(raw)
		if err != nil {
			return nil, fmt.Errorf("palette[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
