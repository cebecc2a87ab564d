// Package mapview holds the marker color palette of the map page.
package mapview

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marker kinds.
const (
	KindStadium = "stadium"
	KindHotel   = "hotel"
	KindSpot    = "spot"
)

//go:embed palette.yaml
var defaultPalette []byte

// Palette maps marker kinds and spot categories to CSS colors.
type Palette struct {
	Default    string            `yaml:"default"`
	Kinds      map[string]string `yaml:"kinds"`
	Categories map[string]string `yaml:"categories"`
}

// DefaultPalette returns the embedded palette.
func DefaultPalette() (*Palette, error) {
	return ParsePalette(defaultPalette)
}

// ParsePalette reads a palette from YAML. Keys are matched case-insensitively.
func ParsePalette(data []byte) (*Palette, error) {
	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("mapview: parsing palette: %w", err)
	}
	if p.Default == "" {
		return nil, fmt.Errorf("mapview: palette has no default color")
	}
	p.Kinds = lowerKeys(p.Kinds)
	p.Categories = lowerKeys(p.Categories)
	return &p, nil
}

// Color picks the category color, then the kind color, then the default.
func (p *Palette) Color(kind, category string) string {
	if c, ok := p.Categories[strings.ToLower(strings.TrimSpace(category))]; ok {
		return c
	}
	if c, ok := p.Kinds[strings.ToLower(kind)]; ok {
		return c
	}
	return p.Default
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
