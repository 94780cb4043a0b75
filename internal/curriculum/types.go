package curriculum

import (
	"encoding/json"

	"github.com/p-n-ai/finedu/internal/catalog"
)

// Topic is a seed course topic.
type Topic struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// Theme is a color theme of the view layer.
type Theme struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Colors Colors `yaml:"colors" json:"colors"`
}

// Colors holds space separated RGB triplets.
type Colors struct {
	Primary           string `yaml:"primary"`
	PrimaryLight      string `yaml:"primary_light"`
	PrimaryDark       string `yaml:"primary_dark"`
	PrimarySuperLight string `yaml:"primary_super_light"`
	Accent            string `yaml:"accent"`
	AccentLight       string `yaml:"accent_light"`
}

// Vars returns the colors keyed by CSS custom property name.
func (c Colors) Vars() map[string]string {
	return map[string]string{
		"--color-primary":             c.Primary,
		"--color-primary-light":       c.PrimaryLight,
		"--color-primary-dark":        c.PrimaryDark,
		"--color-primary-super-light": c.PrimarySuperLight,
		"--color-accent":              c.Accent,
		"--color-accent-light":        c.AccentLight,
	}
}

// MarshalJSON encodes the colors as CSS custom properties.
func (c Colors) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Vars())
}

// File is the layout of a curriculum YAML file. A section left empty in an
// override file keeps the embedded default.
type File struct {
	Topics []Topic `yaml:"topics"`
	Themes []Theme `yaml:"themes"`
}

// Seeds converts topics into catalog seeds.
func Seeds(topics []Topic) []catalog.Seed {
	seeds := make([]catalog.Seed, len(topics))
	for i, t := range topics {
		seeds[i] = catalog.Seed{ID: t.ID, Title: t.Title}
	}
	return seeds
}
