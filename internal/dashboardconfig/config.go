package dashboardconfig

import (
	"github.com/wonny/findash/internal/alert"
	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/filter"
	"github.com/wonny/findash/internal/kpi"
)

// Config is the full dashboard definition: what to fetch, how to label it, what to watch
type Config struct {
	Meta     Meta         `yaml:"meta" json:"meta"`
	Data     Data         `yaml:"data" json:"data"`
	Universe Universe     `yaml:"universe" json:"universe"`
	Renames  []Rename     `yaml:"renames" json:"renames"`
	View     View         `yaml:"view" json:"view"`
	KPIs     []kpi.Spec   `yaml:"kpis" json:"kpis"`
	Alerts   []alert.Rule `yaml:"alerts" json:"alerts"`
}

type Meta struct {
	DashboardID string `yaml:"dashboard_id" json:"dashboard_id"`
	Version     string `yaml:"version" json:"version"`
	Title       string `yaml:"title" json:"title"`
}

type Data struct {
	Lookback string `yaml:"lookback" json:"lookback"` // 5y, 6mo, 2wk, 30d
}

// Universe groups provider symbols by category
type Universe struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

type Category struct {
	Name    string   `yaml:"name" json:"name"`
	Symbols []string `yaml:"symbols" json:"symbols"`
}

// Rename maps a provider symbol to its display label
type Rename struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Label  string `yaml:"label" json:"label"`
}

type View struct {
	DefaultCategory string        `yaml:"default_category" json:"default_category"`
	RangePolicy     filter.Policy `yaml:"range_policy" json:"range_policy"`
	TailRows        int           `yaml:"tail_rows" json:"tail_rows"`
	HistogramBins   int           `yaml:"histogram_bins" json:"histogram_bins"`
}

// Symbols lists every provider symbol in category order
func (c *Config) Symbols() []string {
	var out []string
	for _, cat := range c.Universe.Categories {
		out = append(out, cat.Symbols...)
	}
	return out
}

// RenameMap returns symbol → label
func (c *Config) RenameMap() map[string]string {
	m := make(map[string]string, len(c.Renames))
	for _, r := range c.Renames {
		m[r.Symbol] = r.Label
	}
	return m
}

// Label is the display label of a provider symbol
func (c *Config) Label(symbol string) string {
	for _, r := range c.Renames {
		if r.Symbol == symbol {
			return r.Label
		}
	}
	return symbol
}

// Labels lists every display label in category order
func (c *Config) Labels() []string {
	symbols := c.Symbols()
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = c.Label(s)
	}
	return out
}

// CategoryLabels returns the display labels of a category
func (c *Config) CategoryLabels(name string) ([]string, bool) {
	for _, cat := range c.Universe.Categories {
		if cat.Name != name {
			continue
		}
		out := make([]string, len(cat.Symbols))
		for i, s := range cat.Symbols {
			out[i] = c.Label(s)
		}
		return out, true
	}
	return nil, false
}

// DefaultAssets is the selection used when the caller names none
func (c *Config) DefaultAssets() []string {
	labels, _ := c.CategoryLabels(c.View.DefaultCategory)
	return labels
}

// Lookback parses Data.Lookback; Validate guarantees it parses
func (c *Config) Lookback() contracts.Lookback {
	l, err := contracts.ParseLookback(c.Data.Lookback)
	if err != nil {
		return contracts.MustLookback("5y")
	}
	return l
}
