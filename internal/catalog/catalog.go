// Package catalog holds the venue, menu and prep-item lookup tables.
//
// The tables change with every menu revision, so they are loaded from a TOML
// document instead of being compiled in. An embedded default mirrors the
// current menu and is used when no file is configured.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"revenue/internal/core"
)

//go:embed default.toml
var defaultTOML []byte

var (
	ErrOverlappingClasses = errors.New("venue listed as both year-round and seasonal")
	ErrDuplicateCategory  = errors.New("duplicate category")
	ErrInvalidYield       = errors.New("yield must be positive")
	ErrEmptyCategory      = errors.New("category has no name")
)

// file mirrors the TOML layout.
type file struct {
	Version string `toml:"version"`
	Venues  struct {
		YearRound []string          `toml:"year_round"`
		Seasonal  []string          `toml:"seasonal"`
		Rename    map[string]string `toml:"rename"`
	} `toml:"venues"`
	Dishes struct {
		Allowed  []string          `toml:"allowed"`
		Synonyms map[string]string `toml:"synonyms"`
	} `toml:"dishes"`
	Categories []struct {
		Name      string   `toml:"name"`
		Dishes    []string `toml:"dishes"`
		Yield     *float64 `toml:"yield"`
		Breakdown bool     `toml:"breakdown"`
	} `toml:"categories"`
}

// Category is a prep-item grouping of dishes.
type Category struct {
	Name string
	// Yield converts one sold dish into prep-item units. Ignored for breakdowns.
	Yield decimal.Decimal
	// Breakdown categories keep per-dish totals instead of a scalar.
	Breakdown bool
	Dishes    []string
}

// Catalog is an immutable, validated set of lookup tables.
type Catalog struct {
	version   string
	rename    map[string]string
	classes   map[string]core.VenueClass
	yearRound []string
	seasonal  []string
	allowed   map[string]struct{}
	synonyms  map[string]string
	cats      []Category
	byDish    map[string][]int
}

// Default returns the embedded catalog. It panics if the embedded file is invalid.
func Default() *Catalog {
	c, err := Parse(defaultTOML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a TOML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	return build(f)
}

func build(f file) (*Catalog, error) {
	c := &Catalog{
		version:   f.Version,
		rename:    map[string]string{},
		classes:   map[string]core.VenueClass{},
		yearRound: dedupe(f.Venues.YearRound),
		seasonal:  dedupe(f.Venues.Seasonal),
		allowed:   map[string]struct{}{},
		synonyms:  map[string]string{},
		byDish:    map[string][]int{},
	}
	for k, v := range f.Venues.Rename {
		c.rename[k] = v
	}
	for _, v := range c.yearRound {
		c.classes[v] = core.ClassYearRound
	}
	for _, v := range c.seasonal {
		if _, ok := c.classes[v]; ok {
			return nil, fmt.Errorf("%w: %s", ErrOverlappingClasses, v)
		}
		c.classes[v] = core.ClassSeasonal
	}
	for _, d := range f.Dishes.Allowed {
		c.allowed[d] = struct{}{}
	}
	for k, v := range f.Dishes.Synonyms {
		c.synonyms[k] = v
	}

	seen := map[string]struct{}{}
	for _, fc := range f.Categories {
		name := strings.TrimSpace(fc.Name)
		if name == "" {
			return nil, ErrEmptyCategory
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCategory, name)
		}
		seen[name] = struct{}{}

		yield := decimal.NewFromInt(1)
		if fc.Yield != nil {
			if *fc.Yield <= 0 {
				return nil, fmt.Errorf("%w: %s has %v", ErrInvalidYield, name, *fc.Yield)
			}
			yield = decimal.NewFromFloat(*fc.Yield)
		}
		cat := Category{Name: name, Yield: yield, Breakdown: fc.Breakdown, Dishes: dedupe(fc.Dishes)}
		idx := len(c.cats)
		c.cats = append(c.cats, cat)
		for _, d := range cat.Dishes {
			c.byDish[d] = append(c.byDish[d], idx)
		}
	}
	return c, nil
}

// Version returns the catalog revision label.
func (c *Catalog) Version() string { return c.version }

// Classify applies the rename table and returns the canonical venue name with
// its class. ClassNone means the venue is not tracked and must be skipped.
func (c *Catalog) Classify(raw string) (string, core.VenueClass) {
	name := raw
	if canonical, ok := c.rename[raw]; ok {
		name = canonical
	}
	return name, c.classes[name]
}

// Normalize maps a dish synonym to its canonical name. Unknown names pass through.
func (c *Catalog) Normalize(dish string) string {
	if canonical, ok := c.synonyms[dish]; ok {
		return canonical
	}
	return dish
}

// Allowed reports whether a raw dish name is on the tracked menu.
func (c *Catalog) Allowed(dish string) bool {
	_, ok := c.allowed[dish]
	return ok
}

// CategoriesOf returns every category that contains the dish, in catalog order.
func (c *Catalog) CategoriesOf(dish string) []Category {
	idx := c.byDish[dish]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Category, len(idx))
	for i, j := range idx {
		out[i] = c.cats[j]
	}
	return out
}

// Categories returns all categories in catalog order.
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.cats...)
}

// YearRound returns the year-round venues in configured order.
func (c *Catalog) YearRound() []string { return append([]string(nil), c.yearRound...) }

// Seasonal returns the seasonal venues in configured order.
func (c *Catalog) Seasonal() []string { return append([]string(nil), c.seasonal...) }

// Venues returns all canonical venues, year-round first.
func (c *Catalog) Venues() []string {
	return append(c.YearRound(), c.seasonal...)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
