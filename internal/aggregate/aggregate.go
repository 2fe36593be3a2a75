// Package aggregate folds raw report rows into venue and prep-item totals.
//
// Both aggregators are pure: they allocate fresh results on every call, never
// fail on data shape, and are independent of record order. Rows that cannot be
// attributed are counted instead of reported as errors.
package aggregate

import (
	"github.com/shopspring/decimal"

	"revenue/internal/catalog"
	"revenue/internal/core"
)

// Lookup is the subset of the catalog the aggregators depend on.
type Lookup interface {
	Classify(raw string) (string, core.VenueClass)
	Normalize(dish string) string
	CategoriesOf(dish string) []catalog.Category
	YearRound() []string
	Seasonal() []string
}

var _ Lookup = (*catalog.Catalog)(nil)

// SalesResult holds per-venue stats for both venue classes.
type SalesResult struct {
	YearRound map[string]*core.VenueStats
	Seasonal  map[string]*core.VenueStats
	// Dropped counts records whose venue is in neither class.
	Dropped int
}

// CategoryResult holds per-venue prep-item totals.
type CategoryResult struct {
	ByVenue map[string]core.VenueCategories
	// Dropped counts records whose venue is in neither class.
	Dropped int
	// Unmatched counts records whose dish belongs to no category.
	Unmatched int
}

// Sales aggregates sale records into per-venue channel stats. Every known
// venue is present in the result, zero-filled when no record references it.
func Sales(lk Lookup, records []core.RawSaleRecord) SalesResult {
	res := SalesResult{
		YearRound: zeroStats(lk.YearRound()),
		Seasonal:  zeroStats(lk.Seasonal()),
	}
	for _, r := range records {
		venue, class := lk.Classify(r.Venue)
		var stats *core.VenueStats
		switch class {
		case core.ClassYearRound:
			stats = res.YearRound[venue]
		case core.ClassSeasonal:
			stats = res.Seasonal[venue]
		}
		if stats == nil {
			res.Dropped++
			continue
		}
		stats.Add(core.ChannelOf(r.ServiceType), r.Orders, r.Revenue)
	}
	return res
}

// Totals sums the stats of every venue in both classes.
func (r SalesResult) Totals() core.Totals {
	var t core.Totals
	for _, s := range r.YearRound {
		t.Accumulate(*s)
	}
	for _, s := range r.Seasonal {
		t.Accumulate(*s)
	}
	return t
}

// Categories aggregates dish records into prep-item totals per venue. A dish
// contributes its full quantity to every category that lists it; breakdown
// categories keep per-dish totals and ignore the yield factor.
func Categories(lk Lookup, records []core.RawDishRecord) CategoryResult {
	res := CategoryResult{ByVenue: map[string]core.VenueCategories{}}
	for _, v := range lk.YearRound() {
		res.ByVenue[v] = core.VenueCategories{}
	}
	for _, v := range lk.Seasonal() {
		res.ByVenue[v] = core.VenueCategories{}
	}

	for _, r := range records {
		venue, class := lk.Classify(r.Venue)
		totals, ok := res.ByVenue[venue]
		if class == core.ClassNone || !ok {
			res.Dropped++
			continue
		}
		dish := lk.Normalize(r.Dish)
		cats := lk.CategoriesOf(dish)
		if len(cats) == 0 {
			res.Unmatched++
			continue
		}
		for _, cat := range cats {
			total, ok := totals[cat.Name]
			if cat.Breakdown {
				if !ok {
					total = core.Breakdown()
					totals[cat.Name] = total
				}
				total.AddDish(dish, r.Quantity)
				continue
			}
			if !ok {
				total = core.Scalar(decimal.Zero)
				totals[cat.Name] = total
			}
			total.AddScalar(r.Quantity.Mul(cat.Yield))
		}
	}
	return res
}

func zeroStats(venues []string) map[string]*core.VenueStats {
	out := make(map[string]*core.VenueStats, len(venues))
	for _, v := range venues {
		out[v] = &core.VenueStats{}
	}
	return out
}
