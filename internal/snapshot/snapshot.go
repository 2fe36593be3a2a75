// Package snapshot assembles the revenue document and persists it.
package snapshot

import (
	"time"

	"revenue/internal/aggregate"
	"revenue/internal/core"
)

// Snapshot is the published state of the business day at a point in time.
type Snapshot struct {
	Date      string                          `json:"date"`
	Time      string                          `json:"time"`
	YearRound map[string]*core.VenueStats     `json:"year_round"`
	Seasonal  map[string]*core.VenueStats     `json:"seasonal"`
	Total     core.Totals                     `json:"total"`
	Plan      core.Plan                       `json:"plan"`
	Sales     map[string]core.VenueCategories `json:"sales"`
}

// Build assembles a snapshot for businessDay stamped with the wall time of now.
func Build(businessDay, now time.Time, sales aggregate.SalesResult, cats aggregate.CategoryResult, plan core.Plan) Snapshot {
	s := Snapshot{
		Date:      businessDay.Format(core.DateLayout),
		Time:      now.Format(core.TimeLayout),
		YearRound: sales.YearRound,
		Seasonal:  sales.Seasonal,
		Total:     sales.Totals(),
		Plan:      plan,
		Sales:     cats.ByVenue,
	}
	if s.YearRound == nil {
		s.YearRound = map[string]*core.VenueStats{}
	}
	if s.Seasonal == nil {
		s.Seasonal = map[string]*core.VenueStats{}
	}
	if s.Sales == nil {
		s.Sales = map[string]core.VenueCategories{}
	}
	return s
}

// ForArchive returns a copy dated the calendar day before now and stamped
// end of day. The receiver is left unchanged.
func (s Snapshot) ForArchive(now time.Time) Snapshot {
	archived := s
	archived.Date = core.StartOfDay(now).AddDate(0, 0, -1).Format(core.DateLayout)
	archived.Time = core.EndOfDayTime
	return archived
}

// BusinessDate parses the snapshot date.
func (s Snapshot) BusinessDate() (time.Time, error) {
	return time.Parse(core.DateLayout, s.Date)
}
