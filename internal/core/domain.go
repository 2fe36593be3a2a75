package core

import (
	"github.com/shopspring/decimal"
)

const (
	ClassNone VenueClass = iota
	ClassYearRound
	ClassSeasonal
)

type (
	// VenueClass is the operating class of a canonical venue.
	VenueClass int

	// RawSaleRecord is one (venue, service type) group of the sales report.
	// Voided rows are already filtered by the report client.
	RawSaleRecord struct {
		Venue       string
		ServiceType string
		Orders      int64
		Revenue     decimal.Decimal
	}

	// RawDishRecord is one (dish, venue) group of the dish report.
	RawDishRecord struct {
		Dish     string
		Venue    string
		Quantity decimal.Decimal
	}

	// VenueStats holds per-venue order counts and revenue split by channel.
	// The on-site channel is serialized as "cafe".
	VenueStats struct {
		TotalOrders     int64           `json:"total_orders"`
		TotalRevenue    decimal.Decimal `json:"total_revenue"`
		DeliveryOrders  int64           `json:"delivery_orders"`
		DeliveryRevenue decimal.Decimal `json:"delivery_revenue"`
		PickupOrders    int64           `json:"pickup_orders"`
		PickupRevenue   decimal.Decimal `json:"pickup_revenue"`
		OnsiteOrders    int64           `json:"cafe_orders"`
		OnsiteRevenue   decimal.Decimal `json:"cafe_revenue"`
	}

	// Totals is the chain-wide sum of all VenueStats.
	Totals struct {
		TotalOrders     int64           `json:"total_orders"`
		TotalRevenue    decimal.Decimal `json:"total_revenue"`
		DeliveryOrders  int64           `json:"total_delivery_orders"`
		DeliveryRevenue decimal.Decimal `json:"total_delivery_revenue"`
		PickupOrders    int64           `json:"total_pickup_orders"`
		PickupRevenue   decimal.Decimal `json:"total_pickup_revenue"`
		OnsiteOrders    int64           `json:"total_cafe_orders"`
		OnsiteRevenue   decimal.Decimal `json:"total_cafe_revenue"`
	}

	// Plan is the monthly revenue and order target.
	Plan struct {
		Revenue int64 `json:"revenue"`
		Orders  int64 `json:"orders"`
	}
)

func (c VenueClass) String() string {
	switch c {
	case ClassYearRound:
		return "year_round"
	case ClassSeasonal:
		return "seasonal"
	default:
		return "none"
	}
}

// Add folds one channel-tagged sale into the stats.
func (s *VenueStats) Add(ch Channel, orders int64, revenue decimal.Decimal) {
	s.TotalOrders += orders
	s.TotalRevenue = s.TotalRevenue.Add(revenue)
	switch ch {
	case ChannelDelivery:
		s.DeliveryOrders += orders
		s.DeliveryRevenue = s.DeliveryRevenue.Add(revenue)
	case ChannelPickup:
		s.PickupOrders += orders
		s.PickupRevenue = s.PickupRevenue.Add(revenue)
	default:
		s.OnsiteOrders += orders
		s.OnsiteRevenue = s.OnsiteRevenue.Add(revenue)
	}
}

// Accumulate adds a venue's stats into the chain totals.
func (t *Totals) Accumulate(s VenueStats) {
	t.TotalOrders += s.TotalOrders
	t.TotalRevenue = t.TotalRevenue.Add(s.TotalRevenue)
	t.DeliveryOrders += s.DeliveryOrders
	t.DeliveryRevenue = t.DeliveryRevenue.Add(s.DeliveryRevenue)
	t.PickupOrders += s.PickupOrders
	t.PickupRevenue = t.PickupRevenue.Add(s.PickupRevenue)
	t.OnsiteOrders += s.OnsiteOrders
	t.OnsiteRevenue = t.OnsiteRevenue.Add(s.OnsiteRevenue)
}
