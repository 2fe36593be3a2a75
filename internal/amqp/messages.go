package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"revenue/internal/snapshot"
)

// Routing key suffixes on the topic exchange.
const (
	EventSnapshotUpdated = "snapshot.updated"
	EventDayArchived     = "day.archived"
)

// DropCounts reports rows that could not be attributed during aggregation.
type DropCounts struct {
	Sales     int `json:"dropped_sales"`
	Dishes    int `json:"dropped_dishes"`
	Unmatched int `json:"unmatched_dishes"`
}

// SnapshotUpdatedMessage announces a freshly written current snapshot.
// It carries headline numbers only; consumers read the document for details.
type SnapshotUpdatedMessage struct {
	RunID        string          `json:"run_id"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int64           `json:"total_orders"`
	PlanRevenue  int64           `json:"plan_revenue"`
	PlanOrders   int64           `json:"plan_orders"`
	DropCounts
	Timestamp time.Time `json:"timestamp"`
}

// DayArchivedMessage announces that a business day was closed and archived.
type DayArchivedMessage struct {
	RunID        string          `json:"run_id"`
	Date         string          `json:"date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int64           `json:"total_orders"`
	PlanRevenue  int64           `json:"plan_revenue"`
	Timestamp    time.Time       `json:"timestamp"`
}

func NewSnapshotUpdatedMessage(runID string, s snapshot.Snapshot, dropped DropCounts) *SnapshotUpdatedMessage {
	return &SnapshotUpdatedMessage{
		RunID:        runID,
		Date:         s.Date,
		Time:         s.Time,
		TotalRevenue: s.Total.TotalRevenue,
		TotalOrders:  s.Total.TotalOrders,
		PlanRevenue:  s.Plan.Revenue,
		PlanOrders:   s.Plan.Orders,
		DropCounts:   dropped,
		Timestamp:    time.Now(),
	}
}

func NewDayArchivedMessage(runID string, s snapshot.Snapshot) *DayArchivedMessage {
	return &DayArchivedMessage{
		RunID:        runID,
		Date:         s.Date,
		TotalRevenue: s.Total.TotalRevenue,
		TotalOrders:  s.Total.TotalOrders,
		PlanRevenue:  s.Plan.Revenue,
		Timestamp:    time.Now(),
	}
}

func (m *SnapshotUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *DayArchivedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotUpdatedMessageFromJSON(data []byte) (*SnapshotUpdatedMessage, error) {
	var msg SnapshotUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func DayArchivedMessageFromJSON(data []byte) (*DayArchivedMessage, error) {
	var msg DayArchivedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
