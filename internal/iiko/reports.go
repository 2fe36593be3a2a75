package iiko

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"revenue/internal/core"
	"revenue/internal/log"
)

// deletedWithWriteoff marks voided rows in the sales report.
const deletedWithWriteoff = "DELETED"

type salesReport struct {
	Rows []salesRow `xml:"r"`
}

type salesRow struct {
	ServiceType string `xml:"Delivery.ServiceType"`
	Deleted     string `xml:"DeletedWithWriteoff"`
	Venue       string `xml:"RestorauntGroup"`
	Revenue     string `xml:"DishDiscountSumInt"`
	Orders      string `xml:"UniqOrderId"`
}

// FetchSales returns per (service type, venue) sales between the start of
// from and the end of to. Voided rows are dropped.
func (c *Client) FetchSales(ctx context.Context, from, to time.Time) ([]core.RawSaleRecord, error) {
	body, err := c.withToken(ctx, func(token string) ([]byte, error) {
		q := url.Values{}
		q.Set("key", token)
		q.Set("report", "SALES")
		q.Set("from", dayStart(from))
		q.Set("to", dayEnd(to))
		for _, g := range []string{"Delivery.ServiceType", "DeletedWithWriteoff", "RestorauntGroup"} {
			q.Add("groupRow", g)
		}
		for _, a := range []string{"DishDiscountSumInt", "UniqOrderId"} {
			q.Add("agr", a)
		}
		return c.do(ctx, "sales", func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+olapPath+"?"+q.Encode(), nil)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}

	records, err := parseSales(body)
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	c.logger.InfoContext(ctx, "Fetched sales report",
		log.FieldOperation, log.OpFetch,
		log.FieldRecords, len(records),
		"from", from.Format(core.DateLayout),
		"to", to.Format(core.DateLayout))
	return records, nil
}

func parseSales(body []byte) ([]core.RawSaleRecord, error) {
	var report salesReport
	if err := xml.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode sales xml: %w", err)
	}

	records := make([]core.RawSaleRecord, 0, len(report.Rows))
	for _, row := range report.Rows {
		if strings.TrimSpace(row.Deleted) == deletedWithWriteoff {
			continue
		}
		revenue, err := parseNumber(row.Revenue)
		if err != nil {
			return nil, fmt.Errorf("revenue of %q: %w", row.Venue, err)
		}
		orders, err := parseNumber(row.Orders)
		if err != nil {
			return nil, fmt.Errorf("orders of %q: %w", row.Venue, err)
		}
		records = append(records, core.RawSaleRecord{
			Venue:       strings.TrimSpace(row.Venue),
			ServiceType: strings.TrimSpace(row.ServiceType),
			Orders:      orders.IntPart(),
			Revenue:     revenue,
		})
	}
	return records, nil
}

type dishReportRequest struct {
	ReportType       string                `json:"reportType"`
	GroupByRowFields []string              `json:"groupByRowFields"`
	AggregateFields  []string              `json:"aggregateFields"`
	Filters          map[string]dateFilter `json:"filters"`
}

type dateFilter struct {
	FilterType  string `json:"filterType"`
	PeriodType  string `json:"periodType"`
	From        string `json:"from"`
	To          string `json:"to"`
	IncludeLow  bool   `json:"includeLow"`
	IncludeHigh bool   `json:"includeHigh"`
}

type dishReport struct {
	Data []dishRow `json:"data"`
}

type dishRow struct {
	Dish   string          `json:"DishFullName"`
	Venue  string          `json:"RestorauntGroup"`
	Amount decimal.Decimal `json:"DishAmountInt"`
}

// FetchDishes returns per (dish, venue) quantities between from and to.
// When a dish filter is set, dishes it does not allow are dropped.
func (c *Client) FetchDishes(ctx context.Context, from, to time.Time) ([]core.RawDishRecord, error) {
	payload, err := json.Marshal(dishReportRequest{
		ReportType:       "SALES",
		GroupByRowFields: []string{"DishFullName", "RestorauntGroup"},
		AggregateFields:  []string{"DishAmountInt"},
		Filters: map[string]dateFilter{
			"OpenDate.Typed": {
				FilterType:  "DateRange",
				PeriodType:  "CUSTOM",
				From:        from.Format(core.DateLayout),
				To:          to.Format(core.DateLayout),
				IncludeLow:  true,
				IncludeHigh: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode dish report request: %w", err)
	}

	body, err := c.withToken(ctx, func(token string) ([]byte, error) {
		q := url.Values{}
		q.Set("key", token)
		return c.do(ctx, "dishes", func() (*http.Request, error) {
			return jsonRequest(ctx, c.baseURL+olapV2Path+"?"+q.Encode(), payload)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch dishes: %w", err)
	}

	var report dishReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("fetch dishes: decode json: %w", err)
	}

	records := make([]core.RawDishRecord, 0, len(report.Data))
	for _, row := range report.Data {
		if c.dishes != nil && !c.dishes.Allowed(row.Dish) {
			continue
		}
		records = append(records, core.RawDishRecord{
			Dish:     row.Dish,
			Venue:    strings.TrimSpace(row.Venue),
			Quantity: row.Amount,
		})
	}
	c.logger.InfoContext(ctx, "Fetched dish report",
		log.FieldOperation, log.OpFetch,
		log.FieldRecords, len(records),
		"rows", len(report.Data))
	return records, nil
}

// parseNumber reads a report number. Empty means zero.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func dayStart(t time.Time) string {
	return core.StartOfDay(t).Format(dateTimeLayout)
}

func dayEnd(t time.Time) string {
	d := core.StartOfDay(t)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location()).Format(dateTimeLayout)
}
