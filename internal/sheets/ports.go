package sheets

import (
	"context"

	"revenue/internal/snapshot"
)

// ArchiveAppender records one archived business day as a spreadsheet row.
type ArchiveAppender interface {
	AppendDay(ctx context.Context, s snapshot.Snapshot) (rowRef string, err error)
}

// Header is the column layout of the archive sheet.
var Header = []string{
	"Дата",
	"Заказы",
	"Выручка",
	"Доставка заказы",
	"Доставка выручка",
	"Самовывоз заказы",
	"Самовывоз выручка",
	"Кафе заказы",
	"Кафе выручка",
	"План выручка",
	"План заказы",
}

// Row renders s in Header order. Money is a float so the spreadsheet treats it as a number.
func Row(s snapshot.Snapshot) []any {
	t := s.Total
	return []any{
		s.Date,
		t.TotalOrders,
		t.TotalRevenue.InexactFloat64(),
		t.DeliveryOrders,
		t.DeliveryRevenue.InexactFloat64(),
		t.PickupOrders,
		t.PickupRevenue.InexactFloat64(),
		t.OnsiteOrders,
		t.OnsiteRevenue.InexactFloat64(),
		s.Plan.Revenue,
		s.Plan.Orders,
	}
}
