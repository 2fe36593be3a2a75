package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenue/internal/aggregate"
	"revenue/internal/core"
)

func sample(t *testing.T) Snapshot {
	t.Helper()
	stats := &core.VenueStats{}
	stats.Add(core.ChannelDelivery, 8, decimal.NewFromInt(1600))
	stats.Add(core.ChannelOnsite, 2, decimal.RequireFromString("350.5"))

	sales := aggregate.SalesResult{
		YearRound: map[string]*core.VenueStats{"Красота": stats},
		Seasonal:  map[string]*core.VenueStats{"Летняя": {}},
	}
	breakdown := core.Breakdown()
	breakdown.AddDish("Бао с уткой", decimal.NewFromInt(3))
	cats := aggregate.CategoryResult{ByVenue: map[string]core.VenueCategories{
		"Красота": {
			"Соломка":          core.Scalar(decimal.RequireFromString("1.2")),
			"Пельмени - Бао-банс": breakdown,
		},
	}}

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 15, 14, 7, 33, 0, time.UTC)
	return Build(day, now, sales, cats, core.Plan{Revenue: 991000, Orders: 4955})
}

func TestBuild(t *testing.T) {
	s := sample(t)

	assert.Equal(t, "2025-06-15", s.Date)
	assert.Equal(t, "14:07", s.Time)
	assert.Equal(t, int64(10), s.Total.TotalOrders)
	assert.Equal(t, "1950.5", s.Total.TotalRevenue.String())
	assert.Equal(t, int64(8), s.Total.DeliveryOrders)
	assert.Equal(t, int64(991000), s.Plan.Revenue)
	assert.Contains(t, s.Seasonal, "Летняя")
}

func TestBuild_EmptyInputsGiveEmptyMaps(t *testing.T) {
	s := Build(time.Now(), time.Now(), aggregate.SalesResult{}, aggregate.CategoryResult{}, core.Plan{})
	assert.NotNil(t, s.YearRound)
	assert.NotNil(t, s.Seasonal)
	assert.NotNil(t, s.Sales)
}

func TestForArchive(t *testing.T) {
	s := sample(t)
	now := time.Date(2025, 7, 1, 3, 5, 0, 0, time.UTC)

	archived := s.ForArchive(now)

	assert.Equal(t, "2025-06-30", archived.Date)
	assert.Equal(t, "23:59", archived.Time)
	assert.Equal(t, "2025-06-15", s.Date, "original must not change")
	assert.Equal(t, "14:07", s.Time)
	assert.Equal(t, s.Total, archived.Total)
}

func TestEncode_Format(t *testing.T) {
	data, err := Encode(sample(t))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "\"Красота\"", "non-ASCII must stay literal")
	assert.NotContains(t, text, `\u04`)
	assert.True(t, strings.HasPrefix(text, "{\n  \"date\""), "two-space indent")
	assert.Contains(t, text, `"cafe_orders": 2`)
	assert.Contains(t, text, `"total_delivery_revenue": 1600`)
	assert.Contains(t, text, `"Соломка": 1.2`)
	assert.Contains(t, text, `"Бао с уткой": 3`)
	assert.Contains(t, text, `"plan": {`)
}

func TestEncodeDecode(t *testing.T) {
	s := sample(t)
	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s.Date, got.Date)
	assert.Equal(t, s.Total.TotalRevenue.String(), got.Total.TotalRevenue.String())
	assert.Equal(t, core.KindBreakdown, got.Sales["Красота"]["Пельмени - Бао-банс"].Kind())
	assert.Equal(t, "1.2", got.Sales["Красота"]["Соломка"].Amount().String())
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, nil)
	ctx := context.Background()
	s := sample(t)

	require.NoError(t, w.WriteCurrent(ctx, s))
	data, err := os.ReadFile(filepath.Join(dir, "revenue.json"))
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "14:07", got.Time)

	archived := s.ForArchive(time.Date(2025, 6, 16, 3, 2, 0, 0, time.UTC))
	require.NoError(t, w.WriteArchive(ctx, archived))
	_, err = os.Stat(filepath.Join(dir, "daily", "2025-06-15_data.json"))
	require.NoError(t, err)

	back, err := w.ReadArchive("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, "23:59", back.Time)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestFileWriter_Overwrites(t *testing.T) {
	w := NewFileWriter(t.TempDir(), nil)
	ctx := context.Background()
	s := sample(t)

	require.NoError(t, w.WriteCurrent(ctx, s))
	s.Time = "15:00"
	require.NoError(t, w.WriteCurrent(ctx, s))

	data, err := os.ReadFile(w.CurrentPath())
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "15:00", got.Time)
}

type recordingSink struct {
	saved []string
	err   error
}

func (r *recordingSink) SaveArchive(_ context.Context, s Snapshot) error {
	r.saved = append(r.saved, s.Date)
	return r.err
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	s := sample(t)

	t.Run("optional failure is swallowed", func(t *testing.T) {
		a := &recordingSink{}
		b := &recordingSink{err: errors.New("sheets down")}
		c := &recordingSink{}
		m := NewMultiSink(nil,
			NamedSink{Name: "a", Sink: a},
			NamedSink{Name: "b", Sink: b, Optional: true},
			NamedSink{Name: "c", Sink: c},
			NamedSink{Name: "nil"},
		)
		require.NoError(t, m.SaveArchive(ctx, s))
		assert.Len(t, a.saved, 1)
		assert.Len(t, b.saved, 1)
		assert.Len(t, c.saved, 1, "later sinks still run")
	})

	t.Run("required failure is returned", func(t *testing.T) {
		a := &recordingSink{err: errors.New("disk full")}
		c := &recordingSink{}
		m := NewMultiSink(nil, NamedSink{Name: "file", Sink: a}, NamedSink{Name: "db", Sink: c})
		err := m.SaveArchive(ctx, s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file: disk full")
		assert.Len(t, c.saved, 1)
	})
}
