package canonical

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deduper/internal/catalog"
	"deduper/internal/models"
)

func orderUpload(t *testing.T, orders ...models.MarketOrder) []byte {
	t.Helper()
	data, err := json.Marshal(models.MarketUpload{Orders: orders})
	require.NoError(t, err)
	return data
}

func TestDefaultAliases(t *testing.T) {
	table := DefaultAliases()

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"caerleon duplicate", 3013, 3005},
		{"thetford portal", 301, 7},
		{"lymhurst portal", 1301, 1002},
		{"bridgewatch portal", 2301, 2004},
		{"martlock portal", 3301, 3008},
		{"fort sterling portal", 4301, 4002},
		{"canonical id unchanged", 3005, 3005},
		{"unknown id unchanged", 9999, 9999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Fold(tt.in))
		})
	}
}

func TestParseAliases_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "alias of itself",
			doc: `markets:
  - {name: A, id: 1, aliases: [1]}`,
			wantErr: "equals its own id",
		},
		{
			name: "alias claimed twice",
			doc: `markets:
  - {name: A, id: 1, aliases: [5]}
  - {name: B, id: 2, aliases: [5]}`,
			wantErr: "mapped to both",
		},
		{
			name: "chained alias",
			doc: `markets:
  - {name: A, id: 1, aliases: [2]}
  - {name: B, id: 3, aliases: [1]}`,
			wantErr: "is also an alias",
		},
		{
			name:    "not yaml",
			doc:     "markets: [",
			wantErr: "decode alias table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAliases(strings.NewReader(tt.doc))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("markets:\n  - {name: X, id: 10, aliases: [11, 12]}\n"), 0644))

	table, err := LoadAliases(path)
	require.NoError(t, err)
	assert.Equal(t, 10, table.Fold(11))
	assert.Equal(t, 10, table.Fold(12))
	assert.Equal(t, 3013, table.Fold(3013), "override replaces the embedded table")

	_, err = LoadAliases(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOrders_PriceCorrection(t *testing.T) {
	c := New(nil, nil)

	orders, err := c.Orders(orderUpload(t, models.MarketOrder{
		ID:              42,
		LocationID:      3005,
		UnitPriceSilver: 125000,
		Amount:          3,
		Expires:         "2024-05-01T10:00:00.123456",
	}))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	assert.Equal(t, "12.5", orders[0].UnitPriceSilver.String())
	assert.Equal(t, uint64(42), orders[0].ID)
	assert.Equal(t, 3, orders[0].Amount)
	assert.Equal(t, "2024-05-01T10:00:00.123456", orders[0].Expires)
}

func TestOrders_LocationFolding(t *testing.T) {
	c := New(nil, nil)

	orders, err := c.Orders(orderUpload(t,
		models.MarketOrder{ID: 1, LocationID: 3013},
		models.MarketOrder{ID: 2, LocationID: 4301},
		models.MarketOrder{ID: 3, LocationID: 1002},
	))
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, 3005, orders[0].LocationID)
	assert.Equal(t, 4002, orders[1].LocationID)
	assert.Equal(t, 1002, orders[2].LocationID)
}

func TestOrders_ParseErrors(t *testing.T) {
	c := New(nil, nil)

	for _, payload := range []string{
		`not json`,
		`null`,
		`{"AlbionId": 5, "MarketHistories": []}`,
		`{"Orders": "nope"}`,
	} {
		t.Run(payload, func(t *testing.T) {
			orders, err := c.Orders([]byte(payload))
			assert.Nil(t, orders)

			var parseErr *models.ParseError
			require.True(t, errors.As(err, &parseErr), "want ParseError, got %v", err)
			assert.Equal(t, "orders", parseErr.Kind)
		})
	}
}

func TestOrders_EmptyUpload(t *testing.T) {
	orders, err := New(nil, nil).Orders([]byte(`{"Orders": []}`))
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestHistory_OrderingScalingAndName(t *testing.T) {
	items := catalog.New(map[uint32]string{77: "T4_BAG"})
	c := New(nil, items)

	data, err := json.Marshal(models.MarketHistoriesUpload{
		AlbionID:   77,
		LocationID: 3013,
		Timescale:  models.TimescaleWeek,
		MarketHistories: []models.MarketHistory{
			{ItemAmount: 1, SilverAmount: 10000, Timestamp: 100},
			{ItemAmount: 3, SilverAmount: 30000, Timestamp: 300},
			{ItemAmount: 2, SilverAmount: 25000, Timestamp: 200},
		},
	})
	require.NoError(t, err)

	h, err := c.History(data)
	require.NoError(t, err)

	require.Len(t, h.MarketHistories, 3)
	assert.Equal(t, uint64(300), h.MarketHistories[0].Timestamp)
	assert.Equal(t, uint64(200), h.MarketHistories[1].Timestamp)
	assert.Equal(t, uint64(100), h.MarketHistories[2].Timestamp)

	assert.Equal(t, "3", h.MarketHistories[0].SilverAmount.String())
	assert.Equal(t, "2.5", h.MarketHistories[1].SilverAmount.String())
	assert.Equal(t, int64(2), h.MarketHistories[1].ItemAmount)

	assert.Equal(t, 3005, h.LocationID)
	assert.Equal(t, "T4_BAG", h.AlbionIDString)
	assert.Equal(t, models.TimescaleWeek, h.Timescale)
}

func TestHistory_StableForEqualTimestamps(t *testing.T) {
	data := []byte(`{"AlbionId":1,"LocationId":7,"Timescale":0,"MarketHistories":[
		{"ItemAmount":1,"SilverAmount":10000,"Timestamp":5},
		{"ItemAmount":2,"SilverAmount":10000,"Timestamp":5},
		{"ItemAmount":3,"SilverAmount":10000,"Timestamp":9}]}`)

	h, err := New(nil, nil).History(data)
	require.NoError(t, err)

	assert.Equal(t, int64(3), h.MarketHistories[0].ItemAmount)
	assert.Equal(t, int64(1), h.MarketHistories[1].ItemAmount)
	assert.Equal(t, int64(2), h.MarketHistories[2].ItemAmount)
}

func TestHistory_UnknownItemLeavesNameUnset(t *testing.T) {
	h, err := New(nil, nil).History([]byte(`{"AlbionId":12345,"MarketHistories":[]}`))
	require.NoError(t, err)
	assert.Empty(t, h.AlbionIDString)
}

func TestHistory_ParseError(t *testing.T) {
	_, err := New(nil, nil).History([]byte(`{"Orders":[]}`))

	var parseErr *models.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "histories", parseErr.Kind)
}
