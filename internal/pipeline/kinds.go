package pipeline

import (
	"context"
	"time"

	"deduper/internal/models"
)

// Kind names a message family. It is also the metrics label.
type Kind string

const (
	KindOrders     Kind = "orders"
	KindHistories  Kind = "histories"
	KindMapData    Kind = "mapdata"
	KindGoldPrices Kind = "goldprices"
)

// Bus subjects.
const (
	MarketOrdersIngest      = "marketorders.ingest"
	MarketHistoriesIngest   = "markethistories.ingest"
	MapDataIngest           = "mapdata.ingest"
	GoldPricesIngest        = "goldprices.ingest"
	MarketOrdersDeduped     = "marketorders.deduped"
	MarketOrdersDedupedBulk = "marketorders.deduped.bulk"
	MarketHistoriesDeduped  = "markethistories.deduped"
	MapDataDeduped          = "mapdata.deduped"
	GoldPricesDeduped       = "goldprices.deduped"
)

type handlerFunc func(p *Pipeline, ctx context.Context, route Route, msg models.RawMessage) error

// Route binds one input subject to its handler and output subjects.
type Route struct {
	Kind   Kind
	Input  string
	Output string
	// Bulk, when set, receives one batch of all items admitted from an upload.
	Bulk string

	handle handlerFunc
}

// Routes is the dispatch table. Adding a kind is adding an entry.
var Routes = []Route{
	{
		Kind:   KindOrders,
		Input:  MarketOrdersIngest,
		Output: MarketOrdersDeduped,
		Bulk:   MarketOrdersDedupedBulk,
		handle: (*Pipeline).handleOrders,
	},
	{
		Kind:   KindHistories,
		Input:  MarketHistoriesIngest,
		Output: MarketHistoriesDeduped,
		handle: (*Pipeline).handleHistory,
	},
	{
		Kind:   KindMapData,
		Input:  MapDataIngest,
		Output: MapDataDeduped,
		handle: (*Pipeline).handleBlob,
	},
	{
		Kind:   KindGoldPrices,
		Input:  GoldPricesIngest,
		Output: GoldPricesDeduped,
		handle: (*Pipeline).handleBlob,
	},
}

// TTLs holds the admission window per kind.
type TTLs struct {
	Orders     time.Duration
	History    time.Duration
	HistoryDay time.Duration
	MapData    time.Duration
	GoldPrices time.Duration
}

// DefaultTTLs returns the production windows.
func DefaultTTLs() TTLs {
	return TTLs{
		Orders:     600 * time.Second,
		History:    6 * time.Hour,
		HistoryDay: time.Hour,
		MapData:    600 * time.Second,
		GoldPrices: 600 * time.Second,
	}
}

// For returns the window for kind. Daily histories change faster than
// weekly or monthly ones and get the shorter window.
func (t TTLs) For(kind Kind, timescale models.Timescale) time.Duration {
	switch kind {
	case KindOrders:
		return t.Orders
	case KindHistories:
		if timescale == models.TimescaleDay {
			return t.HistoryDay
		}
		return t.History
	case KindMapData:
		return t.MapData
	case KindGoldPrices:
		return t.GoldPrices
	default:
		return 0
	}
}
