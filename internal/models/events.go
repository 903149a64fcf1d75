package models

// RawMessage is one payload as delivered by the bus.
type RawMessage struct {
	Subject string
	Data    []byte
}

// MarketUpload is an order book upload as published by the data clients.
type MarketUpload struct {
	Orders []MarketOrder `json:"Orders"`
}

// MarketOrder is a single order as it appears on the wire.
// UnitPriceSilver is scaled by 10000.
type MarketOrder struct {
	ID               uint64 `json:"Id"`
	ItemTypeID       string `json:"ItemTypeId"`
	ItemGroupTypeID  string `json:"ItemGroupTypeId"`
	LocationID       int    `json:"LocationId"`
	QualityLevel     int    `json:"QualityLevel"`
	EnchantmentLevel int    `json:"EnchantmentLevel"`
	UnitPriceSilver  int64  `json:"UnitPriceSilver"`
	Amount           int    `json:"Amount"`
	AuctionType      string `json:"AuctionType"` // offer, request
	Expires          string `json:"Expires"`     // 2006-01-02T15:04:05.999999, no zone
}

// Order is the canonical form of a MarketOrder: price in true silver,
// location folded to its canonical market.
type Order struct {
	ID               uint64 `json:"Id"`
	ItemTypeID       string `json:"ItemTypeId"`
	ItemGroupTypeID  string `json:"ItemGroupTypeId"`
	LocationID       int    `json:"LocationId"`
	QualityLevel     int    `json:"QualityLevel"`
	EnchantmentLevel int    `json:"EnchantmentLevel"`
	UnitPriceSilver  Silver `json:"UnitPriceSilver"`
	Amount           int    `json:"Amount"`
	AuctionType      string `json:"AuctionType"`
	Expires          string `json:"Expires"`
}

// Timescale is the aggregation window of a history upload.
type Timescale uint8

const (
	TimescaleDay Timescale = iota
	TimescaleWeek
	TimescaleMonth
)

func (t Timescale) String() string {
	switch t {
	case TimescaleDay:
		return "day"
	case TimescaleWeek:
		return "week"
	case TimescaleMonth:
		return "month"
	default:
		return "unknown"
	}
}

// MarketHistoriesUpload is a price history upload as it appears on the wire.
type MarketHistoriesUpload struct {
	AlbionID        uint32          `json:"AlbionId"`
	LocationID      int             `json:"LocationId"`
	QualityLevel    int             `json:"QualityLevel"`
	Timescale       Timescale       `json:"Timescale"`
	MarketHistories []MarketHistory `json:"MarketHistories"`
}

// MarketHistory is one wire history record. SilverAmount is scaled by 10000.
type MarketHistory struct {
	ItemAmount   int64  `json:"ItemAmount"`
	SilverAmount int64  `json:"SilverAmount"`
	Timestamp    uint64 `json:"Timestamp"` // .NET ticks
}

// HistoryUpload is the canonical form of a MarketHistoriesUpload.
// Records are ordered newest first.
type HistoryUpload struct {
	AlbionID        uint32          `json:"AlbionId"`
	AlbionIDString  string          `json:"AlbionIdString"`
	LocationID      int             `json:"LocationId"`
	QualityLevel    int             `json:"QualityLevel"`
	Timescale       Timescale       `json:"Timescale"`
	MarketHistories []HistoryRecord `json:"MarketHistories"`
}

// HistoryRecord is a canonical history record.
type HistoryRecord struct {
	ItemAmount   int64  `json:"ItemAmount"`
	SilverAmount Silver `json:"SilverAmount"`
	Timestamp    uint64 `json:"Timestamp"`
}
