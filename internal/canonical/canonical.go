// Package canonical normalizes inbound uploads so that observations of
// the same real-world listing compare equal regardless of which client
// reported them or through which market alias.
package canonical

import (
	"encoding/json"
	"sort"

	"deduper/internal/catalog"
	"deduper/internal/models"
)

// Canonicalizer applies per-kind normalization.
type Canonicalizer struct {
	aliases AliasTable
	catalog *catalog.Catalog
}

// New creates a Canonicalizer. A nil catalog resolves no names.
func New(aliases AliasTable, items *catalog.Catalog) *Canonicalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	if items == nil {
		items = catalog.Empty()
	}
	return &Canonicalizer{aliases: aliases, catalog: items}
}

// Orders decodes an order upload and canonicalizes every order in it.
// On error nothing is returned.
func (c *Canonicalizer) Orders(data []byte) ([]models.Order, error) {
	var upload models.MarketUpload
	if err := json.Unmarshal(data, &upload); err != nil {
		return nil, &models.ParseError{Kind: "orders", Err: err}
	}
	if err := models.ValidateMarketUpload(&upload); err != nil {
		return nil, &models.ParseError{Kind: "orders", Err: err}
	}

	orders := make([]models.Order, len(upload.Orders))
	for i, o := range upload.Orders {
		orders[i] = c.Order(o)
	}
	return orders, nil
}

// Order canonicalizes a single wire order. Id, Amount and Expires pass
// through untouched.
func (c *Canonicalizer) Order(o models.MarketOrder) models.Order {
	return models.Order{
		ID:               o.ID,
		ItemTypeID:       o.ItemTypeID,
		ItemGroupTypeID:  o.ItemGroupTypeID,
		LocationID:       c.aliases.Fold(o.LocationID),
		QualityLevel:     o.QualityLevel,
		EnchantmentLevel: o.EnchantmentLevel,
		UnitPriceSilver:  models.SilverFromWire(o.UnitPriceSilver),
		Amount:           o.Amount,
		AuctionType:      o.AuctionType,
		Expires:          o.Expires,
	}
}

// History decodes a history upload and canonicalizes it: newest record
// first, silver rescaled, location folded, item name resolved when known.
func (c *Canonicalizer) History(data []byte) (*models.HistoryUpload, error) {
	var upload models.MarketHistoriesUpload
	if err := json.Unmarshal(data, &upload); err != nil {
		return nil, &models.ParseError{Kind: "histories", Err: err}
	}
	if err := models.ValidateHistoriesUpload(&upload); err != nil {
		return nil, &models.ParseError{Kind: "histories", Err: err}
	}

	records := make([]models.HistoryRecord, len(upload.MarketHistories))
	for i, h := range upload.MarketHistories {
		records[i] = models.HistoryRecord{
			ItemAmount:   h.ItemAmount,
			SilverAmount: models.SilverFromWire(h.SilverAmount),
			Timestamp:    h.Timestamp,
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	name, _ := c.catalog.Lookup(upload.AlbionID)

	return &models.HistoryUpload{
		AlbionID:        upload.AlbionID,
		AlbionIDString:  name,
		LocationID:      c.aliases.Fold(upload.LocationID),
		QualityLevel:    upload.QualityLevel,
		Timescale:       upload.Timescale,
		MarketHistories: records,
	}, nil
}
