package models

import "fmt"

// ValidateMarketUpload checks that an order upload has the shape of one.
// A payload of a different kind decodes into an upload with no Orders
// array at all, which is what this rejects.
func ValidateMarketUpload(u *MarketUpload) error {
	if u.Orders == nil {
		return fmt.Errorf("missing Orders array")
	}
	return nil
}

// ValidateHistoriesUpload checks that a history upload has the shape of one.
func ValidateHistoriesUpload(u *MarketHistoriesUpload) error {
	if u.MarketHistories == nil {
		return fmt.Errorf("missing MarketHistories array")
	}
	if u.Timescale > TimescaleMonth {
		return fmt.Errorf("invalid timescale: %d", u.Timescale)
	}
	return nil
}
