package types

import (
	"github.com/shopspring/decimal"
)

// PositionRecord is one row of the positions snapshot.
type PositionRecord struct {
	Ticker  string          `json:"ticker"`
	Company string          `json:"company"`
	Price   decimal.Decimal `json:"price"`
	Shares  int64           `json:"shares"`
}

type PositionUpdate struct {
	Ticker string `json:"ticker"`
	Shares int64  `json:"shares"`
}
