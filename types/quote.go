package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
}

// Sample is a single point of a ticker's price series.
type Sample struct {
	Timestamp time.Time
	Price     decimal.Decimal
}
