package types

// TradeRequest is the outbound message sent when a trade dialog is submitted.
type TradeRequest struct {
	Action Side   `json:"action"`
	Ticker string `json:"ticker"`
	Shares int64  `json:"shares"`
}

func NewTradeRequest(action Side, ticker string, shares int64) TradeRequest {
	return TradeRequest{
		Action: action,
		Ticker: ticker,
		Shares: shares,
	}
}
