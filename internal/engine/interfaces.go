package engine

import (
	"context"

	"portfolioclient/types"

	"github.com/shopspring/decimal"
)

// Transport is the publish/subscribe session the controller runs on.
// Handlers of one subscription are called in delivery order, never concurrently.
type Transport interface {
	Connect(ctx context.Context) (types.Session, error)
	Subscribe(channel string, handler func(payload []byte)) (Subscription, error)
	Send(ctx context.Context, channel string, payload []byte) error
	Disconnect() error
}

type Subscription interface {
	Unsubscribe() error
}

// View observes the core. Implementations must not call back into the
// controller synchronously.
type View interface {
	ChartSink
	OnPositionsLoaded(positions []*Position)
	OnPositionChanged(ticker string, shares int64)
	OnNotification(text string)
	OnTradeDialogOpened(action types.Side, position *Position)
}

// TradeJournal is an audit trail. Nothing read from it flows back into the book.
type TradeJournal interface {
	RecordTrade(ctx context.Context, session types.Session, req types.TradeRequest, refPrice decimal.Decimal) error
	RecordNotification(ctx context.Context, session types.Session, text string) error
}

type tradeSubmitter interface {
	SubmitTrade(ctx context.Context, req types.TradeRequest) error
}

type NopView struct{}

func (NopView) OnQuote(string, types.Sample)              {}
func (NopView) OnPositionsLoaded([]*Position)             {}
func (NopView) OnPositionChanged(string, int64)           {}
func (NopView) OnNotification(string)                     {}
func (NopView) OnTradeDialogOpened(types.Side, *Position) {}
