package engine

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"portfolioclient/types"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var ErrSnapshotLoaded = errors.New("positions snapshot already loaded")
var ErrInvalidRecord = errors.New("invalid position record")

var hundred = decimal.NewFromInt(100)

// ChartSink receives one price sample per applied quote.
type ChartSink interface {
	OnQuote(ticker string, sample types.Sample)
}

// Position is the live state of one ticker. It is owned by the PositionBook;
// everything outside the book only reads it.
type Position struct {
	ticker        string
	company       string
	price         decimal.Decimal
	shares        int64
	changePercent decimal.Decimal
	direction     types.Direction
}

func (p *Position) Ticker() string                 { return p.ticker }
func (p *Position) Company() string                { return p.company }
func (p *Position) Price() decimal.Decimal         { return p.price }
func (p *Position) Shares() int64                  { return p.shares }
func (p *Position) ChangePercent() decimal.Decimal { return p.changePercent }

// Direction is empty until the first quote for the ticker.
func (p *Position) Direction() types.Direction { return p.direction }

func (p *Position) Value() decimal.Decimal {
	return p.price.Mul(decimal.NewFromInt(p.shares))
}

func (p *Position) FormattedPrice() string  { return formatUSD(p.price) }
func (p *Position) FormattedValue() string  { return formatUSD(p.Value()) }
func (p *Position) FormattedChange() string { return p.changePercent.StringFixed(2) }

// updatePrice derives direction and change from the pre-update price.
func (p *Position) updatePrice(newPrice decimal.Decimal) {
	delta := newPrice.Sub(p.price).Round(2)
	if delta.IsNegative() {
		p.direction = types.DirectionDown
	} else {
		p.direction = types.DirectionUp
	}
	if p.price.IsZero() {
		p.changePercent = decimal.Zero
	} else {
		p.changePercent = delta.Div(p.price).Mul(hundred).Round(2)
	}
	p.price = newPrice
}

type PortfolioAggregates struct {
	TotalShares int64
	TotalValue  decimal.Decimal
}

func (a PortfolioAggregates) FormattedTotalValue() string {
	return formatUSD(a.TotalValue)
}

// PositionBook holds one Position per ticker in snapshot order.
type PositionBook struct {
	rows   []*Position
	lookup map[string]*Position
	chart  ChartSink
	now    func() time.Time
}

func NewPositionBook(chart ChartSink) *PositionBook {
	return &PositionBook{
		lookup: make(map[string]*Position),
		chart:  chart,
		now:    time.Now,
	}
}

func (b *PositionBook) LoadSnapshot(records []types.PositionRecord) error {
	if len(b.rows) != 0 {
		return ErrSnapshotLoaded
	}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Ticker == "" || r.Shares < 0 || seen[r.Ticker] {
			return fmt.Errorf("ticker %q: %w", r.Ticker, ErrInvalidRecord)
		}
		seen[r.Ticker] = true
	}

	for _, r := range records {
		pos := &Position{
			ticker:        r.Ticker,
			company:       r.Company,
			price:         r.Price,
			shares:        r.Shares,
			changePercent: decimal.Zero,
		}
		b.rows = append(b.rows, pos)
		b.lookup[pos.ticker] = pos
	}
	return nil
}

// ApplyQuote reports whether the ticker is in the book. Quotes for other
// tickers are dropped.
func (b *PositionBook) ApplyQuote(ticker string, price decimal.Decimal) bool {
	pos, ok := b.lookup[ticker]
	if !ok {
		return false
	}
	pos.updatePrice(price)
	if b.chart != nil {
		b.chart.OnQuote(ticker, types.Sample{Timestamp: b.now(), Price: price})
	}
	return true
}

// ApplyPositionUpdate sets the absolute share count of a known ticker.
func (b *PositionBook) ApplyPositionUpdate(ticker string, shares int64) bool {
	pos, ok := b.lookup[ticker]
	if !ok || shares < 0 {
		return false
	}
	pos.shares = shares
	return true
}

func (b *PositionBook) Lookup(ticker string) (*Position, bool) {
	pos, ok := b.lookup[ticker]
	return pos, ok
}

func (b *PositionBook) Len() int {
	return len(b.rows)
}

func (b *PositionBook) Rows() iter.Seq[*Position] {
	return func(yield func(*Position) bool) {
		for _, pos := range b.rows {
			if !yield(pos) {
				return
			}
		}
	}
}

func (b *PositionBook) Aggregates() PortfolioAggregates {
	agg := PortfolioAggregates{TotalValue: decimal.Zero}
	for _, pos := range b.rows {
		agg.TotalShares += pos.shares
		agg.TotalValue = agg.TotalValue.Add(pos.Value())
	}
	return agg
}

// usd renders dollars with two decimals and no thousands grouping: $20005.00.
var usd = money.NewFormatter(2, ".", "", "$", "$1")

func formatUSD(amount decimal.Decimal) string {
	return usd.Format(amount.Round(2).Shift(2).IntPart())
}
