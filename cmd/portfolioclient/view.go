package main

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"portfolioclient/internal/engine"
	"portfolioclient/types"

	"go.uber.org/zap"
)

// consoleView prints book events to a terminal. Callbacks run on the
// controller's dispatch lock, so they only format and forward.
type consoleView struct {
	out    io.Writer
	logger *zap.Logger

	loadOnce      sync.Once
	loaded        chan struct{}
	notifications chan string

	// live rows of the current session, by ticker
	positions map[string]*engine.Position
}

func newConsoleView(out io.Writer, logger *zap.Logger) *consoleView {
	return &consoleView{
		out:           out,
		logger:        logger,
		loaded:        make(chan struct{}),
		notifications: make(chan string, 16),
		positions:     make(map[string]*engine.Position),
	}
}

func (v *consoleView) OnPositionsLoaded(rows []*engine.Position) {
	clear(v.positions)
	for _, p := range rows {
		v.positions[p.Ticker()] = p
	}
	printPositions(v.out, rows)
	v.loadOnce.Do(func() { close(v.loaded) })
}

// OnQuote runs after the book applied the quote, so the row already holds
// the new price and change.
func (v *consoleView) OnQuote(ticker string, sample types.Sample) {
	v.logger.Debug("quote", zap.String("ticker", ticker), zap.String("price", sample.Price.String()))
	p, ok := v.positions[ticker]
	if !ok {
		return
	}
	fmt.Fprintf(v.out, "%s %s %s%% %s\n", ticker, p.FormattedPrice(), p.FormattedChange(), p.Direction())
}

func (v *consoleView) OnPositionChanged(ticker string, shares int64) {
	fmt.Fprintf(v.out, "%s now holds %d shares\n", ticker, shares)
}

func (v *consoleView) OnNotification(text string) {
	fmt.Fprintf(v.out, "! %s\n", text)
	select {
	case v.notifications <- text:
	default:
		// nobody is waiting for it
	}
}

// discardNotifications empties the forwarding buffer so a later read only
// sees notifications pushed after this call.
func (v *consoleView) discardNotifications() {
	for {
		select {
		case <-v.notifications:
		default:
			return
		}
	}
}

func (v *consoleView) OnTradeDialogOpened(action types.Side, position *engine.Position) {
	fmt.Fprintf(v.out, "%s %s (%s, holding %d at %s)\n",
		action, position.Ticker(), position.Company(), position.Shares(), position.FormattedPrice())
}

func printPositions(out io.Writer, rows []*engine.Position) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TICKER\tCOMPANY\tPRICE\tSHARES\tVALUE\tCHANGE %\t")
	for _, p := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t\n",
			p.Ticker(), p.Company(), p.FormattedPrice(), p.Shares(), p.FormattedValue(), p.FormattedChange())
	}
	tw.Flush()
}
