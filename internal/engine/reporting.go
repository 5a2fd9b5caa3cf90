package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"portfolioclient/types"

	"github.com/shopspring/decimal"
)

type Report struct {
	// Meta / session info
	GeneratedAt time.Time
	Identity    string
	Positions   int

	// Totals
	TotalShares int64
	TotalValue  decimal.Decimal

	// Concentration
	LargestTicker        string
	LargestValue         decimal.Decimal
	LargestWeightPercent decimal.Decimal

	// Price movement since the snapshot
	Gainers          int
	Losers           int
	Unpriced         int
	AvgChangePercent decimal.Decimal

	// Notifications currently held by the log, oldest first
	Notifications []Notification
}

// PrintReport writes a human readable summary of report to w.
func PrintReport(w io.Writer, report *Report) {
	fmt.Fprintln(w, "===== Portfolio Report =====")
	fmt.Fprintf(w, "Generated:             %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "User:                  %s\n", report.Identity)
	fmt.Fprintf(w, "Positions:             %d\n", report.Positions)

	fmt.Fprintln(w, "\n-- Totals --")
	fmt.Fprintf(w, "Total Shares:          %d\n", report.TotalShares)
	fmt.Fprintf(w, "Total Value:           %s\n", formatUSD(report.TotalValue))

	fmt.Fprintln(w, "\n-- Concentration --")
	if report.LargestTicker == "" {
		fmt.Fprintln(w, "Largest Position:      -")
	} else {
		fmt.Fprintf(w, "Largest Position:      %s %s\n", report.LargestTicker, formatUSD(report.LargestValue))
		fmt.Fprintf(w, "Weight %%:              %s\n", report.LargestWeightPercent.StringFixed(2))
	}

	fmt.Fprintln(w, "\n-- Price Movement --")
	fmt.Fprintf(w, "Up:                    %d\n", report.Gainers)
	fmt.Fprintf(w, "Down:                  %d\n", report.Losers)
	fmt.Fprintf(w, "No Quote Yet:          %d\n", report.Unpriced)
	fmt.Fprintf(w, "Avg Change %%:          %s\n", report.AvgChangePercent.StringFixed(2))

	fmt.Fprintln(w, "\n-- Notifications --")
	if len(report.Notifications) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for _, n := range report.Notifications {
		fmt.Fprintln(w, n.Text)
	}

	fmt.Fprintln(w, "============================")
}

// GenerateReport summarises the book and the notification log. Call it inside
// Controller.Do when the book is live.
func GenerateReport(book *PositionBook, notifications *NotificationLog, identity string, at time.Time) *Report {
	rows := make([]*Position, 0, book.Len())
	for p := range book.Rows() {
		rows = append(rows, p)
	}
	aggregates := book.Aggregates()

	report := &Report{
		GeneratedAt:   at,
		Identity:      identity,
		Positions:     len(rows),
		TotalShares:   aggregates.TotalShares,
		TotalValue:    aggregates.TotalValue,
		Notifications: notifications.All(),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		report.LargestTicker, report.LargestValue, report.LargestWeightPercent = calcConcentration(rows, aggregates.TotalValue)
	}()
	go func() {
		defer wg.Done()
		report.Gainers, report.Losers, report.Unpriced, report.AvgChangePercent = calcPriceMovement(rows)
	}()
	wg.Wait()

	return report
}

func calcConcentration(rows []*Position, total decimal.Decimal) (string, decimal.Decimal, decimal.Decimal) {
	var largest *Position
	for _, p := range rows {
		if largest == nil || p.Value().GreaterThan(largest.Value()) {
			largest = p
		}
	}
	if largest == nil {
		return "", decimal.Zero, decimal.Zero
	}

	weight := decimal.Zero
	if total.GreaterThan(decimal.Zero) {
		weight = largest.Value().Div(total).Mul(hundred).Round(2)
	}
	return largest.Ticker(), largest.Value(), weight
}

func calcPriceMovement(rows []*Position) (int, int, int, decimal.Decimal) {
	gainers, losers, unpriced := 0, 0, 0
	sum := decimal.Zero
	for _, p := range rows {
		switch p.Direction() {
		case types.DirectionUp:
			gainers++
		case types.DirectionDown:
			losers++
		default:
			unpriced++
			continue
		}
		sum = sum.Add(p.ChangePercent())
	}

	quoted := gainers + losers
	if quoted == 0 {
		return gainers, losers, unpriced, decimal.Zero
	}
	return gainers, losers, unpriced, sum.Div(decimal.NewFromInt(int64(quoted))).Round(2)
}
