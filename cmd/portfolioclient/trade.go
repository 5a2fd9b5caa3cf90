package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"portfolioclient/internal/engine"
	"portfolioclient/types"

	"github.com/google/subcommands"
)

// tradeCmd holds the flags for the 'trade' subcommand.
type tradeCmd struct {
	ticker  string
	shares  string
	force   bool
	timeout time.Duration
	wait    time.Duration
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "send a buy or sell request for a position" }
func (*tradeCmd) Usage() string {
	return `portfolioclient trade -t <ticker> -n <shares> [-force] buy|sell

  Loads the positions snapshot, validates the request against the live position
  and sends it. The server answers with a position update or an error, which is
  printed if it arrives within -wait.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "t", "", "ticker of the position to trade")
	f.StringVar(&c.shares, "n", "", "number of shares")
	f.BoolVar(&c.force, "force", false, "skip local validation and let the server decide")
	f.DurationVar(&c.timeout, "timeout", 30*time.Second, "how long to wait for the positions snapshot")
	f.DurationVar(&c.wait, "wait", 5*time.Second, "how long to wait for the server's answer")
}

func parseSide(arg string) (types.Side, bool) {
	switch strings.ToLower(arg) {
	case "buy":
		return types.SideBuy, true
	case "sell":
		return types.SideSell, true
	}
	return "", false
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.ticker == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	side, ok := parseSide(f.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: action must be buy or sell, got %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting client: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := a.connect(ctx, c.timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		return subcommands.ExitFailure
	}

	workflow := engine.NewTradeWorkflow(a.controller, a.view)
	var submitErr error
	a.controller.Do(func() {
		position, found := a.controller.Book().Lookup(c.ticker)
		if !found {
			submitErr = fmt.Errorf("no position for %s", c.ticker)
			return
		}
		if err := workflow.Open(side, position); err != nil {
			submitErr = err
			return
		}
		workflow.SetSharesInput(c.shares)
		workflow.SuppressValidation(c.force)
		// under the dispatch lock nothing can be pushed between the drain and the send
		a.view.discardNotifications()
		submitErr = workflow.Submit(ctx)
	})
	if submitErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", submitErr)
		return subcommands.ExitFailure
	}

	select {
	case <-a.view.notifications:
	case <-time.After(c.wait):
		fmt.Fprintln(os.Stderr, "no answer from the server yet")
	case <-ctx.Done():
	}
	return subcommands.ExitSuccess
}
