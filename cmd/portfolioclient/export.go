package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"portfolioclient/internal/engine"

	"github.com/google/subcommands"
)

// exportCmd holds the flags for the 'export' subcommand.
type exportCmd struct {
	output  string
	settle  time.Duration
	timeout time.Duration
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the current positions as CSV" }
func (*exportCmd) Usage() string {
	return `portfolioclient export [-o <file>] [-settle <d>]

  Loads the positions snapshot, applies quotes for -settle and writes one CSV
  row per position.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "-", "output file, - for stdout")
	f.DurationVar(&c.settle, "settle", 0, "collect quotes for this long before exporting")
	f.DurationVar(&c.timeout, "timeout", 30*time.Second, "how long to wait for the positions snapshot")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting client: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()
	if c.output == "-" {
		// keep stdout clean for the CSV
		a.view.out = io.Discard
	}

	if err := a.connect(ctx, c.timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.settle > 0 {
		select {
		case <-time.After(c.settle):
		case <-ctx.Done():
			return subcommands.ExitFailure
		}
	}

	a.controller.Do(func() {
		if c.output == "-" {
			err = engine.WritePositionsCSV(os.Stdout, a.controller.Book().Rows())
		} else {
			err = engine.WritePositionsCSVFile(c.output, a.controller.Book().Rows())
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting positions: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
