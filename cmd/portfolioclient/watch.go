package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"portfolioclient/internal/engine"

	"github.com/google/subcommands"
)

// watchCmd holds the flags for the 'watch' subcommand.
type watchCmd struct {
	timeout  time.Duration
	duration time.Duration
	report   bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "stream live positions, quotes and notifications" }
func (*watchCmd) Usage() string {
	return `portfolioclient watch [-timeout <d>] [-for <d>] [-report]

  Connects, prints the positions snapshot and then every position change and
  notification until interrupted.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.timeout, "timeout", 30*time.Second, "how long to wait for the positions snapshot")
	f.DurationVar(&c.duration, "for", 0, "stop after this long (0 runs until interrupted)")
	f.BoolVar(&c.report, "report", true, "print a portfolio report on exit")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if c.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.duration)
		defer cancel()
	}
	<-ctx.Done()

	if c.report {
		session, _ := a.controller.Session()
		a.controller.Do(func() {
			report := engine.GenerateReport(a.controller.Book(), a.controller.Notifications(), session.Identity, time.Now())
			engine.PrintReport(os.Stdout, report)
		})
	}
	return subcommands.ExitSuccess
}
