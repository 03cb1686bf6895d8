package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"athand/internal/app"
	"athand/internal/config"
	logx "athand/pkg/logx"
)

var version = "dev"

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	dateFlag := cli.StringFlag{
		Name:  "date, d",
		Usage: "calendar date as YYYY-MM-DD (default: today)",
	}
	return &cli.App{
		Name:      "athand",
		HelpName:  "athand",
		Usage:     "announce the five daily prayers",
		Version:   version,
		UsageText: "athand [--config FILE] <command> [arguments...]",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "config, c",
				Value:  "./athand.yaml",
				Usage:  "path to the JSON or YAML config",
				EnvVar: "ATHAND_CONFIG",
			},
		},
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "schedule today's prayers and keep refreshing every day",
				Action: run,
			},
			{
				Name:    "today",
				Aliases: []string{"t"},
				Usage:   "print the resolved schedule without scheduling anything",
				Flags:   []cli.Flag{dateFlag},
				Action:  today,
			},
			{
				Name:   "check",
				Usage:  "validate the monthly timetable document",
				Flags:  []cli.Flag{dateFlag},
				Action: check,
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(c.GlobalString("config"))
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.NewManager(c.GlobalString("config")).Load()
}

func resolveDate(c *cli.Context, cfg *config.Config) (time.Time, error) {
	loc, err := app.Location(cfg)
	if err != nil {
		return time.Time{}, err
	}
	return app.ParseDate(c.String("date"), loc)
}

func today(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	date, err := resolveDate(c, cfg)
	if err != nil {
		return err
	}
	sched, res, err := app.Resolve(context.Background(), cfg, date, logx.NewConsole("WARN"))
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "%s (source: %s)\n", date.Format("Monday 02 January 2006"), res.Source)
	if res.PrimaryErr != nil {
		fmt.Fprintf(w, "  primary failed: %v\n", res.PrimaryErr)
	}
	for _, ev := range sched.Events {
		fmt.Fprintf(w, "  %-8s %s\n", ev.Name, ev.At.Format("15:04"))
	}
	return nil
}

func check(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	date, err := resolveDate(c, cfg)
	if err != nil {
		return err
	}
	rep, err := app.CheckDocument(context.Background(), cfg, date, logx.Nop())
	if err != nil {
		return fmt.Errorf("%s: %w", rep.Path, err)
	}
	fmt.Fprintf(c.App.Writer, "%s: ok, %d rows\n  columns: %s\n", rep.Path, rep.Rows, strings.Join(rep.Columns, ", "))
	return nil
}
