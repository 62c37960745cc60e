package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/xtxerr/soilwatch/internal/client"
	"github.com/xtxerr/soilwatch/internal/types"
)

// command is one soilctl subcommand.
type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *client.Client, out io.Writer, args []string) error
}

// commands is filled in init because its entries refer back to it.
var commands map[string]command

func init() {
	commands = map[string]command{
		"hello": {
			usage: "hello",
			help:  "print the server greeting",
			run: func(ctx context.Context, c *client.Client, out io.Writer, _ []string) error {
				msg, err := c.Hello(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, msg)
				return err
			},
		},
		"health": {
			usage: "health",
			help:  "check the server and its store",
			run: func(ctx context.Context, c *client.Client, out io.Writer, _ []string) error {
				if err := c.Health(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out, "ok")
				return err
			},
		},
		"stats": {
			usage: "stats",
			help:  "show request and ingestion statistics",
			run: func(ctx context.Context, c *client.Client, out io.Writer, _ []string) error {
				report, err := c.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, report)
			},
		},
		"status": {
			usage: "status [collector_id] [-offset N] [-limit N]",
			help:  "show crop status of one or all collectors",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				id, w, err := parseWindow("status", args)
				if err != nil {
					return err
				}
				if id == nil {
					return result(out)(c.ListStatus(ctx, w))
				}
				return result(out)(c.GetStatus(ctx, *id, w))
			},
		},
		"records": {
			usage: "records [collector_id] [-offset N] [-limit N]",
			help:  "show raw readings of one or all collectors",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				id, w, err := parseWindow("records", args)
				if err != nil {
					return err
				}
				if id == nil {
					return result(out)(c.ListRecords(ctx, w))
				}
				return result(out)(c.GetRecords(ctx, *id, w))
			},
		},
		"humidity": {
			usage: "humidity [collector_id] [-offset N] [-limit N]",
			help:  "show calculated humidity of one or all collectors",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				id, w, err := parseWindow("humidity", args)
				if err != nil {
					return err
				}
				if id == nil {
					return result(out)(c.ListHumidity(ctx, w))
				}
				return result(out)(c.GetHumidity(ctx, *id, w))
			},
		},
		"receptor": {
			usage: "receptor [-offset N] [-limit N]",
			help:  "show recent receptor heartbeats",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				id, w, err := parseWindow("receptor", args)
				if err != nil {
					return err
				}
				if id != nil {
					return fmt.Errorf("receptor takes no collector id")
				}
				return result(out)(c.ListReceptorStatus(ctx, w))
			},
		},
		"post-status": {
			usage: "post-status <collector_id> <start_date> <crop> [end_date]",
			help:  "store a crop status",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				if len(args) < 3 || len(args) > 4 {
					return usageError("post-status")
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				start, err := parseTime(args[1])
				if err != nil {
					return err
				}
				e := types.StatusEntry{StartDate: start, Crop: args[2]}
				if len(args) == 4 {
					end, err := parseTime(args[3])
					if err != nil {
						return err
					}
					e.EndDate = &end
				}
				return result(out)(c.CreateStatus(ctx, id, e))
			},
		},
		"post-record": {
			usage: "post-record <collector_id> <collection_date> <read_humidity>",
			help:  "store a raw reading",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				if len(args) != 3 {
					return usageError("post-record")
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				ts, err := parseTime(args[1])
				if err != nil {
					return err
				}
				v, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return fmt.Errorf("read_humidity %q: must be an integer", args[2])
				}
				return result(out)(c.CreateRecord(ctx, id, types.RecordEntry{CollectionDate: ts, ReadHumidity: v}))
			},
		},
		"post-humidity": {
			usage: "post-humidity <collector_id> <calculation_date> <percentage>",
			help:  "store a calculated humidity",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				if len(args) != 3 {
					return usageError("post-humidity")
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				ts, err := parseTime(args[1])
				if err != nil {
					return err
				}
				pct, err := types.ParsePercentage(args[2])
				if err != nil {
					return err
				}
				return result(out)(c.CreateHumidity(ctx, id, types.HumidityEntry{CalculationDate: ts, HumidityPercentage: pct}))
			},
		},
		"post-receptor": {
			usage: "post-receptor <update_date> [records_in_buffer]",
			help:  "store a receptor heartbeat",
			run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
				if len(args) < 1 || len(args) > 2 {
					return usageError("post-receptor")
				}
				ts, err := parseTime(args[0])
				if err != nil {
					return err
				}
				e := types.GatewayEntry{UpdateDate: ts}
				if len(args) == 2 {
					if e.RecordsInBuffer, err = strconv.ParseInt(args[1], 10, 64); err != nil {
						return fmt.Errorf("records_in_buffer %q: must be an integer", args[1])
					}
				}
				return result(out)(c.CreateReceptorStatus(ctx, e))
			},
		},
	}
}

// commandNames returns the subcommands in alphabetical order.
func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// execute runs one command line.
func execute(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if args[0] == "help" {
		printHelp(out)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
	return cmd.run(ctx, c, out, args[1:])
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	for _, name := range commandNames() {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-62s %s\n", cmd.usage, cmd.help)
	}
}

func usageError(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}

// parseWindow parses an optional leading collector id followed by
// -offset and -limit flags.
func parseWindow(name string, args []string) (*int64, client.Window, error) {
	var id *int64
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		v, err := parseID(args[0])
		if err != nil {
			return nil, client.Window{}, err
		}
		id = &v
		args = args[1:]
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.Int64("offset", -1, "first rank")
	limit := fs.Int64("limit", -1, "number of ranks")
	if err := fs.Parse(args); err != nil {
		return nil, client.Window{}, fmt.Errorf("%w (usage: %s)", err, commands[name].usage)
	}
	if fs.NArg() > 0 {
		return nil, client.Window{}, usageError(name)
	}

	var w client.Window
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "offset":
			w.Offset = offset
		case "limit":
			w.Limit = limit
		}
	})
	return id, w, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("collector id %q: must be an integer", s)
	}
	return id, nil
}

// parseTime accepts any ISO 8601 timestamp; one without a zone is UTC.
func parseTime(s string) (time.Time, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// result prints v as indented JSON unless err is set.
func result(out io.Writer) func(any, error) error {
	return func(v any, err error) error {
		if err != nil {
			return err
		}
		return printJSON(out, v)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
